// Package httpclient builds the HTTP requests and client used by the http
// transport.
//
// A [RequestBuilder] is created once per run from the transport configuration
// and stamps every request with the configured method, target and headers.
// Request bodies come from a [BodySource]; [NewPayload] generates a body of an
// exact byte count and [PayloadCache] shares one payload per size:
//
//	builder, err := httpclient.NewRequestBuilder(cfg.Transport)
//	if err != nil {
//		return err
//	}
//	payloads := httpclient.NewPayloadCache()
//	req, err := builder.Build(ctx, payloads.Get(1024))
//
// [NewClient] returns a client with connection reuse sized for the run's
// concurrency. Per-request deadlines come from the request context, so the
// client-level timeout is usually zero:
//
//	client := httpclient.NewClient(0, 1000)
//	resp, err := client.Do(req)
package httpclient
