package runner

import (
	"time"

	"github.com/torosent/casebench/internal/config"
)

// Builder expands option lists into cases. Case IDs come from one counter
// shared by every suite the builder expands, starting at 1.
type Builder struct {
	next int64
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build produces the cross product of opts for one suite: payload sizes in
// order, then timeouts in reverse order, then concurrency levels in order.
// Empty lists fall back to the built-in defaults.
func (b *Builder) Build(suite string, opts config.CaseOptions) []*Case {
	opts = opts.WithDefaults(config.BuiltinCaseOptions())

	cases := make([]*Case, 0, len(opts.PayloadBytes)*len(opts.TimeoutsMs)*len(opts.Concurrency))
	for _, payload := range opts.PayloadBytes {
		for i := len(opts.TimeoutsMs) - 1; i >= 0; i-- {
			for _, cc := range opts.Concurrency {
				b.next++
				cases = append(cases, &Case{
					ID:           b.next,
					Suite:        suite,
					Duration:     opts.Duration,
					PayloadBytes: payload,
					Timeout:      time.Duration(opts.TimeoutsMs[i]) * time.Millisecond,
					Concurrency:  cc,
				})
			}
		}
	}
	return cases
}

// Count is the number of cases built so far.
func (b *Builder) Count() int64 {
	return b.next
}

// BuildSuites expands already resolved suites, all issuing through iss.
func (b *Builder) BuildSuites(resolved []config.ResolvedSuite, iss Issuer) []*Suite {
	suites := make([]*Suite, 0, len(resolved))
	for _, rs := range resolved {
		suites = append(suites, &Suite{
			Name:    rs.Name,
			Section: rs.Section,
			Cases:   b.Build(rs.Name, rs.Options),
			Issuer:  iss,
		})
	}
	return suites
}

// Resolve resolves every suite's section through r and expands it. A section
// that cannot be resolved aborts with the resolver's ConfigurationError.
func (b *Builder) Resolve(r config.Resolver, suites []config.SuiteConfig, defaults config.CaseOptions, iss Issuer) ([]*Suite, error) {
	resolved, err := config.ResolveAll(r, suites, defaults)
	if err != nil {
		return nil, err
	}
	return b.BuildSuites(resolved, iss), nil
}
