package runner

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Options configure the Controller.
type Options struct {
	Name     string        // run name carried into the RunReport
	Settle   time.Duration // pause before each case issues load
	Clock    Clock
	Reporter Reporter
	Observer Observer
	Logger   *zap.Logger
	Sleep    func(ctx context.Context, d time.Duration) error // optional injection for tests
	NewRunID func() string
}

func (o *Options) normalize() {
	if o.Settle < 0 {
		o.Settle = 0
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	if o.Reporter == nil {
		o.Reporter = nopReporter{}
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	if o.NewRunID == nil {
		o.NewRunID = func() string { return ulid.Make().String() }
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
