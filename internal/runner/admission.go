package runner

// admissionPolicy decides how much load a case receives. It is selected once
// per case and consulted under the controller lock.
type admissionPolicy interface {
	// seed is the number of requests issued when the case starts running.
	seed() int
	// admit returns how many requests to issue after a completion that did
	// not quiesce the case, and whether to ask again once they are issued.
	admit(inFlight int) (n int, again bool)
}

func newAdmissionPolicy(concurrency int) admissionPolicy {
	if concurrency <= 0 {
		return doublingPolicy{}
	}
	return windowPolicy{size: concurrency}
}

// doublingPolicy issues two requests per completion. Outstanding load grows
// without bound until the case quiesces.
type doublingPolicy struct{}

func (doublingPolicy) seed() int { return 1 }

func (doublingPolicy) admit(int) (int, bool) { return 2, false }

// windowPolicy keeps the in-flight count pinned at size, admitting one
// request at a time.
type windowPolicy struct {
	size int
}

func (p windowPolicy) seed() int { return p.size }

func (p windowPolicy) admit(inFlight int) (int, bool) {
	if inFlight < p.size {
		return 1, true
	}
	return 0, false
}
