package installer

import "context"

// Pending is an install running in the background. It completes exactly
// once; completing it a second time panics.
type Pending struct {
	done   chan struct{}
	result *Result
	err    error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) complete(res *Result, err error) {
	p.result, p.err = res, err
	close(p.done)
}

// Done is closed once the install has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the install finishes and returns its outcome.
func (p *Pending) Wait() (*Result, error) {
	<-p.done
	return p.result, p.err
}

// Start runs Install in a new goroutine.
func (in *Installer) Start(ctx context.Context, opts Options) *Pending {
	p := newPending()
	go func() {
		p.complete(in.Install(ctx, opts))
	}()
	return p
}
