package mapper

import "context"

// Dispatcher is the event loop of the thread that owns the UI. Submit and
// Revert run inline when called on that thread and are posted to it
// otherwise.
type Dispatcher interface {
	// OnThread reports whether ctx is a context of a task currently run by
	// the dispatcher.
	OnThread(ctx context.Context) bool
	// Post queues task to run on the dispatcher's thread. Post must not
	// block waiting for the task and must not run it inline.
	Post(task func(ctx context.Context))
}

// dispatch runs fn inline if ctx is on the UI thread. Otherwise fn is posted
// and dispatch returns immediately; done, if not nil, receives fn's result
// once it has run.
func (m *Mapper) dispatch(ctx context.Context, name string, fn func() error, done chan<- error) error {
	if m.dispatcher == nil || m.dispatcher.OnThread(ctx) {
		err := fn()
		if done != nil {
			done <- err
		}
		return err
	}

	m.dispatcher.Post(func(ctx context.Context) {
		err := fn()
		if done != nil {
			done <- err
		} else if err != nil {
			m.logf("WARNING: deferred %s failed: %s", name, err)
		}
	})
	return nil
}

// wait dispatches fn and blocks until it has run or ctx is done. The task
// still runs if ctx is cancelled first.
func (m *Mapper) wait(ctx context.Context, name string, fn func() error) error {
	done := make(chan error, 1)
	if err := m.dispatch(ctx, name, fn, done); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
