package pipeline

import (
	"context"
	"time"
)

// Hold returns a context that outlives parent by up to grace, so an
// in-flight run can land its note when the user signals shutdown. The
// returned stop releases the hold immediately; call it once the run
// resolves.
func Hold(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	held, cancel := context.WithCancel(context.WithoutCancel(parent))

	stopWatch := context.AfterFunc(parent, func() {
		timer := time.AfterFunc(grace, cancel)
		context.AfterFunc(held, func() { timer.Stop() })
	})

	return held, func() {
		stopWatch()
		cancel()
	}
}
