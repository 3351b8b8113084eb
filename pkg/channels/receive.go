package channels

import "time"

// ReceiveAll drains messages from a channel until it is closed, until max
// messages have been received, or until no message arrives within idle.
// A max of 0 means no limit.
func ReceiveAll[T any](ch <-chan T, idle time.Duration, max int) []T {
	var out []T
	timer := time.NewTimer(idle)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, msg)
			if max > 0 && len(out) >= max {
				return out
			}
			timer.Reset(idle)
		case <-timer.C:
			return out
		}
	}
}
