package channels

import "time"

// SendNonBlock tries to send without waiting. It returns ErrChannelFull
// when the channel has no room and ErrChannelClosed when it is closed.
func SendNonBlock[T any](ch chan<- T, msg T) (err error) {
	defer func() {
		// Sending on a closed channel panics; surface it as an error.
		if recover() != nil {
			err = ErrChannelClosed
		}
	}()

	select {
	case ch <- msg:
	default:
		return ErrChannelFull
	}

	return nil
}

// SendWithTimeout sends, giving up after the timeout elapses.
func SendWithTimeout[T any](ch chan<- T, msg T, timeout time.Duration) (err error) {
	defer func() {
		if recover() != nil {
			err = ErrChannelClosed
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- msg:
	case <-timer.C:
		return ErrChannelTimeout
	}

	return nil
}
