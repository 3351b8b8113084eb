// Package channels provides channel helpers: bounded sends, drains, and a
// broadcaster that fans one stream out to many subscribers.
package channels

import (
	"errors"
)

var (
	ErrChannelClosed  = errors.New("channel closed")
	ErrChannelTimeout = errors.New("send timeout")
	ErrChannelFull    = errors.New("channel full")
)
