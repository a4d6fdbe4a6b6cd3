package ranging

import (
	"rtb-engine/internal/frames"
)

// Radio transmits frames without blocking. done is called exactly once,
// from any goroutine, when the transmission finished or failed.
type Radio interface {
	SendFrame(frame frames.Frame, done func(error))
}
