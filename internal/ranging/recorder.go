package ranging

import (
	"rtb-engine/internal/models"
	"time"
)

// Recorder receives dispatcher events for metrics.
type Recorder interface {
	SessionStarted(role models.Role)
	SessionFinished(role models.Role, state State)
	Confirmed(primitive Primitive, status models.Status)
	SampleVerdict(verdict Verdict)
	FrameDiscarded(reason string)
	ReductionDuration(d time.Duration)
	ActiveSessions(n int)
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted(models.Role)         {}
func (nopRecorder) SessionFinished(models.Role, State) {}
func (nopRecorder) Confirmed(Primitive, models.Status) {}
func (nopRecorder) SampleVerdict(Verdict)              {}
func (nopRecorder) FrameDiscarded(string)              {}
func (nopRecorder) ReductionDuration(time.Duration)    {}
func (nopRecorder) ActiveSessions(int)                 {}
