// ABOUTME: Test doubles for Clock and Sink
// ABOUTME: Deterministic stand-ins used by uischeduler and pipeline tests
package audiosink

// FakeClock is a manually-driven Clock for deterministic scheduler tests.
type FakeClock struct {
	Now       float64
	IsSuspend bool
}

func (c *FakeClock) NowSeconds() float64 { return c.Now }
func (c *FakeClock) Suspended() bool     { return c.IsSuspend }
func (c *FakeClock) Resume() error       { c.IsSuspend = false; return nil }

// FakeSink records every submitted buffer instead of playing it.
type FakeSink struct {
	Submissions []FakeSubmission
	Canceled    []NodeHandle
	nextEnd     float64
}

// FakeSubmission is one recorded call to Submit.
type FakeSubmission struct {
	Samples   []float32
	Channels  int
	AtSeconds float64
}

func (s *FakeSink) Submit(samples []float32, channels int, atSeconds float64) (NodeHandle, error) {
	s.Submissions = append(s.Submissions, FakeSubmission{Samples: samples, Channels: channels, AtSeconds: atSeconds})
	h := NodeHandle{EndTime: atSeconds + float64(len(samples)/channels)/48000.0}
	return h, nil
}

func (s *FakeSink) Cancel(h NodeHandle) {
	s.Canceled = append(s.Canceled, h)
}
