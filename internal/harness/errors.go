package harness

import (
	"errors"
	"fmt"
	"time"

	"github.com/ZJvandeWeg/rust-red/internal/frame"
	"github.com/ZJvandeWeg/rust-red/internal/launch"
)

// StallError reports that the target produced no output chunk within the
// inactivity bound. This is a per-read bound, not a total deadline: every
// chunk that arrives resets the window, so slow-but-alive targets (cron
// sources, delayed injects) do not trip it.
type StallError struct {
	// Timeout is the inactivity bound that expired.
	Timeout time.Duration

	// Collected is how many messages had been decoded before the stall.
	Collected int

	// Stderr is a bounded preview of the child's stderr, often the only
	// clue to why it went quiet.
	Stderr string
}

func (e *StallError) Error() string {
	msg := fmt.Sprintf("target produced no output for %v after %d message(s)", e.Timeout, e.Collected)
	if e.Stderr != "" {
		msg += "; stderr: " + e.Stderr
	}
	return msg
}

// IsStall reports whether err is a stall timeout.
func IsStall(err error) bool {
	var se *StallError
	return errors.As(err, &se)
}

// IsLaunch reports whether err is a launch failure.
func IsLaunch(err error) bool {
	var le *launch.LaunchError
	return errors.As(err, &le)
}

// IsDecode reports whether err is a frame decode failure.
func IsDecode(err error) bool {
	var de *frame.DecodeError
	return errors.As(err, &de)
}
