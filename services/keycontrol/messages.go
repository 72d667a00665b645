package keycontrol

import (
	"fmt"
	"io"
	"sync"

	"github.com/viam-labs/keydrive/components/base"
	"github.com/viam-labs/keydrive/logging"
)

// Status lines written back over the link.
const (
	BannerRule       = "---------------"
	InitialisingMsg  = "Initialising..."
	InitCompleteMsg  = "Initialisation complete."
	EnabledMsg       = "Enabled keyboard control"
	ExitedMsg        = "Exited keyboard control"
	InvalidInputMsg  = "Invalid character input."
	StopMsg          = "Stop"
	driveErrorFormat = "Drive error: %v"
)

// DirectionMessage is the status line for a direction command.
func DirectionMessage(dir base.Direction) string {
	switch dir {
	case base.Forward:
		return "Forwards"
	case base.Backward:
		return "Backwards"
	case base.Left:
		return "Left"
	case base.Right:
		return "Right"
	case base.None:
		return StopMsg
	default:
		return dir.String()
	}
}

// SpeedMessage is the status line for a speed command.
func SpeedMessage(level int) string {
	if level == 0 {
		return StopMsg
	}
	return fmt.Sprintf("Speed = %d%%", level*10)
}

// A Reporter writes status lines to the link, terminated with "\r\n", and mirrors them to the log.
type Reporter struct {
	mu     sync.Mutex
	w      io.Writer
	logger logging.Logger
}

// NewReporter returns a reporter writing to w.
func NewReporter(w io.Writer, logger logging.Logger) *Reporter {
	return &Reporter{w: w, logger: logger}
}

// Report writes msg. A failed write is logged and otherwise dropped: status lines are best effort.
func (r *Reporter) Report(msg string) {
	r.logger.Info(msg)
	r.write(msg)
}

// Warn is Report for lines that need attention.
func (r *Reporter) Warn(msg string) {
	r.logger.Warn(msg)
	r.write(msg)
}

func (r *Reporter) write(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.WriteString(r.w, msg+"\r\n"); err != nil {
		r.logger.Debugw("error writing status line", "error", err)
	}
}
