package notify

import (
	"fmt"
	"log"
	"os/exec"
)

// Notifier surfaces capture lifecycle and terminal errors to the user.
// Recoverable capture hiccups never reach it.
type Notifier interface {
	CaptureStarted()
	CaptureStopped()
	Error(msg string)
}

type Desktop struct{}

func (Desktop) CaptureStarted() {
	send("Mudawin: transcription started", false)
}

func (Desktop) CaptureStopped() {
	send("Mudawin: transcription stopped", false)
}

func (Desktop) Error(msg string) {
	send(fmt.Sprintf("Mudawin: %s", msg), true)
}

func send(msg string, critical bool) {
	args := []string{"-a", "Mudawin"}
	if critical {
		args = append(args, "-u", "critical")
	}
	args = append(args, msg)
	cmd := exec.Command("notify-send", args...)
	if err := cmd.Run(); err != nil {
		log.Printf("notify: failed to send notification: %v", err)
	}
}

// Log writes notifications to the daemon log instead of the desktop.
type Log struct{}

func (Log) CaptureStarted() { log.Printf("notify: transcription started") }
func (Log) CaptureStopped() { log.Printf("notify: transcription stopped") }
func (Log) Error(msg string) {
	log.Printf("notify: error: %s", msg)
}

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) CaptureStarted() {}
func (Nop) CaptureStopped() {}
func (Nop) Error(msg string) {}

// ForType picks a notifier from a config type string.
func ForType(typ string, enabled bool) Notifier {
	if !enabled {
		return Nop{}
	}
	switch typ {
	case "desktop":
		return Desktop{}
	case "log":
		return Log{}
	default:
		return Nop{}
	}
}
