package detector

import (
	"fmt"
	"os"

	"github.com/focusnudge/focusnudge/pkg/integrations/wayland"
	"github.com/focusnudge/focusnudge/pkg/integrations/x11"
	"github.com/focusnudge/focusnudge/pkg/window"
)

// New returns the first usable active-window detector for this session.
// Wayland compositors are tried first on Wayland sessions, then X11 (which
// also covers XWayland). The error wraps window.ErrUnavailable when nothing
// can report the focused window.
func New() (window.Detector, error) {
	displayServer := DetectDisplayServer()

	if displayServer == "wayland" {
		if det := wayland.NewDetector(); det.IsAvailable() {
			return det, nil
		}
	}

	if os.Getenv("DISPLAY") != "" {
		det := x11.NewDetector()
		if det.IsAvailable() {
			return det, nil
		}
		det.Close()
	}

	return nil, fmt.Errorf("%w (display server: %s)", window.ErrUnavailable, displayServer)
}

func DetectDisplayServer() string {
	sessionType := os.Getenv("XDG_SESSION_TYPE")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	x11Display := os.Getenv("DISPLAY")

	if sessionType == "wayland" || waylandDisplay != "" {
		return "wayland"
	}

	if sessionType == "x11" || x11Display != "" {
		return "x11"
	}

	return "unknown"
}
