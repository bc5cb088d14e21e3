package window

import "errors"

// ErrUnavailable is returned when no foreground window can be queried on
// this system.
var ErrUnavailable = errors.New("active window facility unavailable")

// WindowInfo represents information about the currently focused window
type WindowInfo struct {
	// ProcessName is the name of the process owning the window, if known
	ProcessName string

	// OwnerName is the owner reported by the window system itself
	// (WM_CLASS on X11, app_id on sway, class on Hyprland)
	OwnerName string

	WindowTitle   string
	PID           uint32
	DisplayServer string // "x11" or "wayland"
}

// Detector is the interface that all window detection implementations must satisfy
type Detector interface {
	// GetFocusedWindow returns information about the currently focused window
	GetFocusedWindow() (*WindowInfo, error)

	// IsAvailable checks if this detector can run on the current system
	IsAvailable() bool

	// GetDisplayServer returns the display server type ("x11" or "wayland")
	GetDisplayServer() string

	// Close cleans up any resources used by the detector
	Close() error
}
