package x11

import (
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/focusnudge/focusnudge/pkg/window"
)

var atomNames = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_NAME",
	"_NET_WM_PID",
	"WM_NAME",
	"WM_CLASS",
	"UTF8_STRING",
}

// Detector implements window.Detector for X11 by talking to the X server
// directly instead of shelling out to xdotool.
type Detector struct {
	mu      sync.Mutex
	conn    *xgb.Conn
	root    xproto.Window
	atoms   map[string]xproto.Atom
	initErr error
}

// NewDetector connects to the display named by $DISPLAY. Connection failures
// are kept and reported through IsAvailable and GetFocusedWindow.
func NewDetector() *Detector {
	d := &Detector{atoms: make(map[string]xproto.Atom)}
	d.initErr = d.connect()
	return d
}

func (d *Detector) connect() error {
	if os.Getenv("DISPLAY") == "" {
		return fmt.Errorf("DISPLAY is not set")
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}

	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to intern atom %s: %w", name, err)
		}
		d.atoms[name] = reply.Atom
	}

	d.conn = conn
	d.root = xproto.Setup(conn).DefaultScreen(conn).Root
	return nil
}

// IsAvailable reports whether the X server connection was established
func (d *Detector) IsAvailable() bool {
	return d.initErr == nil
}

// GetDisplayServer returns "x11"
func (d *Detector) GetDisplayServer() string {
	return "x11"
}

// GetFocusedWindow returns information about the currently focused window
func (d *Detector) GetFocusedWindow() (*window.WindowInfo, error) {
	if d.initErr != nil {
		return nil, fmt.Errorf("%w: %v", window.ErrUnavailable, d.initErr)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	win := d.activeWindow()
	if win == 0 {
		return nil, fmt.Errorf("no active x11 window")
	}

	info := &window.WindowInfo{
		OwnerName:     parseWMClass(d.property(win, d.atoms["WM_CLASS"], xproto.AtomString, 256)),
		WindowTitle:   d.windowName(win),
		PID:           d.windowPID(win),
		DisplayServer: "x11",
	}
	if info.PID != 0 {
		info.ProcessName = processName(info.PID)
	}

	return info, nil
}

func (d *Detector) property(win xproto.Window, atom, atomType xproto.Atom, length uint32) []byte {
	reply, err := xproto.GetProperty(d.conn, false, win, atom, atomType, 0, length).Reply()
	if err != nil || reply == nil {
		return nil
	}
	return reply.Value
}

// activeWindow prefers _NET_ACTIVE_WINDOW and falls back to the input focus
// walked up to its top-level parent.
func (d *Detector) activeWindow() xproto.Window {
	data := d.property(d.root, d.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if len(data) >= 4 {
		if win := xproto.Window(binary.LittleEndian.Uint32(data)); win != 0 {
			return win
		}
	}

	focus, err := xproto.GetInputFocus(d.conn).Reply()
	if err != nil || focus.Focus == 0 || focus.Focus == d.root {
		return 0
	}

	win := focus.Focus
	for {
		tree, err := xproto.QueryTree(d.conn, win).Reply()
		if err != nil || tree.Parent == d.root || tree.Parent == 0 {
			return win
		}
		win = tree.Parent
	}
}

func (d *Detector) windowName(win xproto.Window) string {
	if data := d.property(win, d.atoms["_NET_WM_NAME"], d.atoms["UTF8_STRING"], 256); len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}
	if data := d.property(win, d.atoms["WM_NAME"], xproto.AtomString, 256); len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}
	return ""
}

func (d *Detector) windowPID(win xproto.Window) uint32 {
	data := d.property(win, d.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1)
	if len(data) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(data)
}

// parseWMClass extracts the class half of a raw WM_CLASS property
// ("instance\x00Class\x00"), falling back to the instance.
func parseWMClass(raw []byte) string {
	parts := strings.Split(strings.TrimRight(string(raw), "\x00"), "\x00")
	for i := len(parts) - 1; i >= 0; i-- {
		if name := strings.TrimSpace(parts[i]); name != "" {
			return name
		}
	}
	return ""
}

// processName resolves a PID to its command name, trying procfs before ps.
func processName(pid uint32) string {
	if data, err := os.ReadFile("/proc/" + strconv.FormatUint(uint64(pid), 10) + "/comm"); err == nil {
		return strings.TrimSpace(string(data))
	}

	out, err := exec.Command("ps", "-p", strconv.FormatUint(uint64(pid), 10), "-o", "comm=").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// Close cleans up resources
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
	return nil
}
