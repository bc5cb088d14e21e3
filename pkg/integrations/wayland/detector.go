package wayland

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/focusnudge/focusnudge/pkg/window"
)

// Detector implements window.Detector for Wayland compositors that expose
// the focused window through their own IPC.
type Detector struct {
	compositor  string
	hasSwaymsg  bool
	hasHyprctl  bool
	hasGdbus    bool
	lookPath    func(string) (string, error)
	runCommand  func(name string, args ...string) ([]byte, error)
	processName func(pid int) string
}

// NewDetector creates a new Wayland detector
func NewDetector() *Detector {
	d := &Detector{
		lookPath: exec.LookPath,
		runCommand: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).Output()
		},
		processName: getProcessName,
	}
	d.hasSwaymsg = d.commandExists("swaymsg")
	d.hasHyprctl = d.commandExists("hyprctl")
	d.hasGdbus = d.commandExists("gdbus")
	d.detectCompositor()
	return d
}

// commandExists checks if a command is available in PATH
func (d *Detector) commandExists(cmd string) bool {
	_, err := d.lookPath(cmd)
	return err == nil
}

// detectCompositor attempts to detect the Wayland compositor
func (d *Detector) detectCompositor() {
	compositors := []struct{ process, name string }{
		{"sway", "sway"},
		{"Hyprland", "hyprland"},
		{"gnome-shell", "gnome"},
	}

	for _, c := range compositors {
		if err := exec.Command("pgrep", "-x", c.process).Run(); err == nil {
			d.compositor = c.name
			return
		}
	}

	d.compositor = "unknown"
}

// IsAvailable checks if Wayland detection is available
func (d *Detector) IsAvailable() bool {
	switch d.compositor {
	case "sway":
		return d.hasSwaymsg
	case "hyprland":
		return d.hasHyprctl
	case "gnome":
		return d.hasGdbus
	default:
		return false
	}
}

// GetDisplayServer returns "wayland"
func (d *Detector) GetDisplayServer() string {
	return "wayland"
}

// GetFocusedWindow returns information about the currently focused window
func (d *Detector) GetFocusedWindow() (*window.WindowInfo, error) {
	var (
		info *window.WindowInfo
		err  error
	)

	switch d.compositor {
	case "sway":
		info, err = d.getFocusedWindowSway()
	case "hyprland":
		info, err = d.getFocusedWindowHyprland()
	case "gnome":
		info, err = d.getFocusedWindowGnome()
	default:
		return nil, fmt.Errorf("%w: unsupported wayland compositor %q", window.ErrUnavailable, d.compositor)
	}
	if err != nil {
		return nil, err
	}

	info.DisplayServer = "wayland"
	if info.PID != 0 && info.ProcessName == "" {
		info.ProcessName = d.processName(int(info.PID))
	}
	return info, nil
}

type swayNode struct {
	Focused       bool       `json:"focused"`
	Name          string     `json:"name"`
	AppID         string     `json:"app_id"`
	PID           int        `json:"pid"`
	WindowProps   *swayProps `json:"window_properties"`
	Nodes         []swayNode `json:"nodes"`
	FloatingNodes []swayNode `json:"floating_nodes"`
}

type swayProps struct {
	Class string `json:"class"`
}

func (d *Detector) getFocusedWindowSway() (*window.WindowInfo, error) {
	output, err := d.runCommand("swaymsg", "-t", "get_tree")
	if err != nil {
		return nil, fmt.Errorf("failed to execute swaymsg: %w", err)
	}
	return parseSwayTree(output)
}

// parseSwayTree walks the sway layout tree and returns the focused leaf
func parseSwayTree(data []byte) (*window.WindowInfo, error) {
	var root swayNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to decode sway tree: %w", err)
	}

	node := findFocused(&root)
	if node == nil {
		return nil, fmt.Errorf("no focused sway window")
	}

	owner := node.AppID
	if owner == "" && node.WindowProps != nil {
		owner = node.WindowProps.Class
	}

	return &window.WindowInfo{
		OwnerName:   owner,
		WindowTitle: node.Name,
		PID:         uint32(max(node.PID, 0)),
	}, nil
}

func findFocused(n *swayNode) *swayNode {
	if n.Focused && n.PID != 0 {
		return n
	}
	for i := range n.Nodes {
		if found := findFocused(&n.Nodes[i]); found != nil {
			return found
		}
	}
	for i := range n.FloatingNodes {
		if found := findFocused(&n.FloatingNodes[i]); found != nil {
			return found
		}
	}
	return nil
}

type hyprWindow struct {
	Class string `json:"class"`
	Title string `json:"title"`
	PID   int    `json:"pid"`
}

func (d *Detector) getFocusedWindowHyprland() (*window.WindowInfo, error) {
	output, err := d.runCommand("hyprctl", "activewindow", "-j")
	if err != nil {
		return nil, fmt.Errorf("failed to execute hyprctl: %w", err)
	}
	return parseHyprlandWindow(output)
}

// parseHyprlandWindow decodes `hyprctl activewindow -j`
func parseHyprlandWindow(data []byte) (*window.WindowInfo, error) {
	var w hyprWindow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode hyprland window: %w", err)
	}
	if w.Class == "" && w.Title == "" && w.PID <= 0 {
		return nil, fmt.Errorf("no focused hyprland window")
	}

	return &window.WindowInfo{
		OwnerName:   w.Class,
		WindowTitle: w.Title,
		PID:         uint32(max(w.PID, 0)),
	}, nil
}

const gnomeScript = `(() => {
	const w = global.display.get_focus_window();
	if (!w) return '';
	return JSON.stringify({class: w.get_wm_class() || '', title: w.get_title() || '', pid: w.get_pid() || 0});
})()`

func (d *Detector) getFocusedWindowGnome() (*window.WindowInfo, error) {
	output, err := d.runCommand("gdbus", "call", "--session",
		"--dest", "org.gnome.Shell",
		"--object-path", "/org/gnome/Shell",
		"--method", "org.gnome.Shell.Eval",
		gnomeScript)
	if err != nil {
		return nil, fmt.Errorf("failed to call gnome shell: %w", err)
	}
	return parseGnomeEval(string(output))
}

// parseGnomeEval parses the GVariant text "(true, '{...}')" returned by
// org.gnome.Shell.Eval. Recent GNOME releases answer (false, '') unless
// unsafe mode is enabled.
func parseGnomeEval(output string) (*window.WindowInfo, error) {
	output = strings.TrimSpace(output)
	if !strings.HasPrefix(output, "(true,") {
		return nil, fmt.Errorf("gnome shell eval refused: %s", output)
	}

	payload := strings.TrimSpace(strings.TrimPrefix(output, "(true,"))
	payload = strings.TrimSuffix(payload, ")")
	payload = strings.Trim(payload, "'")
	if payload == "" {
		return nil, fmt.Errorf("no focused gnome window")
	}

	if unquoted, err := strconv.Unquote(payload); err == nil {
		payload = unquoted
	}

	var w hyprWindow
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return nil, fmt.Errorf("failed to decode gnome window: %w", err)
	}

	return &window.WindowInfo{
		OwnerName:   w.Class,
		WindowTitle: w.Title,
		PID:         uint32(max(w.PID, 0)),
	}, nil
}

// getProcessName resolves a PID to its command name via ps
func getProcessName(pid int) string {
	output, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "comm=").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

// Close cleans up resources
func (d *Detector) Close() error {
	return nil
}
