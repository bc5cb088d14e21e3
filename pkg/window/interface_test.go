package window

import (
	"errors"
	"testing"
)

type MockDetector struct {
	windowInfo    *WindowInfo
	err           error
	isAvailable   bool
	displayServer string
	closeError    error
}

func (m *MockDetector) GetFocusedWindow() (*WindowInfo, error) {
	return m.windowInfo, m.err
}

func (m *MockDetector) IsAvailable() bool {
	return m.isAvailable
}

func (m *MockDetector) GetDisplayServer() string {
	return m.displayServer
}

func (m *MockDetector) Close() error {
	return m.closeError
}

func TestMockDetector(t *testing.T) {
	var _ Detector = (*MockDetector)(nil)

	mock := &MockDetector{
		windowInfo: &WindowInfo{
			ProcessName:   "firefox",
			OwnerName:     "Navigator",
			WindowTitle:   "Test Window",
			PID:           4242,
			DisplayServer: "x11",
		},
		isAvailable:   true,
		displayServer: "x11",
	}

	windowInfo, err := mock.GetFocusedWindow()
	if err != nil {
		t.Errorf("GetFocusedWindow() error: %v", err)
	}
	if windowInfo.ProcessName != "firefox" {
		t.Errorf("ProcessName = %s, want firefox", windowInfo.ProcessName)
	}
	if windowInfo.PID != 4242 {
		t.Errorf("PID = %d, want 4242", windowInfo.PID)
	}
	if !mock.IsAvailable() {
		t.Error("IsAvailable() = false, want true")
	}
	if mock.GetDisplayServer() != "x11" {
		t.Errorf("GetDisplayServer() = %s, want x11", mock.GetDisplayServer())
	}
}

func TestMockDetectorUnavailable(t *testing.T) {
	mock := &MockDetector{err: ErrUnavailable}

	info, err := mock.GetFocusedWindow()
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("GetFocusedWindow() error = %v, want ErrUnavailable", err)
	}
	if info != nil {
		t.Errorf("GetFocusedWindow() info = %+v, want nil", info)
	}
}
