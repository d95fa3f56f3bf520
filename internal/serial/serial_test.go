package serial

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/buckleypaul/droidclang/internal/device"
)

func TestFindPortMatchesUSBSerial(t *testing.T) {
	ports := []PortInfo{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, SerialNumber: "OTHER"},
		{Name: "/dev/ttyUSB1", IsUSB: true, SerialNumber: "ht7a1ready"},
	}
	name, ok := FindPort(ports, "HT7A1READY")
	if !ok || name != "/dev/ttyUSB1" {
		t.Errorf("expected /dev/ttyUSB1, got %q %v", name, ok)
	}
	if _, ok := FindPort(ports, "MISSING"); ok {
		t.Error("expected no port for unknown serial")
	}
}

func TestStartWithoutPortReturnsErrNoConsole(t *testing.T) {
	c := &Console{
		LogDir:    t.TempDir(),
		ListPorts: func() ([]PortInfo, error) { return nil, nil },
	}
	_, err := c.Start("S1")
	if !errors.Is(err, device.ErrNoConsole) {
		t.Fatalf("expected ErrNoConsole, got %v", err)
	}
}

func TestCaptureWritesLog(t *testing.T) {
	r, w := io.Pipe()
	var opened string
	c := &Console{
		Port:     "/dev/ttyUSB3",
		BaudRate: 115200,
		LogDir:   t.TempDir(),
		Open: func(name string, baud int) (io.ReadCloser, error) {
			opened = name
			return r, nil
		},
	}

	closer, err := c.Start("S1")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if opened != "/dev/ttyUSB3" {
		t.Errorf("expected configured port opened, got %q", opened)
	}
	if closer.LogPath() != c.LogPath("S1") {
		t.Errorf("capture log %q, want %q", closer.LogPath(), c.LogPath("S1"))
	}
	if _, err := w.Write([]byte("init: boot completed\n")); err != nil {
		t.Fatal(err)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	data, err := os.ReadFile(c.LogPath("S1"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "boot completed") {
		t.Errorf("expected console output in log, got %q", data)
	}
}

func TestMonitorCloseIsIdempotent(t *testing.T) {
	r, _ := io.Pipe()
	m := NewMonitor("p", r, io.Discard)
	if err := m.Close(); err != nil {
		t.Errorf("Close returned %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}
