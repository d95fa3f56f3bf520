// Package serial captures device boot consoles from USB serial ports.
package serial

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/glog"

	"github.com/buckleypaul/droidclang/internal/device"
)

// Console writes one log per device under LogDir while a flash is in
// progress.
type Console struct {
	// Port is used for every device when set. Otherwise the port is found
	// by matching USB serial numbers against the device serial.
	Port     string
	BaudRate int
	LogDir   string

	// ListPorts and Open default to the real serial port implementation.
	ListPorts func() ([]PortInfo, error)
	Open      func(portName string, baudRate int) (io.ReadCloser, error)
}

// LogPath is the capture file for a device.
func (c *Console) LogPath(deviceSerial string) string {
	return filepath.Join(c.LogDir, "console-"+deviceSerial+".log")
}

// Start begins capturing. It returns device.ErrNoConsole when no port
// belongs to the device.
func (c *Console) Start(deviceSerial string) (device.Capture, error) {
	portName, err := c.portFor(deviceSerial)
	if err != nil {
		return nil, err
	}

	open := c.Open
	if open == nil {
		open = OpenPort
	}
	port, err := open(portName, c.BaudRate)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", portName, err)
	}

	if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		port.Close()
		return nil, err
	}
	f, err := os.Create(c.LogPath(deviceSerial))
	if err != nil {
		port.Close()
		return nil, err
	}
	glog.Infof("Capturing console of %s from %s into %s", deviceSerial, portName, f.Name())
	return &capture{monitor: NewMonitor(portName, port, f), file: f}, nil
}

func (c *Console) portFor(deviceSerial string) (string, error) {
	if c.Port != "" {
		return c.Port, nil
	}
	list := c.ListPorts
	if list == nil {
		list = ListPorts
	}
	ports, err := list()
	if err != nil {
		return "", fmt.Errorf("listing serial ports: %w", err)
	}
	name, ok := FindPort(ports, deviceSerial)
	if !ok {
		return "", device.ErrNoConsole
	}
	return name, nil
}

type capture struct {
	monitor *Monitor
	file    *os.File
}

func (c *capture) LogPath() string {
	return c.file.Name()
}

func (c *capture) Close() error {
	merr := c.monitor.Close()
	ferr := c.file.Close()
	if ferr != nil {
		return ferr
	}
	return merr
}
