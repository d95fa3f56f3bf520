package serial

import (
	"io"
	"sync"

	"github.com/golang/glog"
	"go.bug.st/serial"
)

// Monitor copies everything read from a serial port into a writer until it
// is closed.
type Monitor struct {
	port     io.ReadCloser
	portName string
	out      io.Writer

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// OpenPort opens portName as 8N1 at baudRate.
func OpenPort(portName string, baudRate int) (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(portName, mode)
}

// NewMonitor starts copying from port into out.
func NewMonitor(portName string, port io.ReadCloser, out io.Writer) *Monitor {
	m := &Monitor{
		port:     port,
		portName: portName,
		out:      out,
		running:  true,
		done:     make(chan struct{}),
	}
	go m.readLoop()
	return m
}

// Close closes the port and waits for the reader to finish.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	err := m.port.Close()
	m.mu.Unlock()
	<-m.done
	return err
}

func (m *Monitor) readLoop() {
	defer close(m.done)
	buf := make([]byte, 1024)
	for {
		n, err := m.port.Read(buf)
		if n > 0 {
			m.out.Write(buf[:n])
		}
		if err != nil {
			m.mu.Lock()
			closed := !m.running
			m.mu.Unlock()
			if !closed && err != io.EOF {
				glog.Warningf("Console %s stopped: %v", m.portName, err)
			}
			return
		}
	}
}
