package serial

import (
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo holds details about a serial port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// ListPorts returns available serial ports.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	var result []PortInfo
	for _, p := range ports {
		result = append(result, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
		})
	}
	return result, nil
}

// FindPort returns the USB port whose serial number matches the device
// serial. Debug boards usually expose the device serial on their UART
// bridge.
func FindPort(ports []PortInfo, deviceSerial string) (string, bool) {
	for _, p := range ports {
		if p.IsUSB && p.SerialNumber != "" && strings.EqualFold(p.SerialNumber, deviceSerial) {
			return p.Name, true
		}
	}
	return "", false
}
