package device

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// ErrPortNotFound is returned when no attached port looks like the field
// unit.
var ErrPortNotFound = errors.New("device port not found")

// vendorIDs maps USB vendor ids of common ESP32 bridge chips to the vendor
// names used as hints.
var vendorIDs = map[string]string{
	"10C4": "Silicon Labs",
	"1A86": "wch",
	"303A": "Espressif",
}

// PortInfo describes one serial port.
type PortInfo struct {
	Name    string
	IsUSB   bool
	VID     string
	PID     string
	Product string
}

// Lister returns the ports currently attached.
type Lister func() ([]PortInfo, error)

// SystemPorts lists serial ports with USB details.
func SystemPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:    d.Name,
			IsUSB:   d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Product: d.Product,
		})
	}
	return ports, nil
}

// Detect picks the first port whose USB vendor or product text matches one
// of the hints, compared case-insensitively.
func Detect(ports []PortInfo, hints []string) (PortInfo, error) {
	for _, p := range ports {
		if matches(p, hints) {
			return p, nil
		}
	}
	return PortInfo{}, fmt.Errorf("%w among %d ports", ErrPortNotFound, len(ports))
}

func matches(p PortInfo, hints []string) bool {
	vendor := vendorIDs[strings.ToUpper(p.VID)]
	product := strings.ToLower(p.Product)

	for _, hint := range hints {
		hint = strings.ToLower(strings.TrimSpace(hint))
		if hint == "" {
			continue
		}
		if vendor != "" && strings.Contains(strings.ToLower(vendor), hint) {
			return true
		}
		if product != "" && strings.Contains(product, hint) {
			return true
		}
	}
	return false
}

// OpenSerial opens name in 8N1 at baud.
func OpenSerial(name string, baud int) (serial.Port, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return port, nil
}
