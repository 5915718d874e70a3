package serialport

import (
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var ErrNoPort = errors.New("serialport: no matching port")

// PortInfo describes one serial device visible to the OS.
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

var (
	detailedPorts = enumerator.GetDetailedPortsList
	plainPorts    = serial.GetPortsList
)

// List enumerates serial ports, falling back to bare names when the
// platform enumerator cannot report USB details.
func List() ([]PortInfo, error) {
	details, err := detailedPorts()
	if err == nil {
		out := make([]PortInfo, 0, len(details))
		for _, d := range details {
			if d == nil {
				continue
			}
			out = append(out, PortInfo{
				Name:         d.Name,
				IsUSB:        d.IsUSB,
				VID:          d.VID,
				PID:          d.PID,
				SerialNumber: d.SerialNumber,
				Product:      d.Product,
			})
		}
		return out, nil
	}
	log.Debug().Err(err).Msg("serialport.List detailed enumeration failed")

	names, err := plainPorts()
	if err != nil {
		return nil, err
	}
	out := make([]PortInfo, 0, len(names))
	for _, name := range names {
		out = append(out, PortInfo{Name: name})
	}
	return out, nil
}

// AutoSelect picks a port when none is configured. With preferVID set, the
// first USB port with that vendor id wins. Otherwise exactly one USB port
// must be present.
func AutoSelect(ports []PortInfo, preferVID string) (PortInfo, error) {
	var usb []PortInfo
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if preferVID != "" && strings.EqualFold(p.VID, preferVID) {
			return p, nil
		}
		usb = append(usb, p)
	}
	if preferVID == "" && len(usb) == 1 {
		return usb[0], nil
	}
	return PortInfo{}, ErrNoPort
}
