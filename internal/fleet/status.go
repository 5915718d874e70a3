// Package fleet holds the last-known status of each wall unit.
package fleet

import (
	"strings"
	"time"
)

// DeliveryStatus is the outcome of the master's last packet to a wall.
type DeliveryStatus uint8

const (
	DeliveryUnknown DeliveryStatus = iota
	DeliverySuccess
	DeliveryFailure
)

// UnknownAddress is reported until a wall's first status update.
const UnknownAddress = "unknown"

func (s DeliveryStatus) String() string {
	switch s {
	case DeliverySuccess:
		return "success"
	case DeliveryFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// ParseDeliveryStatus maps wire text to a status. Anything unrecognized is unknown.
func ParseDeliveryStatus(raw string) DeliveryStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success":
		return DeliverySuccess
	case "failure":
		return DeliveryFailure
	default:
		return DeliveryUnknown
	}
}

func (s DeliveryStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *DeliveryStatus) UnmarshalText(text []byte) error {
	*s = ParseDeliveryStatus(string(text))
	return nil
}

// NodeStatus is one wall slot.
type NodeStatus struct {
	ID                 int            `json:"id"`
	Address            string         `json:"address"`
	LastDeliveryStatus DeliveryStatus `json:"lastDeliveryStatus"`
	UpdatedAt          time.Time      `json:"updatedAt,omitzero"`
}

// Reported reports whether the master has sent a status for this slot.
func (n NodeStatus) Reported() bool {
	return !n.UpdatedAt.IsZero()
}

func initialStatus(id int) NodeStatus {
	return NodeStatus{ID: id, Address: UnknownAddress, LastDeliveryStatus: DeliveryUnknown}
}
