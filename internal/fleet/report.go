package fleet

import (
	"errors"
	"fmt"

	"github.com/danmuck/cubelink/internal/protocol"
)

var ErrMalformedReport = errors.New("fleet: malformed status report")

type wallReport struct {
	Address            *string        `json:"address"`
	LastDeliveryStatus DeliveryStatus `json:"lastDeliveryStatus"`
}

type statusReport struct {
	Walls []wallReport `json:"walls"`
}

// DecodeReport reads updateStatus params. Entry i describes slot i; a
// missing address stays "unknown". A master with no walls omits the walls
// key, which is an empty report.
func DecodeReport(params protocol.Params) ([]NodeStatus, error) {
	if !params.IsNamed() {
		return nil, fmt.Errorf("%w: params must be an object", ErrMalformedReport)
	}
	if _, ok := params.Value(protocol.ParamWalls); !ok {
		return []NodeStatus{}, nil
	}
	var report statusReport
	if err := params.Decode(&report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	out := make([]NodeStatus, 0, len(report.Walls))
	for i, w := range report.Walls {
		status := NodeStatus{ID: i, Address: UnknownAddress, LastDeliveryStatus: w.LastDeliveryStatus}
		if w.Address != nil && *w.Address != "" {
			status.Address = *w.Address
		}
		out = append(out, status)
	}
	return out, nil
}
