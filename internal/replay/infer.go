// v1
// internal/replay/infer.go
package replay

// RoomState classifies what the recent temperature trend of a room suggests
// is happening in it.
type RoomState string

const (
	RoomUnknown RoomState = "unknown"
	RoomCooking RoomState = "cooking"
	RoomHeating RoomState = "heating"
	RoomCooling RoomState = "cooling"
	RoomStable  RoomState = "stable"
)

// InferRoomState looks at the last windowMinutes of a sensor's temperature
// series and classifies the trend from the tail slope. Fewer than two
// samples in the window, or no history at all, yields RoomUnknown.
func (e *Engine) InferRoomState(sensor string, windowMinutes int) RoomState {
	h := e.load(sensor, KindTemperature)
	if h == nil {
		return RoomUnknown
	}
	n := len(h.values)
	if windowMinutes < 2 {
		windowMinutes = 2
	}
	start := n - windowMinutes
	if start < 0 {
		start = 0
	}
	tail := h.values[start:]
	if len(tail) < 2 {
		return RoomUnknown
	}

	t0 := tail[0]
	t1 := tail[len(tail)-1]
	slope := (t1 - t0) / float64(len(tail)-1) // degrees C per minute

	switch {
	case slope > 0.15 && t1 >= 26:
		return RoomCooking
	case slope > 0.05:
		return RoomHeating
	case slope < -0.05:
		return RoomCooling
	default:
		return RoomStable
	}
}
