// v1
// internal/replay/binding.go
package replay

import (
	"encoding/json"
	"fmt"
	"os"
)

// Binding associates a virtual sensor with a real physical source. The
// config file is owned and edited by the UI collaborator; this core only
// reads it.
type Binding struct {
	By   string `json:"by"`
	GPIO int    `json:"gpio,omitempty"`
	IP   string `json:"ip,omitempty"`
}

const (
	BindByDHT   = "dht"
	BindByMeter = "meter"
)

// LoadBindings reads the sensor-binding map (sensor name -> binding). A
// missing file yields an empty map: sensors without bindings simply have no
// hardware fallback.
func LoadBindings(path string) (map[string]Binding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Binding{}, nil
		}
		return nil, fmt.Errorf("read bindings: %w", err)
	}
	out := map[string]Binding{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse bindings: %w", err)
	}
	return out, nil
}
