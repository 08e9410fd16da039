// v2
// internal/telemetry/shelly.go
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Reading is one power measurement from a smart plug. Fields are pointers
// because either generation of the endpoint may omit any of them; a nil
// field is written as a blank column.
type Reading struct {
	Power   *float64
	Voltage *float64
	Current *float64
}

// ShellyClient speaks to Shelly-style smart-plug endpoints, trying the Gen2
// RPC surface first and falling back to the legacy Gen1 status call.
type ShellyClient struct {
	http *http.Client
}

// NewShellyClient returns a client with the given request timeout.
func NewShellyClient(timeout time.Duration) *ShellyClient {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ShellyClient{http: &http.Client{Timeout: timeout}}
}

func (c *ShellyClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Read polls the plug at addr (host or host:port), preferring the Gen2
// protocol and accepting the first one that answers.
func (c *ShellyClient) Read(ctx context.Context, addr string) (Reading, error) {
	r, err2 := c.readGen2(ctx, addr)
	if err2 == nil {
		return r, nil
	}
	r, err1 := c.readGen1(ctx, addr)
	if err1 == nil {
		return r, nil
	}
	return Reading{}, fmt.Errorf("gen2: %v; gen1: %w", err2, err1)
}

type gen2Status struct {
	Voltage *float64 `json:"voltage"`
	APower  *float64 `json:"apower"`
	Power   *float64 `json:"power"`
	Current *float64 `json:"current"`
}

func (c *ShellyClient) readGen2(ctx context.Context, addr string) (Reading, error) {
	var st gen2Status
	if err := c.getJSON(ctx, "http://"+addr+"/rpc/Switch.GetStatus?id=0", &st); err != nil {
		return Reading{}, err
	}
	p := st.APower
	if p == nil {
		p = st.Power
	}
	return Reading{Power: p, Voltage: st.Voltage, Current: st.Current}, nil
}

type gen1Meter struct {
	Voltage *float64 `json:"voltage"`
	Power   *float64 `json:"power"`
	APower  *float64 `json:"apower"`
	Current *float64 `json:"current"`
}

type gen1Status struct {
	Meters  []gen1Meter `json:"meters"`
	EMeter  []gen1Meter `json:"emeter"`
	Voltage *float64    `json:"voltage"`
	Power   *float64    `json:"power"`
	Current *float64    `json:"current"`
}

func (c *ShellyClient) readGen1(ctx context.Context, addr string) (Reading, error) {
	var st gen1Status
	if err := c.getJSON(ctx, "http://"+addr+"/status", &st); err != nil {
		return Reading{}, err
	}
	var r Reading
	meters := st.Meters
	if len(meters) == 0 {
		meters = st.EMeter
	}
	if len(meters) > 0 {
		m := meters[0]
		r.Voltage = m.Voltage
		r.Power = m.Power
		if r.Power == nil {
			r.Power = m.APower
		}
		r.Current = m.Current
	}
	if r.Voltage == nil {
		r.Voltage = st.Voltage
	}
	if r.Power == nil {
		r.Power = st.Power
	}
	if r.Current == nil {
		r.Current = st.Current
	}
	return r, nil
}

type deviceInfo struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// DeviceName asks the plug for its configured name. When the endpoint does
// not answer, a synthetic Shelly_<addr> name is derived so a logger can
// still be registered.
func (c *ShellyClient) DeviceName(ctx context.Context, addr string) string {
	var info deviceInfo
	if err := c.getJSON(ctx, "http://"+addr+"/rpc/Shelly.GetDeviceInfo", &info); err == nil {
		name := strings.TrimSpace(info.Name)
		if name == "" {
			name = strings.TrimSpace(info.ID)
		}
		if name != "" {
			return name
		}
	}
	return "Shelly_" + strings.NewReplacer(".", "-", ":", "-").Replace(addr)
}

// deriveVoltage fills a missing voltage from power and current when both
// are present and the current is non-negligible.
func deriveVoltage(r Reading) Reading {
	if r.Voltage == nil && r.Power != nil && r.Current != nil && *r.Current > 1e-3 {
		v := *r.Power / *r.Current
		r.Voltage = &v
	}
	return r
}
