package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Unknown marks a fact that could not be determined.
const Unknown = "Unknown"

// TunnelID is the non-negative integer embedded in a tunnel container name.
type TunnelID int

// Padded returns the id zero-padded to three digits, as used by
// configuration artifact names.
func (id TunnelID) Padded() string {
	return fmt.Sprintf("%03d", int(id))
}

// Port is a published host port. NoPort means no mapping was found.
type Port int

const NoPort Port = 0

func (p Port) Known() bool { return p > 0 }

func (p Port) String() string {
	if !p.Known() {
		return "N/A"
	}
	return strconv.Itoa(int(p))
}

func (p Port) MarshalJSON() ([]byte, error) {
	if !p.Known() {
		return json.Marshal("N/A")
	}
	return json.Marshal(int(p))
}

func (p *Port) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*p = Port(n)
		return nil
	}
	*p = NoPort
	return nil
}

// Status is the coarse up/down classification of a tunnel.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// EntrypointFact describes where a tunnel connects in. It is derived from the
// tunnel's configuration artifact and does not change while the process runs.
type EntrypointFact struct {
	Location string `json:"location"`
	Address  string `json:"address"`
}

// UnknownEntrypoint is returned when no artifact could be resolved.
var UnknownEntrypoint = EntrypointFact{Location: Unknown, Address: Unknown}

// ExitPointFact is the externally visible identity observed through a
// tunnel's proxy.
type ExitPointFact struct {
	Address string `json:"address"`
	Country string `json:"country"`
}

var UnknownExitPoint = ExitPointFact{Address: Unknown, Country: Unknown}

// TunnelRecord is the full status of one tunnel. Every field is always set;
// facts that could not be resolved hold Unknown.
type TunnelRecord struct {
	ID                 TunnelID `json:"tunnel_id"`
	Name               string   `json:"tunnel"`
	Port               Port     `json:"port"`
	Status             Status   `json:"status"`
	Uptime             string   `json:"time_alive"`
	EntrypointLocation string   `json:"entrypoint"`
	EntrypointAddress  string   `json:"entrypoint_ip"`
	ExitCountry        string   `json:"exitpoint"`
	ExitAddress        string   `json:"exitpoint_ip"`
	VPNServer          string   `json:"vpn_server"`
	MemoryMB           float64  `json:"memory_mb"`
}

// HealthRecord is the cheap subset of TunnelRecord used for frequent polling.
type HealthRecord struct {
	ID      TunnelID `json:"tunnel_id"`
	Name    string   `json:"tunnel"`
	Port    Port     `json:"port"`
	Status  Status   `json:"status"`
	Healthy bool     `json:"is_healthy"`
}

// FleetSummary wraps a status query result with fleet totals.
type FleetSummary struct {
	Tunnels       []TunnelRecord `json:"tunnels"`
	TotalMemoryMB float64        `json:"total_memory_mb"`
	Count         int            `json:"count"`
}

// HealthSummary wraps a health query result.
type HealthSummary struct {
	Tunnels []HealthRecord `json:"tunnels"`
	Healthy int            `json:"healthy"`
	Count   int            `json:"count"`
}
