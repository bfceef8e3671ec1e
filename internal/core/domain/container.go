package domain

// ContainerDescriptor is one tunnel container as seen by a single discovery
// call. It is never cached between calls.
type ContainerDescriptor struct {
	Handle   string   `json:"handle"` // runtime container id
	TunnelID TunnelID `json:"tunnel_id"`
	Name     string   `json:"name"`
	State    string   `json:"state"`  // running, restarting, exited, etc.
	Ports    string   `json:"ports"`  // raw mapping text, e.g. "0.0.0.0:1081->1080/tcp"
	Status   string   `json:"status"` // raw status text, e.g. "Up 3 hours (healthy)"
}

// Introspection holds the per-container facts returned by a batch query.
type Introspection struct {
	CreatedAt   string // runtime timestamp, RFC 3339 with nanoseconds
	MemoryUsage string // "<used> / <limit>", e.g. "512MiB / 2GiB"
}
