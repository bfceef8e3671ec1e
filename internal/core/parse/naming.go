package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/melih/tunnelwatch/internal/core/domain"
)

const (
	runningMarker   = "Up"
	unhealthyMarker = "unhealthy"
)

// Naming maps container names to tunnel ids using the "<prefix><id>"
// convention.
type Naming struct {
	prefix  string
	pattern *regexp.Regexp
}

func NewNaming(prefix string) Naming {
	return Naming{
		prefix:  prefix,
		pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `(\d+)$`),
	}
}

func (n Naming) Prefix() string { return n.prefix }

// ContainerName returns the container name for id.
func (n Naming) ContainerName(id domain.TunnelID) string {
	return n.prefix + strconv.Itoa(int(id))
}

// TunnelID extracts the id from a container name. Runtime names may carry a
// leading slash. ok is false for names outside the convention.
func (n Naming) TunnelID(name string) (domain.TunnelID, bool) {
	m := n.pattern.FindStringSubmatch(strings.TrimPrefix(name, "/"))
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return domain.TunnelID(id), true
}

// DisplayName renders the human name of a tunnel, e.g. "LLUSTR[3]".
func DisplayName(prefix string, id domain.TunnelID) string {
	return fmt.Sprintf("%s[%d]", prefix, int(id))
}

// ClassifyStatus reports a tunnel as up only when the runtime status says it
// is running and does not flag it unhealthy.
func ClassifyStatus(status string) domain.Status {
	if strings.Contains(status, runningMarker) && !strings.Contains(status, unhealthyMarker) {
		return domain.StatusUp
	}
	return domain.StatusDown
}

var hostPortPattern = regexp.MustCompile(`([0-9A-Fa-f.:\[\]]*):(\d+)->`)

// HostPort extracts the host port of the first published mapping in a
// runtime port string such as "0.0.0.0:1081->1080/tcp, :::1081->1080/tcp".
func HostPort(ports string) domain.Port {
	m := hostPortPattern.FindStringSubmatch(ports)
	if m == nil {
		return domain.NoPort
	}
	p, err := strconv.Atoi(m[2])
	if err != nil || p <= 0 || p > 65535 {
		return domain.NoPort
	}
	return domain.Port(p)
}
