package parse

import (
	"strings"

	"github.com/melih/tunnelwatch/internal/core/domain"
)

// VPNServerMarker is logged by the tunnel image once the VPN session is up.
const VPNServerMarker = "Connected to VPN server"

var logNoise = map[string]bool{":": true, "-": true, "=": true, "at": true, "is": true}

// VPNServer returns the server named on the first marker line in logs.
func VPNServer(logs string) string {
	for _, line := range strings.Split(logs, "\n") {
		_, rest, found := strings.Cut(line, VPNServerMarker)
		if !found {
			continue
		}
		for _, tok := range strings.Fields(rest) {
			if logNoise[strings.ToLower(tok)] {
				continue
			}
			tok = strings.Trim(tok, `:=-'",;()[]`)
			if tok != "" {
				return tok
			}
		}
	}
	return domain.Unknown
}
