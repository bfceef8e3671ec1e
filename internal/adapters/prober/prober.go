// Package prober observes a tunnel's exit point by making requests through
// its local SOCKS5 proxy.
package prober

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/melih/tunnelwatch/internal/core/domain"
	"github.com/melih/tunnelwatch/internal/log"
	"github.com/melih/tunnelwatch/internal/metrics"
)

const (
	TransportNetHTTP  = "nethttp"
	TransportFastHTTP = "fasthttp"

	maxBodySize    = 64 << 10
	defaultTimeout = 10 * time.Second
)

var errBadStatus = errors.New("unexpected status")

// Config configures a Prober.
type Config struct {
	Host      string        // where the proxy ports are published
	Timeout   time.Duration // bounds the whole probe, both requests
	IPURL     string        // returns {"origin": "<ip>"} or {"ip": "<ip>"}
	GeoURL    string        // format string taking the ip, returns {"status", "country"}
	Transport string        // nethttp or fasthttp
}

// transport performs a GET through the SOCKS5 proxy at proxyAddr.
type transport interface {
	get(ctx context.Context, proxyAddr, url string) ([]byte, error)
}

// Prober implements ports.ExitProber.
type Prober struct {
	cfg    Config
	tr     transport
	logger zerolog.Logger
}

func New(cfg Config) (*Prober, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.IPURL == "" || cfg.GeoURL == "" {
		return nil, errors.New("prober: ip and geo urls are required")
	}

	var tr transport
	switch cfg.Transport {
	case "", TransportNetHTTP:
		tr = netHTTP{}
	case TransportFastHTTP:
		tr = fastHTTP{}
	default:
		return nil, fmt.Errorf("prober: unknown transport %q", cfg.Transport)
	}
	return &Prober{cfg: cfg, tr: tr, logger: log.WithComponent("prober")}, nil
}

// Probe resolves the public address and country seen through the proxy on
// port. Any failure yields domain.UnknownExitPoint.
func (p *Prober) Probe(ctx context.Context, port domain.Port) domain.ExitPointFact {
	if !port.Known() {
		return domain.UnknownExitPoint
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ProbeDuration)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	proxyAddr := net.JoinHostPort(p.cfg.Host, strconv.Itoa(int(port)))
	logger := p.logger.With().Int("port", int(port)).Logger()

	body, err := p.tr.get(ctx, proxyAddr, p.cfg.IPURL)
	if err != nil {
		return p.fail(logger, "ip", err)
	}
	ip, err := parseOrigin(body)
	if err != nil {
		return p.fail(logger, "ip", err)
	}

	body, err = p.tr.get(ctx, proxyAddr, fmt.Sprintf(p.cfg.GeoURL, ip))
	if err != nil {
		return p.fail(logger, "geo", err)
	}
	country, err := parseCountry(body)
	if err != nil {
		return p.fail(logger, "geo", err)
	}

	logger.Debug().Str("ip", ip).Str("country", country).Dur("took", timer.Duration()).Msg("probe complete")
	return domain.ExitPointFact{Address: ip, Country: country}
}

func (p *Prober) fail(logger zerolog.Logger, stage string, err error) domain.ExitPointFact {
	metrics.ProbeFailures.WithLabelValues(stage).Inc()
	logger.Debug().Err(err).Str("stage", stage).Msg("probe failed")
	return domain.UnknownExitPoint
}

// parseOrigin extracts the caller address from an echo-ip response. Behind
// chained proxies "origin" may list several addresses; the first is ours.
func parseOrigin(body []byte) (string, error) {
	var v struct {
		Origin string `json:"origin"`
		IP     string `json:"ip"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return "", fmt.Errorf("decode ip response: %w", err)
	}
	raw := v.Origin
	if raw == "" {
		raw = v.IP
	}
	first, _, _ := strings.Cut(raw, ",")
	first = strings.TrimSpace(first)
	if net.ParseIP(first) == nil {
		return "", fmt.Errorf("invalid address %q", raw)
	}
	return first, nil
}

func parseCountry(body []byte) (string, error) {
	var v struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Country string `json:"country"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return "", fmt.Errorf("decode geo response: %w", err)
	}
	if v.Status == "fail" {
		return "", fmt.Errorf("geo lookup failed: %s", v.Message)
	}
	if v.Country == "" {
		return domain.Unknown, nil
	}
	return v.Country, nil
}
