package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable, e.g.
// TUNNELWATCH_LISTEN_ADDR.
const Prefix = "TUNNELWATCH"

type Settings struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8000"`

	// RootDir holds start.sh, stop.sh and, by default, the vpn-configs directory.
	RootDir        string `envconfig:"ROOT_DIR" default:"."`
	ConfigsDir     string `envconfig:"CONFIGS_DIR" default:""`
	ArtifactSuffix string `envconfig:"ARTIFACT_SUFFIX" default:".tcp.ovpn"`
	ProviderDomain string `envconfig:"PROVIDER_DOMAIN" default:"nordvpn.com"`

	ContainerPrefix string `envconfig:"CONTAINER_PREFIX" default:"llustr-proxy-tunnel-"`
	DisplayPrefix   string `envconfig:"DISPLAY_PREFIX" default:"LLUSTR"`
	RuntimeBackend  string `envconfig:"RUNTIME_BACKEND" default:"sdk"`
	DockerHost      string `envconfig:"DOCKER_HOST" default:""`
	IncludeStopped  bool   `envconfig:"INCLUDE_STOPPED" default:"false"`
	LogsTail        string `envconfig:"LOGS_TAIL" default:"all"`

	ProbeTransport string        `envconfig:"PROBE_TRANSPORT" default:"nethttp"`
	ProbeHost      string        `envconfig:"PROBE_HOST" default:"127.0.0.1"`
	ProbeTimeout   time.Duration `envconfig:"PROBE_TIMEOUT" default:"10s"`
	ProbeIPURL     string        `envconfig:"PROBE_IP_URL" default:"http://httpbin.org/ip"`
	ProbeGeoURL    string        `envconfig:"PROBE_GEO_URL" default:"http://ip-api.com/json/%s"`

	MaxConcurrency int           `envconfig:"MAX_CONCURRENCY" default:"16"`
	ReplaceGrace   time.Duration `envconfig:"REPLACE_GRACE" default:"2s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON  bool   `envconfig:"LOG_JSON" default:"false"`
}

// Load reads an optional .env file from the working directory, then the
// environment. Variables already set in the environment win over .env.
func Load() (Settings, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Settings{}, fmt.Errorf("load .env: %w", err)
		}
	}

	var s Settings
	if err := envconfig.Process(Prefix, &s); err != nil {
		return Settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	if s.ConfigsDir == "" {
		s.ConfigsDir = filepath.Join(s.RootDir, "vpn-configs")
	}
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	switch s.RuntimeBackend {
	case "sdk", "cli":
	default:
		return fmt.Errorf("invalid runtime backend %q (want sdk or cli)", s.RuntimeBackend)
	}
	switch s.ProbeTransport {
	case "nethttp", "fasthttp":
	default:
		return fmt.Errorf("invalid probe transport %q (want nethttp or fasthttp)", s.ProbeTransport)
	}
	if s.ContainerPrefix == "" {
		return fmt.Errorf("container prefix must not be empty")
	}
	if s.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}
	if s.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1")
	}
	return nil
}
