package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoVirtualService is returned when load balancing is enabled without a virtual address.
	ErrNoVirtualService = errors.New("load balancer enabled but no virtual service is defined")
	// ErrNoBackends is returned when the virtual service has no backends.
	ErrNoBackends = errors.New("virtual service has an empty backend list")
)

// ControllerConfig holds the event loop and polling settings.
type ControllerConfig struct {
	StatsInterval string `yaml:"stats_interval"`
	EventBuffer   int    `yaml:"event_buffer"`
	// IdleTimeout applies to L2 and NAT rules. Zero means rules never expire.
	IdleTimeout uint16 `yaml:"idle_timeout"`
}

// BackendConfig is one real host behind the virtual service.
type BackendConfig struct {
	IP   string `yaml:"ip"`
	MAC  string `yaml:"mac"`
	Port uint32 `yaml:"port"`
}

// LoadBalancerConfig publishes a virtual service.
type LoadBalancerConfig struct {
	Enabled    bool            `yaml:"enabled"`
	VirtualIP  string          `yaml:"virtual_ip"`
	VirtualMAC string          `yaml:"virtual_mac"`
	Backends   []BackendConfig `yaml:"backends"`
}

// MitigationConfig controls the anomaly mitigation loop.
type MitigationConfig struct {
	Enabled bool `yaml:"enabled"`
	// Mode is "l2" (block by source MAC) or "l3" (block by source IPv4).
	Mode          string  `yaml:"mode"`
	MinPacketRate float64 `yaml:"min_packet_rate"`
	SkipDropRules bool    `yaml:"skip_drop_rules"`
}

// ThresholdConfig parameterizes the built-in threshold classifier.
type ThresholdConfig struct {
	PacketRate    float64 `yaml:"packet_rate"`
	MaxPacketSize float64 `yaml:"max_packet_size"`
	ByteRate      float64 `yaml:"byte_rate"`
}

// ClassifierConfig selects the anomaly classifier.
type ClassifierConfig struct {
	// Type is one of "threshold", "tree" or "remote".
	Type        string          `yaml:"type"`
	Threshold   ThresholdConfig `yaml:"threshold"`
	ModelPath   string          `yaml:"model_path"`
	ServiceAddr string          `yaml:"service_addr"`
	Timeout     string          `yaml:"timeout"`
	ListenAddr  string          `yaml:"listen_addr"`
}

// OVSConfig routes rule installs to a local Open vSwitch.
type OVSConfig struct {
	Enabled bool `yaml:"enabled"`
	Sudo    bool `yaml:"sudo"`
	// Bridges maps a datapath id (decimal or 0x-prefixed hex) to a bridge name.
	Bridges map[string]string `yaml:"bridges"`
}

// ChannelConfig holds the switch channel transport settings.
type ChannelConfig struct {
	NATSURL        string    `yaml:"nats_url"`
	SubjectPrefix  string    `yaml:"subject_prefix"`
	ConnectTimeout string    `yaml:"connect_timeout"`
	OVS            OVSConfig `yaml:"ovs"`
}

// ClickHouseConfig holds the connection details for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// CSVConfig holds the settings for the CSV sample writer.
type CSVConfig struct {
	Path string `yaml:"path"`
}

// WriterDef defines a single sample writer.
type WriterDef struct {
	Type          string           `yaml:"type"`
	Enabled       bool             `yaml:"enabled"`
	FlushInterval string           `yaml:"flush_interval"`
	CSV           CSVConfig        `yaml:"csv"`
	ClickHouse    ClickHouseConfig `yaml:"clickhouse"`
}

// RecorderConfig controls sample recording.
type RecorderConfig struct {
	Enabled    bool        `yaml:"enabled"`
	BufferSize int         `yaml:"buffer_size"`
	Writers    []WriterDef `yaml:"writers"`
}

// AlerterConfig defines the configuration for the block alerter.
type AlerterConfig struct {
	Enabled       bool   `yaml:"enabled"`
	CheckInterval string `yaml:"check_interval"`
}

// SMTPConfig holds the configuration for the email notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// APIConfig holds the settings for the admin API server.
type APIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Controller   ControllerConfig   `yaml:"controller"`
	LoadBalancer LoadBalancerConfig `yaml:"load_balancer"`
	Mitigation   MitigationConfig   `yaml:"mitigation"`
	Classifier   ClassifierConfig   `yaml:"classifier"`
	Channel      ChannelConfig      `yaml:"channel"`
	Recorder     RecorderConfig     `yaml:"recorder"`
	Alerter      AlerterConfig      `yaml:"alerter"`
	SMTP         SMTPConfig         `yaml:"smtp"`
	API          APIConfig          `yaml:"api"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// Default returns a configuration with every optional field filled in.
func Default() *Config {
	return &Config{
		Controller: ControllerConfig{
			StatsInterval: "2s",
			EventBuffer:   1024,
		},
		Mitigation: MitigationConfig{
			Mode:          "l2",
			MinPacketRate: 5,
		},
		Classifier: ClassifierConfig{
			Type: "threshold",
			Threshold: ThresholdConfig{
				PacketRate:    100,
				MaxPacketSize: 128,
			},
			Timeout:    "200ms",
			ListenAddr: ":50061",
		},
		Channel: ChannelConfig{
			NATSURL:        "nats://127.0.0.1:4222",
			SubjectPrefix:  "sdn",
			ConnectTimeout: "30s",
		},
		Recorder: RecorderConfig{
			BufferSize: 4096,
		},
		Alerter: AlerterConfig{
			CheckInterval: "1m",
		},
		API: APIConfig{
			ListenAddr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads the configuration from a YAML file, applies defaults and validates it.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML into a defaulted, validated Config.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors that must stop the controller
// before it accepts any switch connection.
func (c *Config) Validate() error {
	interval, err := time.ParseDuration(c.Controller.StatsInterval)
	if err != nil {
		return fmt.Errorf("invalid controller stats_interval: %w", err)
	}
	if interval <= 0 {
		return fmt.Errorf("controller stats_interval must be a positive duration")
	}
	if c.Controller.EventBuffer < 0 {
		return fmt.Errorf("controller event_buffer must not be negative")
	}

	if c.LoadBalancer.Enabled {
		if err := c.LoadBalancer.validate(); err != nil {
			return err
		}
	}

	if c.Mitigation.Enabled {
		switch c.Mitigation.Mode {
		case "l2", "l3":
		default:
			return fmt.Errorf("invalid mitigation mode %q: must be l2 or l3", c.Mitigation.Mode)
		}
		if c.Mitigation.MinPacketRate < 0 {
			return fmt.Errorf("mitigation min_packet_rate must not be negative")
		}
		if err := c.Classifier.validate(); err != nil {
			return err
		}
	}

	if _, err := time.ParseDuration(c.Channel.ConnectTimeout); err != nil {
		return fmt.Errorf("invalid channel connect_timeout: %w", err)
	}
	if c.Channel.SubjectPrefix == "" {
		return fmt.Errorf("channel subject_prefix must not be empty")
	}

	if c.Alerter.Enabled {
		if _, err := time.ParseDuration(c.Alerter.CheckInterval); err != nil {
			return fmt.Errorf("invalid alerter check_interval: %w", err)
		}
	}
	return nil
}

func (lb *LoadBalancerConfig) validate() error {
	if lb.VirtualIP == "" || lb.VirtualMAC == "" {
		return ErrNoVirtualService
	}
	if net.ParseIP(lb.VirtualIP).To4() == nil {
		return fmt.Errorf("invalid virtual_ip %q", lb.VirtualIP)
	}
	if _, err := net.ParseMAC(lb.VirtualMAC); err != nil {
		return fmt.Errorf("invalid virtual_mac %q: %w", lb.VirtualMAC, err)
	}
	if len(lb.Backends) == 0 {
		return ErrNoBackends
	}
	for i, b := range lb.Backends {
		if net.ParseIP(b.IP).To4() == nil {
			return fmt.Errorf("backend %d: invalid ip %q", i, b.IP)
		}
		if _, err := net.ParseMAC(b.MAC); err != nil {
			return fmt.Errorf("backend %d: invalid mac %q: %w", i, b.MAC, err)
		}
		if b.Port == 0 {
			return fmt.Errorf("backend %d: attachment port must be set", i)
		}
	}
	return nil
}

func (c *ClassifierConfig) validate() error {
	switch strings.ToLower(c.Type) {
	case "threshold":
	case "tree":
		if c.ModelPath == "" {
			return fmt.Errorf("classifier type tree requires model_path")
		}
	case "remote":
		if c.ServiceAddr == "" {
			return fmt.Errorf("classifier type remote requires service_addr")
		}
	default:
		return fmt.Errorf("unknown classifier type %q", c.Type)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid classifier timeout: %w", err)
	}
	return nil
}
