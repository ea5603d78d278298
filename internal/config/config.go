package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/parleylabs/parley-core/internal/audio"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type NodeConfig struct {
	ID                string `yaml:"id"`
	HeartbeatInterval int    `yaml:"heartbeat_interval_ms"`
	HeartbeatTimeout  int    `yaml:"heartbeat_timeout_ms"`
}

type JournalConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxUtterances int    `yaml:"max_utterances"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

// CapabilityConfig is the static capability table for the configured
// backend: the enumerable set of values negotiation may select from. The
// first entry of each list is the backend default for an unconstrained
// dimension.
type CapabilityConfig struct {
	SampleRates []uint32 `yaml:"sample_rates"`
	Channels    []int    `yaml:"channels"`
	Bitrates    []uint16 `yaml:"bitrates"`
	Containers  []string `yaml:"containers"`
}

// Resolve parses the textual capability table into negotiation inputs.
func (c CapabilityConfig) Resolve() (audio.Capabilities, error) {
	caps := audio.Capabilities{
		SampleRates: append([]uint32(nil), c.SampleRates...),
		Bitrates:    append([]uint16(nil), c.Bitrates...),
	}
	for _, n := range c.Channels {
		ch, err := audio.ParseChannels(n)
		if err != nil {
			return audio.Capabilities{}, err
		}
		caps.Channels = append(caps.Channels, ch)
	}
	for _, s := range c.Containers {
		container, err := audio.ParseContainer(s)
		if err != nil {
			return audio.Capabilities{}, err
		}
		caps.Containers = append(caps.Containers, container)
	}
	return caps, nil
}

type SynthConfig struct {
	Mode         string           `yaml:"mode"` // mock, exec
	Command      string           `yaml:"command"`
	Voice        string           `yaml:"voice"`
	Language     string           `yaml:"language"`
	Capabilities CapabilityConfig `yaml:"capabilities"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Node        NodeConfig      `yaml:"node"`
	Journal     JournalConfig   `yaml:"journal"`
	Synth       SynthConfig     `yaml:"synth"`
}

func Default() Config {
	return Config{
		RuntimeName: "parley-gateway",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Node: NodeConfig{
			ID:                "parley-node-1",
			HeartbeatInterval: 2000,
			HeartbeatTimeout:  6000,
		},
		Journal: JournalConfig{
			Path:          "./data/parley-utterances.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxUtterances: 10000,
		},
		Synth: SynthConfig{
			Mode:     "mock",
			Voice:    "en-US-neutral",
			Language: "en-US",
			Capabilities: CapabilityConfig{
				SampleRates: []uint32{22050, 16000, 44100, 48000},
				Channels:    []int{1, 2},
				Bitrates:    []uint16{96, 128, 192},
				Containers:  []string{"raw:pcm_s16", "riff:pcm_s16", "mp3", "ogg:opus"},
			},
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "PARLEY_RUNTIME_NAME")
	overrideString(&cfg.Environment, "PARLEY_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "PARLEY_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "PARLEY_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "PARLEY_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "PARLEY_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "PARLEY_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "PARLEY_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "PARLEY_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "PARLEY_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "PARLEY_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "PARLEY_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "PARLEY_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "PARLEY_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "PARLEY_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "PARLEY_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Node.ID, "PARLEY_NODE_ID")
	overrideInt(&cfg.Node.HeartbeatInterval, "PARLEY_NODE_HEARTBEAT_INTERVAL_MS")
	overrideInt(&cfg.Node.HeartbeatTimeout, "PARLEY_NODE_HEARTBEAT_TIMEOUT_MS")
	overrideString(&cfg.Journal.Path, "PARLEY_JOURNAL_PATH")
	overrideString(&cfg.Journal.RetentionMode, "PARLEY_JOURNAL_RETENTION_MODE")
	overrideInt(&cfg.Journal.RetentionDays, "PARLEY_JOURNAL_RETENTION_DAYS")
	overrideInt(&cfg.Journal.MaxUtterances, "PARLEY_JOURNAL_MAX_UTTERANCES")
	overrideBool(&cfg.Journal.VacuumOnStart, "PARLEY_JOURNAL_VACUUM_ON_START")
	overrideString(&cfg.Synth.Mode, "PARLEY_SYNTH_MODE")
	overrideString(&cfg.Synth.Command, "PARLEY_SYNTH_COMMAND")
	overrideString(&cfg.Synth.Voice, "PARLEY_SYNTH_VOICE")
	overrideString(&cfg.Synth.Language, "PARLEY_SYNTH_LANGUAGE")
	overrideStringSlice(&cfg.Synth.Capabilities.Containers, "PARLEY_SYNTH_CONTAINERS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Node.ID == "" {
		return errors.New("node.id must not be empty")
	}
	if cfg.Node.HeartbeatInterval <= 0 {
		return errors.New("node.heartbeat_interval_ms must be positive")
	}
	if cfg.Node.HeartbeatTimeout <= cfg.Node.HeartbeatInterval {
		return errors.New("node.heartbeat_timeout_ms must be greater than heartbeat interval")
	}
	if cfg.Journal.Path == "" && cfg.Journal.RetentionMode != "ephemeral" {
		return errors.New("journal.path must not be empty")
	}
	switch cfg.Journal.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("journal.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Journal.RetentionDays < 0 {
		return errors.New("journal.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	switch cfg.Synth.Mode {
	case "mock", "exec":
	default:
		return errors.New("synth.mode must be one of mock|exec")
	}
	if cfg.Synth.Mode == "exec" && cfg.Synth.Command == "" {
		return errors.New("synth.command must be set when mode=exec")
	}
	if len(cfg.Synth.Capabilities.SampleRates) == 0 {
		return errors.New("synth.capabilities.sample_rates must not be empty")
	}
	if len(cfg.Synth.Capabilities.Channels) == 0 {
		return errors.New("synth.capabilities.channels must not be empty")
	}
	if len(cfg.Synth.Capabilities.Containers) == 0 {
		return errors.New("synth.capabilities.containers must not be empty")
	}
	if _, err := cfg.Synth.Capabilities.Resolve(); err != nil {
		return fmt.Errorf("synth.capabilities invalid: %w", err)
	}
	return nil
}
