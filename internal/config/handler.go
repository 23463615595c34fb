package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Sink names accepted in the "sinks" block and the secured blob.
const (
	SinkLogger  = "logger"
	SinkTracing = "tracing"
	SinkBus     = "bus"
)

// SinkNames lists the sinks in dispatch order.
var SinkNames = []string{SinkLogger, SinkTracing, SinkBus}

const (
	DefaultOutputField = "TraceParent"
	DefaultLogLevel    = "Information"
	DefaultTimeout     = 5 * time.Second
	DefaultBusSubject  = "eventtrace.records"
)

// SinkSettings is the resolved configuration of one sink. LogLevel stays a
// string here; callers normalise it with severity.ParseOrDefault.
type SinkSettings struct {
	Enabled    bool
	LogLevel   string
	Connection Secret
	Timeout    time.Duration
	Subject    string
}

// HandlerConfig is the resolved configuration of one handler instance.
type HandlerConfig struct {
	OutputField   string
	Append        bool
	RequireFields bool
	Sinks         map[string]SinkSettings
}

// Sink returns the settings for name, or disabled defaults.
func (c *HandlerConfig) Sink(name string) SinkSettings {
	if s, ok := c.Sinks[name]; ok {
		return s
	}
	return defaultSink(name)
}

type rawSink struct {
	Enabled  *bool    `koanf:"enabled"`
	LogLevel string   `koanf:"logLevel"`
	Timeout  Duration `koanf:"timeout"`
	Subject  string   `koanf:"subject"`
}

type rawHandlerConfig struct {
	Enabled       bool               `koanf:"enabled"`
	LogLevel      string             `koanf:"logLevel"`
	OutputField   string             `koanf:"outputField"`
	Append        bool               `koanf:"append"`
	RequireFields bool               `koanf:"requireFields"`
	Timeout       Duration           `koanf:"timeout"`
	Sinks         map[string]rawSink `koanf:"sinks"`
}

func defaultSink(name string) SinkSettings {
	s := SinkSettings{LogLevel: DefaultLogLevel, Timeout: DefaultTimeout}
	if name == SinkBus {
		s.Subject = DefaultBusSubject
	}
	return s
}

// DefaultHandlerConfig returns the safe fallback: every sink disabled,
// Information level, output to TraceParent, overwrite mode.
func DefaultHandlerConfig() *HandlerConfig {
	cfg := &HandlerConfig{
		OutputField: DefaultOutputField,
		Sinks:       make(map[string]SinkSettings, len(SinkNames)),
	}
	for _, name := range SinkNames {
		cfg.Sinks[name] = defaultSink(name)
	}
	return cfg
}

// ParseHandlerConfig builds a HandlerConfig from the unsecured (JSON or
// YAML) and secured blobs supplied at handler registration.
//
// It never fails construction: the returned config is always usable. A
// non-nil error describes what was ignored so the caller can log it. A
// malformed unsecured blob yields DefaultHandlerConfig.
func ParseHandlerConfig(unsecure, secure string) (*HandlerConfig, error) {
	var errs []error

	cfg, err := parseUnsecure(unsecure)
	if err != nil {
		errs = append(errs, fmt.Errorf("unsecured configuration: %w", err))
		cfg = DefaultHandlerConfig()
	}

	conns, err := parseSecure(secure)
	if err != nil {
		errs = append(errs, fmt.Errorf("secured configuration: %w", err))
	}
	for name, conn := range conns {
		s := cfg.Sink(name)
		s.Connection = conn
		cfg.Sinks[name] = s
	}

	return cfg, errors.Join(errs...)
}

func parseUnsecure(blob string) (*HandlerConfig, error) {
	cfg := DefaultHandlerConfig()
	if strings.TrimSpace(blob) == "" {
		return cfg, nil
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider([]byte(blob)), yaml.Parser()); err != nil {
		return nil, err
	}

	var raw rawHandlerConfig
	if err := k.Unmarshal("", &raw); err != nil {
		return nil, err
	}

	if raw.OutputField != "" {
		cfg.OutputField = raw.OutputField
	}
	cfg.Append = raw.Append
	cfg.RequireFields = raw.RequireFields

	base := SinkSettings{
		Enabled:  raw.Enabled,
		LogLevel: raw.LogLevel,
		Timeout:  raw.Timeout.Duration(),
	}
	if base.LogLevel == "" {
		base.LogLevel = DefaultLogLevel
	}
	if base.Timeout <= 0 {
		base.Timeout = DefaultTimeout
	}

	// Legacy single-sink shape: top-level settings describe the tracing sink.
	if len(raw.Sinks) == 0 {
		s := cfg.Sinks[SinkTracing]
		s.Enabled, s.LogLevel, s.Timeout = base.Enabled, base.LogLevel, base.Timeout
		cfg.Sinks[SinkTracing] = s
		return cfg, nil
	}

	for key, rs := range raw.Sinks {
		name := strings.ToLower(strings.TrimSpace(key))
		s, known := cfg.Sinks[name]
		if !known {
			return nil, fmt.Errorf("unknown sink %q", key)
		}
		s.Enabled = base.Enabled
		if rs.Enabled != nil {
			s.Enabled = *rs.Enabled
		}
		s.LogLevel = base.LogLevel
		if rs.LogLevel != "" {
			s.LogLevel = rs.LogLevel
		}
		s.Timeout = base.Timeout
		if d := rs.Timeout.Duration(); d > 0 {
			s.Timeout = d
		}
		if rs.Subject != "" {
			s.Subject = rs.Subject
		}
		cfg.Sinks[name] = s
	}

	return cfg, nil
}

// parseSecure accepts either a bare connection string, which belongs to the
// tracing sink, or an object keyed by sink name.
func parseSecure(blob string) (map[string]Secret, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, nil
	}
	if !strings.HasPrefix(blob, "{") {
		return map[string]Secret{SinkTracing: Secret(blob)}, nil
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider([]byte(blob)), yaml.Parser()); err != nil {
		return nil, err
	}

	conns := make(map[string]Secret)
	for key, value := range k.All() {
		name := strings.ToLower(key)
		known := false
		for _, n := range SinkNames {
			if n == name {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown sink %q", key)
		}
		conns[name] = Secret(fmt.Sprint(value))
	}
	return conns, nil
}
