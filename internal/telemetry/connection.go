package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidConnectionString is wrapped by every ParseConnectionString failure.
var ErrInvalidConnectionString = errors.New("invalid connection string")

// ParseConnectionString builds an enabled Config from a semicolon separated
// key=value connection string. Metrics export is off; only the trace
// pipeline is built for sink connections.
func ParseConnectionString(s string) (*Config, error) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Insecure = false
	cfg.Metrics.Enabled = false
	cfg.Endpoint = ""

	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidConnectionString)
	}

	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: segment %q is not key=value", ErrInvalidConnectionString, part)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if name, isHeader := cutPrefixFold(key, "header."); isHeader {
			if name == "" {
				return nil, fmt.Errorf("%w: empty header name", ErrInvalidConnectionString)
			}
			if cfg.Headers == nil {
				cfg.Headers = make(map[string]string)
			}
			cfg.Headers[strings.ToLower(name)] = value
			continue
		}

		if err := applyConnectionKey(cfg, key, value); err != nil {
			return nil, err
		}
	}

	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: missing Endpoint", ErrInvalidConnectionString)
	}
	if strings.HasPrefix(strings.ToLower(cfg.Endpoint), "http://") {
		cfg.Insecure = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}
	return cfg, nil
}

func applyConnectionKey(cfg *Config, key, value string) error {
	switch strings.ToLower(key) {
	case "endpoint", "ingestionendpoint":
		cfg.Endpoint = value
	case "instrumentationkey", "liveendpoint", "applicationid":
		// Application Insights keys with no OTLP counterpart
	case "protocol":
		switch strings.ToLower(value) {
		case ProtocolGRPC:
			cfg.Protocol = ProtocolGRPC
		case ProtocolHTTP, "http":
			cfg.Protocol = ProtocolHTTP
		default:
			return fmt.Errorf("%w: unsupported Protocol %q", ErrInvalidConnectionString, value)
		}
	case "insecure":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: Insecure: %v", ErrInvalidConnectionString, err)
		}
		cfg.Insecure = b
	case "tlsskipverify":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: TLSSkipVerify: %v", ErrInvalidConnectionString, err)
		}
		cfg.TLSSkipVerify = b
	case "servicename":
		cfg.ServiceName = value
	case "serviceversion":
		cfg.ServiceVersion = value
	case "samplerate":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: SampleRate: %v", ErrInvalidConnectionString, err)
		}
		cfg.Sampling.Rate = f
	default:
		return fmt.Errorf("%w: unknown key %q", ErrInvalidConnectionString, key)
	}
	return nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
