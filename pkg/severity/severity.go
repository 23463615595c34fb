// Package severity defines the ordered severity scale used to gate telemetry
// records against per-sink minimum levels.
package severity

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/eventtrace/internal/logging"
)

// Level is a record severity. Higher values are more severe.
type Level int8

const (
	Trace Level = iota
	Debug
	Information
	Warning
	Error
	Critical
)

// Default is used whenever a level is missing or cannot be parsed.
const Default = Information

var names = [...]string{
	Trace:       "Trace",
	Debug:       "Debug",
	Information: "Information",
	Warning:     "Warning",
	Error:       "Error",
	Critical:    "Critical",
}

// aliases maps lower-cased spellings accepted by Parse onto levels.
var aliases = map[string]Level{
	"trace":       Trace,
	"debug":       Debug,
	"information": Information,
	"info":        Information,
	"warning":     Warning,
	"warn":        Warning,
	"error":       Error,
	"critical":    Critical,
	"fatal":       Critical,
}

// All returns every level in ascending order.
func All() []Level {
	return []Level{Trace, Debug, Information, Warning, Error, Critical}
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l >= Trace && l <= Critical
}

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Level(%d)", int8(l))
	}
	return names[l]
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown values decode
// to Default rather than failing.
func (l *Level) UnmarshalText(text []byte) error {
	*l = ParseOrDefault(string(text))
	return nil
}

// Parse converts a level name (case-insensitive) or its ordinal ("0".."5")
// into a Level.
func Parse(s string) (Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Default, fmt.Errorf("empty severity level")
	}
	if l, ok := aliases[strings.ToLower(s)]; ok {
		return l, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n >= int(Trace) && n <= int(Critical) {
			return Level(n), nil
		}
	}
	return Default, fmt.Errorf("unknown severity level %q", s)
}

// ParseOrDefault is Parse with errors collapsed to Default.
func ParseOrDefault(s string) Level {
	l, err := Parse(s)
	if err != nil {
		return Default
	}
	return l
}

// ShouldEmit reports whether a record at level passes a sink whose minimum
// is min. An out-of-range minimum is treated as Default.
func ShouldEmit(level, min Level) bool {
	if !min.Valid() {
		min = Default
	}
	return level >= min
}

// ZapLevel maps l onto the zap level used by the local logger sink.
// Critical shares ErrorLevel so that logging never panics or exits.
func (l Level) ZapLevel() zapcore.Level {
	switch l {
	case Trace:
		return logging.TraceLevel
	case Debug:
		return zapcore.DebugLevel
	case Warning:
		return zapcore.WarnLevel
	case Error, Critical:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// BackendName returns the severity name reported to tracing backends, which
// only distinguish Critical, Error, Warning and Information.
func (l Level) BackendName() string {
	switch l {
	case Critical, Error, Warning:
		return l.String()
	default:
		return Information.String()
	}
}
