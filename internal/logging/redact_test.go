package logging

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/eventtrace/internal/config"
)

func encode(t *testing.T, enc zapcore.Encoder, msg string, fields ...zap.Field) string {
	t.Helper()
	buf, err := enc.EncodeEntry(zapcore.Entry{Time: time.Unix(0, 0), Message: msg}, fields)
	require.NoError(t, err)
	defer buf.Free()
	return buf.String()
}

func TestRedactingEncoder_Fields(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	out := encode(t, enc, "configured",
		zap.String("connection", "Endpoint=collector:4317"),
		zap.String("sink", "tracing"),
	)

	assert.NotContains(t, out, "collector:4317")
	assert.Contains(t, out, `"connection":"[REDACTED]"`)
	assert.Contains(t, out, `"sink":"tracing"`)
}

func TestRedactingEncoder_Patterns(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	out := encode(t, enc, "sending with Bearer abc.def",
		zap.String("detail", "InstrumentationKey=1234;IngestionEndpoint=https://x"),
	)

	assert.NotContains(t, out, "abc.def")
	assert.NotContains(t, out, "1234")
	assert.True(t, strings.Contains(out, "IngestionEndpoint=https://x"))
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{})
	require.NoError(t, err)

	out := encode(t, enc, "plain", zap.String("connection", "visible"))
	assert.Contains(t, out, "visible")
}

func TestRedactingEncoder_InvalidPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{
		Enabled:  true,
		Patterns: []string{"[bad"},
	})
	assert.Error(t, err)
}

func TestSecretField(t *testing.T) {
	f := Secret("connection", config.Secret("Endpoint=x"))
	assert.Equal(t, "[REDACTED:10]", f.String)
}
