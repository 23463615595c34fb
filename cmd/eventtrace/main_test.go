package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/eventtrace/internal/config"
	"github.com/fyrsmithlabs/eventtrace/internal/logging"
	"github.com/fyrsmithlabs/eventtrace/pkg/event"
	"github.com/fyrsmithlabs/eventtrace/pkg/handler"
	"github.com/fyrsmithlabs/eventtrace/pkg/output"
	"github.com/fyrsmithlabs/eventtrace/pkg/tracectx"
)

const loggerOnly = `{"sinks": {"logger": {"enabled": true}}}`

func TestReadEvent_Stdin(t *testing.T) {
	in := strings.NewReader(`{"kind": "create", "stage": 20, "primaryEntity": "account", "inheritedTag": "abc123"}`)

	ev, err := readEvent(in, "-")
	require.NoError(t, err)
	assert.Equal(t, event.KindCreate, ev.Kind)
	assert.Equal(t, 20, ev.Stage)
	assert.Equal(t, "account", ev.PrimaryEntity)
	assert.Equal(t, "abc123", ev.InheritedTag)
}

func TestReadEvent_Invalid(t *testing.T) {
	_, err := readEvent(strings.NewReader("{"), "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing event")

	_, err = readEvent(nil, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading event")
}

func TestReadBlob(t *testing.T) {
	v, err := readBlob(`{"enabled": true}`)
	require.NoError(t, err)
	assert.Equal(t, `{"enabled": true}`, v)

	path := filepath.Join(t.TempDir(), "conn.txt")
	require.NoError(t, os.WriteFile(path, []byte("Endpoint=localhost:4317;Protocol=grpc\n"), 0o600))
	v, err = readBlob("@" + path)
	require.NoError(t, err)
	assert.Equal(t, "Endpoint=localhost:4317;Protocol=grpc", v)

	_, err = readBlob("@" + filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestReadParams(t *testing.T) {
	params, err := readParams("")
	require.NoError(t, err)
	assert.Empty(t, params)

	path := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"TraceParent": "abc123"}`), 0o600))
	params, err = readParams(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", params["TraceParent"])
}

func TestInvoke_Chain(t *testing.T) {
	h := handler.New(loggerOnly, "", handler.WithLogger(logging.NewNop()))
	ev := &event.Context{Kind: event.KindUpdate, Stage: event.StagePreOperation, PrimaryEntity: "contact"}

	first, err := invoke(context.Background(), h, ev, nil, "TraceParent", 1)
	require.NoError(t, err)
	root, err := tracectx.Parse(first["TraceParent"])
	require.NoError(t, err)

	chained, err := invoke(context.Background(), h, ev, nil, "TraceParent", 3)
	require.NoError(t, err)
	last, err := tracectx.Parse(chained["TraceParent"])
	require.NoError(t, err)
	assert.NotEqual(t, root.TraceID(), last.TraceID(), "separate runs start separate traces")
	assert.Empty(t, ev.Input, "the caller's event is not modified")
}

func TestInvoke_PriorParamsPassThrough(t *testing.T) {
	// every sink disabled: the resolved parent is passed through
	h := handler.New("", "", handler.WithLogger(logging.NewNop()))
	ev := &event.Context{Kind: event.KindCreate, InheritedTag: "abc123"}

	out, err := invoke(context.Background(), h, ev, output.Params{"Other": "x"}, "TraceParent", 2)
	require.NoError(t, err)
	assert.Equal(t, "abc123", out["TraceParent"])
	assert.Equal(t, "x", out["Other"])
}

func TestInvokeHelp_TracingExampleEnablesTracing(t *testing.T) {
	assert.Contains(t, invokeCmd.Long, `--unsecure '{"enabled":true}'`)

	h := handler.New(`{"enabled":true}`, "Endpoint=localhost:4317;Protocol=grpc")
	require.NoError(t, h.ConfigError())
	assert.True(t, h.Config().Sink(config.SinkTracing).Enabled)
	assert.False(t, h.Config().Sink(config.SinkLogger).Enabled)
}

func TestInvoke_BadChain(t *testing.T) {
	h := handler.New("", "")
	_, err := invoke(context.Background(), h, &event.Context{}, nil, "TraceParent", 0)
	assert.Error(t, err)
}

func TestWriteParams(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeParams(&buf, output.Params{"TraceParent": "abc"}))

	var got map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, map[string]string{"TraceParent": "abc"}, got)
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventtrace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  format: console
telemetry:
  service_name: crm-host
`), 0o600))

	s, err := loadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "console", s.Logging.Format)
	assert.Equal(t, "crm-host", s.Telemetry.ServiceName)
	assert.False(t, s.Logging.Output.Stdout)
	assert.True(t, s.Logging.Output.Stderr)
	assert.False(t, s.Telemetry.Enabled)
}

func TestNewProcess_Defaults(t *testing.T) {
	s := defaultSettings()
	s.Logging.Output.OTEL = true

	proc, err := newProcess(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, proc.telemetry.IsEnabled())
	assert.NoError(t, proc.close(context.Background()))
}

func TestLevelsCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"levels"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "RANK")
	assert.Less(t, strings.Index(out, "Trace"), strings.Index(out, "Critical"))
	assert.Contains(t, out, "Warning")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "dev\n", buf.String())
}
