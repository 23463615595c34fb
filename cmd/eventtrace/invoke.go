package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/eventtrace/pkg/event"
	"github.com/fyrsmithlabs/eventtrace/pkg/handler"
	"github.com/fyrsmithlabs/eventtrace/pkg/output"
)

var (
	eventPath    string
	unsecureFlag string
	secureFlag   string
	paramsPath   string
	chainCount   int
)

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Run one handler invocation for an event",
	Long: `Run the correlation pipeline for one business event and print the
output parameters as JSON.

The event is read from --event (a file, or - for stdin). Handler
configuration blobs are given inline or as @file.

Examples:
  # Root event, default configuration
  eventtrace invoke --event create.json

  # Tracing sink from a connection string kept in a file
  eventtrace invoke --event create.json --unsecure '{"enabled":true}' --secure @conn.txt

  # Three chained invocations, each child of the previous one
  eventtrace invoke --event create.json --chain 3`,
	Args: cobra.NoArgs,
	RunE: runInvoke,
}

func init() {
	invokeCmd.Flags().StringVar(&eventPath, "event", "-", "event JSON file, - for stdin")
	invokeCmd.Flags().StringVar(&unsecureFlag, "unsecure", "", "unsecured configuration blob or @file")
	invokeCmd.Flags().StringVar(&secureFlag, "secure", "", "secured configuration blob or @file")
	invokeCmd.Flags().StringVar(&paramsPath, "params", "", "JSON file with output parameters from a prior invocation")
	invokeCmd.Flags().IntVar(&chainCount, "chain", 1, "number of chained invocations")
}

func runInvoke(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := loadSettings(configPath)
	if err != nil {
		return err
	}
	proc, err := newProcess(ctx, s)
	if err != nil {
		return err
	}
	defer func() { _ = proc.close(context.Background()) }()

	ev, err := readEvent(cmd.InOrStdin(), eventPath)
	if err != nil {
		return err
	}
	unsecure, err := readBlob(unsecureFlag)
	if err != nil {
		return fmt.Errorf("unsecure configuration: %w", err)
	}
	secure, err := readBlob(secureFlag)
	if err != nil {
		return fmt.Errorf("secure configuration: %w", err)
	}
	params, err := readParams(paramsPath)
	if err != nil {
		return err
	}

	h := handler.New(unsecure, secure,
		handler.WithLogger(proc.logger),
		handler.WithMeter(proc.telemetry.Meter("eventtrace")),
	)
	defer func() { _ = h.Close(context.Background()) }()

	field := h.Config().OutputField
	out, err := invoke(ctx, h, ev, params, field, chainCount)
	if err != nil {
		return err
	}
	return writeParams(cmd.OutOrStdout(), out)
}

// invoke runs n invocations. Each one after the first takes the previous
// output value as its explicit parent.
func invoke(ctx context.Context, h *handler.Handler, ev *event.Context, params output.Params, field string, n int) (output.Params, error) {
	if n < 1 {
		return nil, fmt.Errorf("chain must be at least 1, got %d", n)
	}
	if params == nil {
		params = output.Params{}
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			next := *ev
			next.Input = make(map[string]string, len(ev.Input)+1)
			for k, v := range ev.Input {
				next.Input[k] = v
			}
			next.Input[event.ParamTraceParent] = params[field]
			ev = &next
		}
		h.Execute(ctx, ev, params)
	}
	return params, nil
}

func readEvent(stdin io.Reader, path string) (*event.Context, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading event: %w", err)
	}
	var ev event.Context
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("parsing event: %w", err)
	}
	return &ev, nil
}

// readBlob returns v, or the contents of the file it names when it starts
// with @.
func readBlob(v string) (string, error) {
	if !strings.HasPrefix(v, "@") {
		return v, nil
	}
	data, err := os.ReadFile(strings.TrimPrefix(v, "@"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readParams(path string) (output.Params, error) {
	if path == "" {
		return output.Params{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading params: %w", err)
	}
	params := output.Params{}
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("parsing params: %w", err)
	}
	return params, nil
}

func writeParams(w io.Writer, params output.Params) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(params)
}
