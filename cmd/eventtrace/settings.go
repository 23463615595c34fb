package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/eventtrace/internal/config"
	"github.com/fyrsmithlabs/eventtrace/internal/logging"
	"github.com/fyrsmithlabs/eventtrace/internal/telemetry"
)

// settings are the process-level settings of the CLI.
type settings struct {
	Logging   logging.Config   `koanf:"logging"`
	Telemetry telemetry.Config `koanf:"telemetry"`
}

func defaultSettings() *settings {
	s := &settings{
		Logging:   *logging.NewDefaultConfig(),
		Telemetry: *telemetry.NewDefaultConfig(),
	}
	// stdout carries the output parameters
	s.Logging.Output.Stdout = false
	s.Logging.Output.Stderr = true
	return s
}

func loadSettings(path string) (*settings, error) {
	s := defaultSettings()
	if err := config.LoadWithFile(path, s); err != nil {
		return nil, err
	}
	return s, nil
}

// process holds what the process settings produce.
type process struct {
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
}

func newProcess(ctx context.Context, s *settings) (*process, error) {
	var lp log.LoggerProvider
	if s.Logging.Output.OTEL {
		lp = global.GetLoggerProvider()
	}
	logger, err := logging.NewLogger(&s.Logging, lp)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	tel, err := telemetry.New(ctx, &s.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if reason := tel.DegradedReason(); reason != nil {
		logger.Warn(ctx, "telemetry degraded", zap.Error(reason))
	}
	tel.Install()

	return &process{logger: logger, telemetry: tel}, nil
}

func (p *process) close(ctx context.Context) error {
	err := p.telemetry.Shutdown(ctx)
	_ = p.logger.Sync()
	return err
}
