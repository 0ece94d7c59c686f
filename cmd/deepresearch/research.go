package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/tools"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search/brave"
	"github.com/spf13/cobra"
)

const defaultTopic = "System prompt leakage prevention in LLM benchmarks"

func researchCMD(cfgPath *string) *cobra.Command {
	var (
		maxIters    int
		model       string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "deepresearch [topic...]",
		Short: "Research a topic and print a cited JSON report",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-iters") {
				cfg.Agent.MaxIters = maxIters
			}
			if model != "" {
				cfg.LLM.Model = model
			}
			if metricsAddr != "" {
				cfg.Telemetry.MetricsAddr = metricsAddr
			}
			if err := cfg.RequireLLM(); err != nil {
				return err
			}

			topic := strings.TrimSpace(strings.Join(args, " "))
			if topic == "" {
				topic = defaultTopic
			}

			logger := cfg.General.NewLogger(cmd.ErrOrStderr())
			slog.SetDefault(logger)
			tel := telemetry.New()
			if cfg.Telemetry.MetricsAddr != "" {
				stop, err := serveMetrics(cfg.Telemetry.MetricsAddr, tel, logger)
				if err != nil {
					return err
				}
				defer stop()
			}

			researcher, err := newResearcher(cfg, logger, tel)
			if err != nil {
				return err
			}
			res, err := researcher.Run(cmd.Context(), topic)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&maxIters, "max-iters", 5, "maximum tool/critique rounds (values below 1 use 6)")
	cmd.Flags().StringVar(&model, "model", "", "model name (overrides DR_MODEL)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	return cmd
}

func newSearchProvider(cfg *config.Config, logger *slog.Logger, tel *telemetry.Telemetry) *brave.Provider {
	return brave.New(brave.Options{
		APIKey:         cfg.Search.BraveAPIKey,
		Endpoint:       cfg.Search.Endpoint,
		Lang:           cfg.Search.Lang,
		Timeout:        cfg.Search.Timeout,
		Delay:          cfg.Search.Delay,
		DisableProxies: cfg.Search.DisableProxies,
		Telemetry:      tel,
	}, logger.With("component", "brave"))
}

func newResearcher(cfg *config.Config, logger *slog.Logger, tel *telemetry.Telemetry) (*agent.Researcher, error) {
	client, err := llm.New(llm.Options{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger.With("component", "llm"))
	if err != nil {
		return nil, err
	}
	dispatcher := tools.NewDispatcher(
		tools.Handlers(newSearchProvider(cfg, logger, tel)),
		tools.WithDispatchLogger(logger.With("component", "tools")),
		tools.WithDispatchTelemetry(tel),
	)
	if missing := dispatcher.Unimplemented(); len(missing) > 0 {
		logger.Debug("advertised tools without handlers", "tools", missing)
	}
	return agent.New(client, dispatcher,
		agent.WithMaxIters(cfg.Agent.MaxIters),
		agent.WithLogger(logger),
		agent.WithTelemetry(tel),
	), nil
}

// serveMetrics exposes tel on addr until the returned stop func is called.
func serveMetrics(addr string, tel *telemetry.Telemetry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", tel.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
