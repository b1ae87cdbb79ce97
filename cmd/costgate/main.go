// Command costgate runs the suggestion service behind the in-process
// cost-control layer: a small HTTP API for title/hashtag/SEO/eye-catch
// suggestions, with response caching, per-client rate limiting, request
// deduplication, and usage logging around the paid model calls.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/editorial-labs/costgate"
	"github.com/editorial-labs/costgate/internal/usagelog"
	"github.com/editorial-labs/costgate/internal/version"
	"github.com/editorial-labs/costgate/suggest"
)

func main() {
	root := &cobra.Command{
		Use:          "costgate",
		Short:        "Cost-control gateway for AI content suggestions",
		Version:      version.String(),
		SilenceUsage: true,
	}

	var (
		configPath string
		listenAddr string
		model      string
		provider   string
	)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the suggestion HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), *cfg, listenAddr, provider, model)
		},
	}
	serve.Flags().StringVarP(&configPath, "config", "c", "", "path to costgate config (.yaml/.json)")
	serve.Flags().StringVarP(&listenAddr, "listen", "l", ":8080", "listen address")
	serve.Flags().StringVarP(&model, "model", "m", "gpt-4o-mini", "model identifier for the provider")
	serve.Flags().StringVarP(&provider, "provider", "p", "openai", "suggestion provider (openai or bedrock)")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("config OK: %d cache entries, %d req / %dms window, dedup %dms\n",
				cfg.MaxEntries, cfg.MaxRequestsPerWindow, cfg.WindowMs, cfg.DeduplicationWindowMs)
			return nil
		},
	}
	validate.Flags().StringVarP(&configPath, "config", "c", "", "path to costgate config (.yaml/.json)")

	usage := &cobra.Command{
		Use:   "usage",
		Short: "Print usage-log totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(configPath)
			if err != nil {
				return err
			}
			return runUsage(cmd.Context(), *cfg)
		},
	}
	usage.Flags().StringVarP(&configPath, "config", "c", "", "path to costgate config (.yaml/.json)")

	root.AddCommand(serve, validate, usage)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig loads the config file when given, otherwise falls back to
// defaults, and validates either way so bad settings fail before anything
// starts.
func resolveConfig(path string) (*costgate.Config, error) {
	if path == "" {
		if env := os.Getenv("COSTGATE_CONFIG"); env != "" {
			path = env
		}
	}

	cfg := costgate.DefaultConfig()
	if path != "" {
		loaded, err := costgate.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	if err := costgate.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func buildProvider(ctx context.Context, name string) (suggest.Provider, error) {
	switch name {
	case "openai":
		return suggest.NewOpenAI(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_BASE_URL"))
	case "bedrock":
		return suggest.NewBedrock(ctx, os.Getenv("AWS_REGION"))
	default:
		return nil, fmt.Errorf("unknown provider %q: use openai or bedrock", name)
	}
}

func buildUsageWriter(cfg costgate.Config) (usagelog.Writer, func(), error) {
	switch cfg.UsageLog.Driver {
	case "sqlite":
		w, err := usagelog.NewSQLiteWriter(cfg.UsageLog.DSN)
		if err != nil {
			return nil, nil, err
		}
		return w, func() { _ = w.Close() }, nil
	case "postgres":
		w, err := usagelog.NewPostgresWriter(cfg.UsageLog.DSN)
		if err != nil {
			return nil, nil, err
		}
		return w, func() { _ = w.Close() }, nil
	default:
		return usagelog.NoopWriter{}, func() {}, nil
	}
}

func runUsage(ctx context.Context, cfg costgate.Config) error {
	if cfg.UsageLog.Driver == "" {
		return fmt.Errorf("usage logging is not configured (set usage_log.driver)")
	}
	w, closeFn, err := buildUsageWriter(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	sw, ok := w.(*usagelog.SQLWriter)
	if !ok {
		return fmt.Errorf("usage totals require a SQL-backed usage log")
	}
	totals, err := sw.Totals(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("calls: %d\nabsorbed by cache/dedup: %d\nprompt tokens: %d\ncompletion tokens: %d\n",
		totals.Calls, totals.Absorbed, totals.PromptTokens, totals.CompletionTokens)
	return nil
}
