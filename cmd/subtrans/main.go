// subtrans translates subtitle (.srt) and localization (.json) files
// while preserving their structure byte for byte. It runs either as a
// one-shot command line tool or as an HTTP service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvelkov/subtrans/internal/api"
	"github.com/dvelkov/subtrans/internal/config"
	"github.com/dvelkov/subtrans/internal/job"
	"github.com/dvelkov/subtrans/internal/pipeline"
	"github.com/dvelkov/subtrans/internal/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
)

var (
	flagConfig  string
	flagVerbose bool
)

func newRootCmd() *cobra.Command {
	var (
		targetLang   string
		sourceLang   string
		outDir       string
		suffix       string
		workers      int
		apiKey       string
		baseURL      string
		model        string
		timeout      time.Duration
		maxAttempts  int
		onCancel     string
		maxFileBytes int64
	)

	root := &cobra.Command{
		Use:   "subtrans [files...]",
		Short: "Structure-preserving subtitle and localization file translator",
		Long: `subtrans translates .srt subtitle files and hierarchical .json
localization files through an OpenAI-compatible chat endpoint. Timing
lines, entry numbering, JSON keys, comments and whitespace pass through
untouched; only the translatable text changes. Segments that fail
permanently keep their original text so the output is always usable.

Interrupt with Ctrl-C to stop cleanly: in-flight segments finish and
partial results are saved. A second Ctrl-C exits immediately.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			override := func(name string, apply func()) {
				if cmd.Flags().Changed(name) {
					apply()
				}
			}
			override("source", func() { cfg.SourceLang = sourceLang })
			override("out", func() { cfg.OutputDir = outDir })
			override("suffix", func() { cfg.OutputSuffix = suffix })
			override("workers", func() { cfg.Workers = workers })
			override("base-url", func() { cfg.APIBase = baseURL })
			override("model", func() { cfg.Model = model })
			override("timeout", func() { cfg.RequestTimeout = timeout })
			override("max-attempts", func() { cfg.MaxAttempts = maxAttempts })
			override("on-cancel", func() { cfg.OnCancel = onCancel })
			override("max-file-bytes", func() { cfg.MaxFileBytes = maxFileBytes })
			if targetLang != "" {
				cfg.TargetLang = targetLang
			}
			if cfg.TargetLang == "" {
				return fmt.Errorf("target language is required (use --target)")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if apiKey == "" {
				apiKey = cfg.APIKey
			}
			return runTranslate(cfg, translate.LoadKey(apiKey), args)
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file (or SUBTRANS_CONFIG)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Per-segment progress logging")

	root.Flags().StringVarP(&targetLang, "target", "t", "", "Target language (required)")
	root.Flags().StringVarP(&sourceLang, "source", "s", "", "Source language (default: auto-detect)")
	root.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: next to each input)")
	root.Flags().StringVar(&suffix, "suffix", "", "Output filename suffix (default: _translated_<lang>)")
	root.Flags().IntVar(&workers, "workers", pipeline.DefaultWorkers, "Concurrent translation requests")
	root.Flags().StringVar(&apiKey, "api-key", "", "API key (or SUBTRANS_API_KEY env var, or api_key.txt)")
	root.Flags().StringVar(&baseURL, "base-url", "", "Translation API base URL")
	root.Flags().StringVar(&model, "model", "", "Model name")
	root.Flags().DurationVar(&timeout, "timeout", 0, "Per-request timeout (0 = default)")
	root.Flags().IntVar(&maxAttempts, "max-attempts", pipeline.DefaultMaxAttempts, "Attempts per segment before falling back to original text")
	root.Flags().StringVar(&onCancel, "on-cancel", "", "Policy for files not started at cancellation: skip or copy")
	root.Flags().Int64Var(&maxFileBytes, "max-file-bytes", 0, "Maximum input file size in bytes")

	root.AddCommand(
		newServeCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// runTranslate drives a one-shot multi-file job from the command line.
func runTranslate(cfg config.Config, apiKey string, paths []string) error {
	log := newLogger()

	client := translate.NewClient(cfg.APIBase, apiKey, cfg.Model, cfg.RequestTimeout)
	defer client.Close()

	orch := &pipeline.Orchestrator{
		Translator: client,
		Retry: &pipeline.Retryer{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
		Workers: cfg.Workers,
		Log:     log,
	}
	ctrl := pipeline.NewController(orch, log)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	cancel := &job.CancelFlag{}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("interrupt received, saving partial results")
		cancel.Set()
		<-sigCh
		os.Exit(130)
	}()

	opts := job.Options{
		SourceLang:   cfg.SourceLang,
		TargetLang:   cfg.TargetLang,
		OutputDir:    cfg.OutputDir,
		OutputSuffix: cfg.OutputSuffix,
		OnCancel:     job.CancelPolicy(cfg.OnCancel),
		MaxFileBytes: cfg.MaxFileBytes,
	}

	results := ctrl.Run(ctx, paths, opts, cancel, func(e job.Event) {
		if e.SegmentID < 0 {
			log.Info("file done", "file", e.File, "detail", e.Detail)
			return
		}
		log.Debug("segment", "file", e.File, "segment", e.SegmentID, "status", e.Status, "detail", e.Detail)
	})

	failed := 0
	authFailed := false
	for _, res := range results {
		if res.AuthFailure {
			authFailed = true
		}
		attrs := []any{
			"file", res.Path,
			"status", res.Status,
			"translated", res.Translated,
			"fallback", res.Fallback,
		}
		if res.OutPath != "" {
			attrs = append(attrs, "out", res.OutPath)
		}
		switch res.Status {
		case job.FileFailed, job.FileSkipped:
			failed++
			log.Error("file not translated", append(attrs, "error", res.Err)...)
		default:
			log.Info("file translated", attrs...)
		}
	}
	switch {
	case authFailed:
		log.Error("job aborted: invalid credentials")
	case cancel.IsSet():
		log.Warn("job cancelled", "files", len(results))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files not translated", failed, len(results))
	}
	return nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP translation service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg config.Config) error {
	log := newLogger()

	client := translate.NewClient(cfg.APIBase, translate.LoadKey(cfg.APIKey), cfg.Model, cfg.RequestTimeout)

	orch := &pipeline.Orchestrator{
		Translator: client,
		Retry: &pipeline.Retryer{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
		Workers: cfg.Workers,
		Log:     log,
	}
	ctrl := pipeline.NewController(orch, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := api.NewServer(ctrl, log, cfg)
	srv.Start(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		srv.Stop()
		client.Close()
	}()

	log.Info("starting subtrans", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func newAuthCmd() *cobra.Command {
	var apiKey string
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Save the API key to " + translate.KeyFile,
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				return fmt.Errorf("--api-key is required")
			}
			if err := translate.SaveKey(apiKey); err != nil {
				return err
			}
			fmt.Printf("API key saved to %s\n", translate.KeyFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key to save")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("subtrans version %s (%s)\n", version, commit)
		},
	}
}
