// cmd/noctua/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"noctua/internal/adapters/output"
	"noctua/internal/core/domain"
	"noctua/internal/core/ports"
	"noctua/internal/core/usecases"
	"noctua/internal/platform/config"
	"noctua/internal/platform/httpclient"
	"noctua/internal/platform/logx"
	"noctua/internal/platform/registry"
	"noctua/internal/platform/resolver"
	"noctua/internal/platform/snapshot"
	"noctua/internal/platform/ui"
	"noctua/internal/units/followup"
	"noctua/internal/units/webprobe"

	// Import units for auto-registration via init()
	_ "noctua/internal/units/baseports"
	_ "noctua/internal/units/endpoints"
	_ "noctua/internal/units/subdomains"
	_ "noctua/internal/units/templscan"
	_ "noctua/internal/units/webservices"
)

var (
	// Rellenables con -ldflags en build
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: configuration load failed: %v\n", err)
		os.Exit(2)
	}

	if cfg.PrintVersion {
		fmt.Printf("noctua %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	if cfg.Target == "" {
		fmt.Fprintln(os.Stderr, "Error: target is required")
		fmt.Fprintln(os.Stderr, "Usage: noctua -t <domain|ip|url>")
		fmt.Fprintln(os.Stderr, "Try: noctua -h for help")
		os.Exit(2)
	}

	logger := logx.New()
	if cfg.Logging.Verbose {
		logger.SetLevel(logx.LevelDebug)
	}

	logger.Info("noctua starting",
		"version", version,
		"target", cfg.Target,
		"mode", cfg.Mode,
	)

	ctx, cancel := rootContextWithSignals()
	defer cancel()

	// Shared retrying HTTP client for every unit and handler.
	client := httpclient.New(httpclient.Config{
		Timeout:       cfg.HTTPTimeout(),
		MaxAttempts:   cfg.HTTP.Retries,
		BackoffFactor: cfg.HTTP.BackoffFactor,
		Jitter:        cfg.HTTP.Jitter,
		ThrottleOn429: cfg.HTTP.ThrottleOn429,
		UserAgent:     cfg.HTTP.UserAgent,
		Headers:       cfg.HTTP.Headers,
		ProxyURL:      cfg.HTTP.ProxyURL,
		RateLimit:     cfg.HTTP.RateLimit,
	}, logger)

	units, err := registry.Global().Build(registry.Deps{
		Config: cfg,
		Logger: logger,
		HTTP:   client,
	})
	if err != nil {
		logger.Err(err, "phase", "unit-build")
		os.Exit(2)
	}

	var sink *output.JSONLEventSink
	if cfg.Logging.EventPath != "" {
		sink, err = output.NewJSONLEventSink(cfg.Logging.EventPath)
		if err != nil {
			logger.Err(err, "phase", "event-sink")
			os.Exit(2)
		}
		defer sink.Close()
	}

	runner := usecases.NewRunner(usecases.RunnerOptions{
		Config:   cfg,
		Units:    units,
		Resolver: resolver.New(cfg.DNS.Server, logger),
		Store:    snapshot.New(cfg.State.Path, logger),
		Prober:   webprobe.NewProber(client, logger),
		Handlers: []ports.TaskHandler{
			followup.NewBypassHandler(client, logger),
			followup.NewContentHandler(client, logger),
			followup.NewFuzzerHandler(client, logger),
			followup.NewWPScanHandler(client, logger),
			followup.NewTemplateScanHandler(nucleiBin(cfg), nucleiTimeout(cfg), logger),
		},
		Sink:      eventSinkOrNil(sink),
		Presenter: ui.NewPTermPresenter(),
		Logger:    logger,
	})

	start := time.Now()
	result, runErr := runner.Run(ctx)
	elapsed := time.Since(start)

	if runErr != nil {
		logger.Err(runErr, "phase", "run", "elapsed_ms", elapsed.Milliseconds())
		os.Exit(1)
	}

	path, outErr := output.WriteJSON(cfg.Output.Dir, result)
	if outErr != nil {
		logger.Err(outErr, "phase", "output")
		os.Exit(1)
	}

	logger.Info("noctua finished",
		"elapsed_ms", elapsed.Milliseconds(),
		"subdomains", len(result.Subdomains),
		"web_urls", len(result.WebURLs),
		"findings", len(result.Findings),
		"output", path,
	)
}

// eventSinkOrNil evita pasar una interfaz no-nil con puntero nil.
func eventSinkOrNil(sink *output.JSONLEventSink) domain.EventSink {
	if sink == nil {
		return nil
	}
	return sink
}

// nucleiBin toma la ruta del binario de la config del unit nuclei.
func nucleiBin(cfg config.Config) string {
	if unit, ok := cfg.Units["nuclei"]; ok {
		return unit.BinPath
	}
	return ""
}

// nucleiTimeout toma el timeout del unit nuclei para los scans dirigidos.
func nucleiTimeout(cfg config.Config) time.Duration {
	if unit, ok := cfg.Units["nuclei"]; ok && unit.TimeoutS > 0 {
		return time.Duration(unit.TimeoutS) * time.Second
	}
	return 0
}

// rootContextWithSignals crea el contexto raíz cancelable por SIGINT/SIGTERM.
func rootContextWithSignals() (context.Context, context.CancelFunc) {
	base, baseCancel := context.WithCancel(context.Background())

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-ch:
			baseCancel()
		case <-base.Done():
		}
	}()

	cleanup := func() {
		signal.Stop(ch)
		close(ch)
		baseCancel()
	}

	return base, cleanup
}
