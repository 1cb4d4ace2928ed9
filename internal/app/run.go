package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"wfemitter/internal/config"
	"wfemitter/internal/emitter"
	"wfemitter/internal/ingest"
	"wfemitter/internal/logging"
	"wfemitter/internal/snapshot"
)

// Runtime defines runtime inputs required to start the emitter.
// Params: ConfigPath points to the TOML configuration file; InputPath names a
// JSON payload source ("-" for stdin); Collect emits one local snapshot;
// DryRunOutput overrides the dry-run line destination (stdout when nil).
// Returns: Runtime value used by Run.
type Runtime struct {
	ConfigPath   string
	InputPath    string
	Collect      bool
	DryRunOutput io.Writer
}

// Run loads configuration and executes one emitter mode: local snapshot
// (-collect), payload input stream (-input), or the HTTP ingest server when
// [ingest] is enabled.
// Params: ctx controls lifecycle; rt provides runtime inputs.
// Returns: error on startup failure or stream decode failure; per-payload
// translation failures are logged and do not stop the run.
func Run(ctx context.Context, rt Runtime) error {
	if strings.TrimSpace(rt.ConfigPath) == "" {
		return fmt.Errorf("config path is required")
	}

	cfg, err := config.Load(rt.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLogger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closeLogger()

	stopPprof, err := startPprofServer(ctx, cfg.Pprof, logger)
	if err != nil {
		return fmt.Errorf("start pprof: %w", err)
	}
	defer stopPprof()

	em := emitter.New(emitter.Config{
		ProxyHost:    cfg.Proxy.Host,
		ProxyPort:    cfg.Proxy.Port,
		DryRun:       cfg.Proxy.DryRunEnabled(),
		DialTimeout:  cfg.Proxy.DialTimeout.Duration,
		MetaTags:     cfg.Proxy.MetaTagKeys(),
		DryRunOutput: rt.DryRunOutput,
	})

	switch {
	case rt.Collect:
		return emitLocalSnapshot(ctx, cfg.Snapshot, em, logger)
	case strings.TrimSpace(rt.InputPath) != "":
		return emitFromInput(ctx, rt.InputPath, em, logger)
	case cfg.Ingest.Enabled:
		server, serverErr := ingest.NewServer(cfg.Ingest, em, logger)
		if serverErr != nil {
			return fmt.Errorf("start ingest server: %w", serverErr)
		}
		logger.Info("ingest server started", slog.String("listen", server.Addr()))
		return server.Run(ctx)
	default:
		return fmt.Errorf("nothing to do: pass -collect or -input, or enable the [ingest] section")
	}
}

// emitLocalSnapshot scrapes the local machine once and emits the result.
// Params: ctx lifecycle context; cfg snapshot options; em engine; logger root logger.
// Returns: scrape or emit error.
func emitLocalSnapshot(ctx context.Context, cfg config.SnapshotConfig, em *emitter.Emitter, logger *slog.Logger) error {
	payload, err := snapshot.Collect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("collect snapshot: %w", err)
	}
	return em.Emit(ctx, payload, logger)
}

// emitFromInput decodes a stream of JSON payload documents and emits each
// one. A payload that fails to translate is logged by the engine and skipped;
// a corrupt stream stops the run.
// Params: ctx lifecycle context; path payload file or "-" for stdin; em
// engine; logger root logger.
// Returns: open/decode error, nil when the stream is drained.
func emitFromInput(ctx context.Context, path string, em *emitter.Emitter, logger *slog.Logger) error {
	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input %q: %w", path, err)
		}
		defer file.Close()
		reader = file
	}

	decoder := json.NewDecoder(reader)
	emitted, failed := 0, 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var payload map[string]any
		err := decoder.Decode(&payload)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("decode payload stream: %w", err)
		}

		if err := em.Emit(ctx, payload, logger); err != nil {
			failed++
			continue
		}
		emitted++
	}

	logger.Info("input drained", slog.Int("emitted", emitted), slog.Int("failed", failed))
	return nil
}
