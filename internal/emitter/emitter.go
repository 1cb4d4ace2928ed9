package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultProxyPort is the Wavefront proxy line-protocol port.
const DefaultProxyPort = 2878

var (
	// ErrNotConfigured marks a missing required connection parameter.
	ErrNotConfigured = errors.New("proxy host is not configured")
	// ErrConnect marks a proxy connect failure.
	ErrConnect = errors.New("proxy connect failed")
)

// Config holds engine settings consumed at invocation time.
// Params: proxy endpoint, dry-run switch, connect bound, meta-tag keys, and
// the destination for dry-run text output.
// Returns: engine configuration value.
type Config struct {
	ProxyHost    string
	ProxyPort    uint16
	DryRun       bool
	DialTimeout  time.Duration
	MetaTags     []string
	DryRunOutput io.Writer
}

type dialFunc func(ctx context.Context, addr string, timeout time.Duration) (LineSender, error)

// Emitter translates agent payloads into Wavefront lines and delivers them.
// It owns process-lifetime cached point tags and source tags; it is invoked
// synchronously once per payload and must not be used concurrently.
// Params: configuration from New.
// Returns: stateful engine instance.
type Emitter struct {
	cfg        Config
	pointTags  map[string]any
	sourceTags []string
	metaTags   []string
	dial       dialFunc
}

// New creates an engine instance with empty cached tag state.
// Params: cfg engine configuration.
// Returns: emitter ready for per-payload invocations.
func New(cfg Config) *Emitter {
	return &Emitter{
		cfg:       cfg,
		pointTags: make(map[string]any),
		metaTags:  cfg.MetaTags,
		dial:      DialProxy,
	}
}

// SourceTags returns the raw host-tag strings seen so far, append-only and
// never deduplicated.
// Params: none.
// Returns: retained source tag slice.
func (e *Emitter) SourceTags() []string {
	return e.sourceTags
}

// PointTags returns the cached point tags accumulated from host-tags and
// meta sections of earlier payloads. Meta values are cached as decoded, so
// non-string entries stay in the map until the encoder drops them.
// Params: none.
// Returns: cached tag map (live engine state, do not mutate).
func (e *Emitter) PointTags() map[string]any {
	return e.pointTags
}

// Emit translates one payload and delivers the resulting lines. The transport
// is acquired before parsing (never in dry-run) and released on every exit
// path. All failures are logged with payload context and returned as values;
// the engine stays usable for the next payload regardless of the outcome.
// Params: ctx lifecycle context; payload decoded JSON document; logger
// host-supplied logging capability.
// Returns: nil on success, configuration/connect/parse error otherwise.
func (e *Emitter) Emit(ctx context.Context, payload map[string]any, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}

	if strings.TrimSpace(e.cfg.ProxyHost) == "" {
		logger.Error("missing proxy host in emitter configuration")
		return ErrNotConfigured
	}

	port := e.cfg.ProxyPort
	if port == 0 {
		port = DefaultProxyPort
	}
	addr := net.JoinHostPort(e.cfg.ProxyHost, strconv.Itoa(int(port)))
	logger.Debug("wavefront emitter", slog.String("proxy", addr), slog.Bool("dry_run", e.cfg.DryRun))

	var sender LineSender
	if e.cfg.DryRun {
		sender = NewDryRunSender(e.dryRunOutput())
	} else {
		connected, err := e.dial(ctx, addr, e.cfg.DialTimeout)
		if err != nil {
			logger.Error("unable to connect to proxy",
				slog.String("proxy", addr),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("%w: %v", ErrConnect, err)
		}
		sender = connected
	}
	defer func() {
		_ = sender.Close()
	}()

	if err := e.dispatch(payload, sender); err != nil {
		logger.Error("unable to parse payload",
			slog.String("error", err.Error()),
			slog.String("payload", compactPayload(payload)),
		)
		return err
	}

	return nil
}

// dispatch routes one classified payload to the matching extractor and sends
// every extracted point. Series payloads never touch cached tag state;
// collector payloads run host-tag and meta-tag extraction first so downstream
// encoding sees the updated point tags.
// Params: payload decoded document; sender acquired transport.
// Returns: first extraction or send error.
func (e *Emitter) dispatch(payload map[string]any, sender LineSender) error {
	var (
		points []Point
		err    error
	)

	switch classifyPayload(payload) {
	case kindSeries:
		points, err = seriesPoints(payload)
	case kindCollector:
		e.extractHostTags(payload)
		e.extractMetaTags(payload)
		points, err = collectorPoints(payload)
	}

	// points extracted before a shape error are still delivered
	if sendErr := e.sendPoints(points, sender); sendErr != nil {
		return sendErr
	}
	return err
}

// sendPoints encodes and sends each point; absent values are skipped.
// Params: points extracted observations; sender acquired transport.
// Returns: first send error.
func (e *Emitter) sendPoints(points []Point, sender LineSender) error {
	for _, p := range points {
		line, ok := encodeLine(p, e.pointTags)
		if !ok {
			continue
		}
		if err := sender.Send(line); err != nil {
			return err
		}
	}
	return nil
}

// dryRunOutput resolves the dry-run line destination.
// Params: none.
// Returns: configured writer or stdout.
func (e *Emitter) dryRunOutput() io.Writer {
	if e.cfg.DryRunOutput != nil {
		return e.cfg.DryRunOutput
	}
	return os.Stdout
}

// compactPayload renders a payload for parse-failure diagnostics.
// Params: payload decoded document.
// Returns: compact JSON, or fmt fallback when marshalling fails.
func compactPayload(payload map[string]any) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(raw)
}
