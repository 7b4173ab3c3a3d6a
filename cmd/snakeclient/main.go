package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/snekline/client"
	"github.com/brensch/snekline/game"
	"github.com/brensch/snekline/logging"
	"github.com/brensch/snekline/policy"
	"github.com/brensch/snekline/protocol"
	"github.com/brensch/snekline/rules"
	"github.com/brensch/snekline/store"
	"github.com/brensch/snekline/transport"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	def := client.DefaultConfig()

	username := flag.String("username", getEnvOrDefault("SNEK_USERNAME", def.Username), "Name sent after INIT END")
	policyName := flag.String("policy", getEnvOrDefault("SNEK_POLICY", "greedy"), "Decision policy: straight, greedy or onnx")
	modelPath := flag.String("model", getEnvOrDefault("SNEK_MODEL", ""), "ONNX model for -policy=onnx")
	vocab := flag.String("vocab", getEnvOrDefault("SNEK_VOCAB", rules.DefaultVocabulary.String()), "Action tokens: straight,left,right")
	maxSnakes := flag.Int("max-snakes", getEnvIntOrDefault("SNEK_MAX_SNAKES", def.Limits.MaxSnakes), "Snake id capacity")
	maxSnakeLen := flag.Int("max-snake-len", getEnvIntOrDefault("SNEK_MAX_SNAKE_LEN", def.Limits.MaxSnakeLen), "Body capacity per snake")
	maxFood := flag.Int("max-food", getEnvIntOrDefault("SNEK_MAX_FOOD", def.Limits.MaxFood), "Food capacity")
	maxLine := flag.Int("max-line", getEnvIntOrDefault("SNEK_MAX_LINE", protocol.DefaultMaxLineLength), "Longest accepted input line in bytes")
	turnTimeout := flag.Duration("turn-timeout", getEnvDurationOrDefault("SNEK_TURN_TIMEOUT", def.TurnTimeout), "Deadline given to the policy each turn")
	strict := flag.Bool("strict-map", getEnvBoolOrDefault("SNEK_STRICT_MAP", def.StrictMapCycle), "Drop snake/food lines outside MAP BEGIN/END")
	recordDir := flag.String("record-dir", getEnvOrDefault("SNEK_RECORD_DIR", ""), "Directory for per-session .parquet turn logs (empty disables)")
	recordFlush := flag.Int("record-flush", getEnvIntOrDefault("SNEK_RECORD_FLUSH", store.DefaultFlushRows), "Rows per Parquet row group")
	wsURL := flag.String("ws", getEnvOrDefault("SNEK_WS", ""), "Connect to this websocket URL instead of stdio")
	httpAddr := flag.String("http", getEnvOrDefault("SNEK_HTTP", ""), "Serve the HTTP bridge on this address instead of stdio")
	logFormat := flag.String("log-format", getEnvOrDefault("SNEK_LOG_FORMAT", "text"), "Log format: text, json or pretty")
	logLevel := flag.String("log-level", getEnvOrDefault("SNEK_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log level: %v\n", err)
		return 2
	}
	logger, err := logging.New(os.Stderr, logging.Options{Format: *logFormat, Level: level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 2
	}

	vocabulary, err := rules.ParseVocabulary(*vocab)
	if err != nil {
		logger.Error("bad -vocab", "err", err)
		return 2
	}

	p, closePolicy, err := buildPolicy(*policyName, *modelPath)
	if err != nil {
		logger.Error("policy", "policy", *policyName, "err", err)
		return 2
	}
	defer closePolicy()

	cfg := client.Config{
		Username:       *username,
		Limits:         game.Limits{MaxSnakes: *maxSnakes, MaxSnakeLen: *maxSnakeLen, MaxFood: *maxFood},
		MaxLineLength:  *maxLine,
		Vocabulary:     vocabulary,
		TurnTimeout:    *turnTimeout,
		StrictMapCycle: *strict,
		PolicyName:     *policyName,
		SessionID:      uuid.NewString(),
	}

	var rec *store.Recorder
	if *recordDir != "" {
		rec, err = store.NewRecorder(*recordDir, cfg.SessionID, *recordFlush)
		if err != nil {
			logger.Error("recorder", "dir", *recordDir, "err", err)
			return 1
		}
		defer func() {
			outPath, rows, err := rec.Close()
			switch {
			case err != nil:
				logger.Error("close recorder", "err", err)
			case rows > 0:
				logger.Info("recorded turns", "rows", rows, "path", outPath)
			}
		}()
	}

	// A nil *store.Recorder must not reach the client as a non-nil interface.
	var c *client.Client
	if rec != nil {
		c = client.New(cfg, p, logger, rec)
	} else {
		c = client.New(cfg, p, logger, nil)
	}

	logger.Info("starting",
		"username", cfg.Username,
		"policy", *policyName,
		"vocab", vocabulary.String(),
		"limits", fmt.Sprintf("%d/%d/%d", cfg.Limits.MaxSnakes, cfg.Limits.MaxSnakeLen, cfg.Limits.MaxFood),
		"session", cfg.SessionID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, logger, c, *wsURL, *httpAddr)
}

func run(ctx context.Context, logger *slog.Logger, c *client.Client, wsURL, httpAddr string) int {
	switch {
	case httpAddr != "":
		return serveBridge(ctx, logger, c, httpAddr)

	case wsURL != "":
		conn, err := transport.DialWebSocket(ctx, transport.DefaultWSConfig(wsURL))
		if err != nil {
			logger.Error("websocket", "url", wsURL, "err", err)
			return 1
		}
		defer conn.Close()
		return runStream(ctx, logger, c, conn, conn, conn)

	default:
		return runStream(ctx, logger, c, os.Stdin, os.Stdout, os.Stdin)
	}
}

// stopGrace bounds how long runStream waits for a blocked read after an
// interrupt.
const stopGrace = time.Second

// runStream runs c over r and w until the input ends or ctx is cancelled.
// Run only sees ctx between lines, so on cancel closer is closed to unblock
// the pending read.
func runStream(ctx context.Context, logger *slog.Logger, c *client.Client, r io.Reader, w io.Writer, closer io.Closer) int {
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, r, w) }()

	select {
	case err := <-done:
		return exitCode(logger, err)
	case <-ctx.Done():
	}

	if closer != nil {
		closer.Close()
	}
	select {
	case <-done:
	case <-time.After(stopGrace):
		logger.Warn("input still blocked after interrupt")
	}
	logger.Info("interrupted")
	return 0
}

func exitCode(logger *slog.Logger, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, client.ErrUnexpectedEndOfStream):
		logger.Warn("input ended early", "err", err)
		return 0
	case errors.Is(err, context.Canceled):
		logger.Info("interrupted")
		return 0
	default:
		logger.Error("client stopped", "err", err)
		return 1
	}
}

func serveBridge(ctx context.Context, logger *slog.Logger, c *client.Client, addr string) int {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              addr,
		Handler:           transport.NewBridge(c, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http bridge listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		logger.Error("http bridge", "err", err)
		return 1
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
		return 1
	}
	return 0
}

func buildPolicy(name, modelPath string) (policy.Policy, func(), error) {
	noop := func() {}
	switch name {
	case "straight":
		return policy.Straight{}, noop, nil
	case "greedy":
		return policy.NewGreedy(), noop, nil
	case "onnx":
		if modelPath == "" {
			return nil, noop, fmt.Errorf("-model is required")
		}
		o, err := policy.NewOnnx(policy.DefaultOnnxConfig(modelPath))
		if err != nil {
			return nil, noop, err
		}
		return o, func() { o.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unknown policy %q", name)
}
