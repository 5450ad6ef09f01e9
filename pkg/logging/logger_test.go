package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"headsup/pkg/config"
)

func TestInit(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	requestLog := filepath.Join(tempDir, "requests.log")

	// A previous run's log is rotated away.
	if err := os.WriteFile(serverLog, []byte("old run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: serverLog, Level: "DEBUG", MaxBackups: 2},
		Requests: config.LogSettings{Path: requestLog, Level: "INFO"},
	}

	cleanup, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	slog.Info("hello from test")
	RequestLogger.Info("GET /api/state")
	cleanup()

	data, err := os.ReadFile(serverLog)
	if err != nil {
		t.Fatalf("server log not created: %v", err)
	}
	if strings.Contains(string(data), "old run") {
		t.Error("previous run was not rotated")
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("server log missing message: %q", data)
	}

	reqData, err := os.ReadFile(requestLog)
	if err != nil {
		t.Fatalf("request log not created: %v", err)
	}
	if !strings.Contains(string(reqData), "GET /api/state") {
		t.Errorf("request log missing message: %q", reqData)
	}

	if !strings.Contains(GlobalLogCapture.GetLastLine(), "hello from test") {
		t.Errorf("capture = %q", GlobalLogCapture.GetLastLine())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMultiHandler(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("multiHandler should be enabled when any child is")
	}

	logger := slog.New(h).With("component", "nav")
	logger.Debug("tick")
	logger.Warn("slow")

	if !strings.Contains(debugBuf.String(), "tick") || !strings.Contains(debugBuf.String(), "component=nav") {
		t.Errorf("debug handler output = %q", debugBuf.String())
	}
	if strings.Contains(warnBuf.String(), "tick") {
		t.Error("warn handler received a debug record")
	}
	if !strings.Contains(warnBuf.String(), "slow") {
		t.Errorf("warn handler output = %q", warnBuf.String())
	}
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	Trace(logger, "hidden")
	if buf.Len() != 0 {
		t.Error("Trace logged while disabled")
	}

	EnableTrace = true
	t.Cleanup(func() { EnableTrace = false })
	Trace(logger, "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("Trace did not log while enabled")
	}
}
