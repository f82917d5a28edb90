package main

import (
	"bytes"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

type stubResizer struct {
	w, h int
	err  error
}

func (r *stubResizer) Resize(w, h int) error {
	r.w, r.h = w, h
	return r.err
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestFitTerminalLeavesRoomForBars(t *testing.T) {
	logger, buf := bufferLogger()
	r := &stubResizer{}

	fitTerminal(r, 80, 24, logger)
	if r.w != 80 || r.h != 21 {
		t.Errorf("expected Resize(80, 21), got Resize(%d, %d)", r.w, r.h)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no log output, got %q", buf.String())
	}

	fitTerminal(r, 80, 2, logger)
	if r.h != 1 {
		t.Errorf("expected height clamped to 1, got %d", r.h)
	}
}

func TestFitTerminalLogsResizeError(t *testing.T) {
	logger, buf := bufferLogger()
	r := &stubResizer{err: errors.New("dashboard: closed")}

	fitTerminal(r, 80, 24, logger)
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "initial resize failed") {
		t.Errorf("expected a warning, got %q", out)
	}
	if !strings.Contains(out, "dashboard: closed") {
		t.Errorf("expected the error in the log line, got %q", out)
	}
}

func TestStopMetricsLogsShutdownError(t *testing.T) {
	logger, buf := bufferLogger()

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	})}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no local listener: %v", err)
	}
	go srv.Serve(ln)
	go http.Get("http://" + ln.Addr().String() + "/")
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the handler")
	}

	// The in-flight request outlives the deadline.
	stopMetrics(srv, 50*time.Millisecond, logger)
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "metrics server shutdown failed") {
		t.Errorf("expected a shutdown warning, got %q", out)
	}
}

func TestStopMetricsIdleServerIsQuiet(t *testing.T) {
	logger, buf := bufferLogger()

	srv := &http.Server{Handler: http.NotFoundHandler()}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no local listener: %v", err)
	}
	go srv.Serve(ln)

	stopMetrics(srv, time.Second, logger)
	if buf.Len() != 0 {
		t.Errorf("expected no log output, got %q", buf.String())
	}
}
