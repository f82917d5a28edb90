package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// HealthStatus is the content of the health file.
type HealthStatus struct {
	PID       int       `json:"pid"`
	Session   string    `json:"session,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Uptime    string    `json:"uptime"`

	State    string   `json:"state"`
	Ready    bool     `json:"ready"`
	Icons    []string `json:"icons"`
	Executed uint64   `json:"tasks_executed"`
	Faulted  uint64   `json:"tasks_faulted"`
	Pending  int      `json:"tasks_pending"`

	RSSBytes uint64 `json:"rss_bytes"`
	Threads  int32  `json:"threads"`
}

// HealthWriter periodically writes a HealthStatus for the dashboard.
type HealthWriter struct {
	path     string
	interval time.Duration
	shell    Shell
	session  string
	started  time.Time
	logger   *slog.Logger
	proc     *process.Process
}

// NewHealthWriter creates a writer for path. session is an opaque host
// session identifier copied into every status.
func NewHealthWriter(path string, interval time.Duration, shell Shell, session string, logger *slog.Logger) *HealthWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("process stats unavailable", "error", err)
	}
	return &HealthWriter{
		path:     path,
		interval: interval,
		shell:    shell,
		session:  session,
		started:  time.Now(),
		logger:   logger,
		proc:     proc,
	}
}

// Collect builds the current status.
func (w *HealthWriter) Collect(ctx context.Context) *HealthStatus {
	now := time.Now()
	f := w.shell.Frame()
	st := w.shell.Stats()

	hs := &HealthStatus{
		PID:       os.Getpid(),
		Session:   w.session,
		StartedAt: w.started,
		UpdatedAt: now,
		Uptime:    now.Sub(w.started).Round(time.Second).String(),
		State:     f.State.String(),
		Ready:     f.Ready,
		Icons:     f.Order(),
		Executed:  st.Executed,
		Faulted:   st.Faulted,
		Pending:   st.Pending,
	}
	if w.proc != nil {
		if mem, err := w.proc.MemoryInfoWithContext(ctx); err == nil {
			hs.RSSBytes = mem.RSS
		}
		if n, err := w.proc.NumThreadsWithContext(ctx); err == nil {
			hs.Threads = n
		}
	}
	return hs
}

// Run writes the health file immediately and then every interval until ctx
// is done. The file is removed on return.
func (w *HealthWriter) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer os.Remove(w.path)

	for {
		if err := WriteHealthFile(w.path, w.Collect(ctx)); err != nil {
			w.logger.Warn("health file write failed", "path", w.path, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// WriteHealthFile writes the health status as indented JSON to path.
// The write is atomic: content goes to a temporary file first, then is
// renamed into place to prevent partial reads.
func WriteHealthFile(path string, status *HealthStatus) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create health directory: %w", err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal health status: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp health file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename health file: %w", err)
	}
	return nil
}

// ReadHealthFile reads and parses the health status JSON from path.
func ReadHealthFile(path string) (*HealthStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read health file: %w", err)
	}

	var status HealthStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("unmarshal health file: %w", err)
	}
	return &status, nil
}
