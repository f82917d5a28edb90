// ace-dash is a terminal dashboard shell for in-vehicle infotainment apps.
//
// Apps announce themselves to the shell as they become available and
// withdraw when they go away; the shell keeps one icon per app, ordered by
// each app's declared position, and switches between the icon grid and an
// app's main view.
//
// Usage:
//
//	ace-dash [flags]
//
// Flags:
//
//	-config string    Path to configuration file (default: $XDG_CONFIG_HOME/ace-dash/config.toml)
//	-tui              Run the interactive shell (default when stdout is a terminal)
//	-headless         Run without a UI, controlled through the socket only
//	-status           Print the status of a running shell and exit
//	-add string       Announce a text app to a running shell
//	-position int     Position of the app announced with -add
//	-glyph string     Icon glyph of the app announced with -add
//	-remove string    Withdraw an app from a running shell
//	-send string      Send a raw control command to a running shell
//	-verbose          Enable verbose logging
//	-version          Print version and exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"gitlab.com/tinyland/lab/ace-dash/pkg/config"
	"gitlab.com/tinyland/lab/ace-dash/pkg/daemon"
	"gitlab.com/tinyland/lab/ace-dash/pkg/dashboard"
	"gitlab.com/tinyland/lab/ace-dash/pkg/host"
	"gitlab.com/tinyland/lab/ace-dash/pkg/image"
	"gitlab.com/tinyland/lab/ace-dash/pkg/metrics"
	"gitlab.com/tinyland/lab/ace-dash/pkg/registry"
	"gitlab.com/tinyland/lab/ace-dash/pkg/tui"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// shutdownTimeout bounds how long shutdown waits for queued render tasks.
const shutdownTimeout = 5 * time.Second

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		runTUI      = flag.Bool("tui", false, "Run the interactive shell")
		runHeadless = flag.Bool("headless", false, "Run without a UI, controlled through the socket only")
		showStatus  = flag.Bool("status", false, "Print the status of a running shell and exit")
		addApp      = flag.String("add", "", "Announce a text app to a running shell")
		position    = flag.Int("position", 0, "Position of the app announced with -add")
		glyph       = flag.String("glyph", "", "Icon glyph of the app announced with -add")
		removeApp   = flag.String("remove", "", "Withdraw an app from a running shell")
		sendCmd     = flag.String("send", "", "Send a raw control command to a running shell")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("ace-dash %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// Client commands talk to a running shell and exit.
	client := daemon.NewIPCClient(cfg.Host.SocketPath)
	switch {
	case *showStatus:
		exitOn(printStatus(client))
		return
	case *addApp != "":
		line := "ADD " + *addApp + " " + strconv.Itoa(*position)
		if *glyph != "" {
			line += " " + *glyph
		}
		exitOn(sendAndPrint(client, line))
		return
	case *removeApp != "":
		exitOn(sendAndPrint(client, "REMOVE "+*removeApp))
		return
	case *sendCmd != "":
		exitOn(sendAndPrint(client, *sendCmd))
		return
	}

	interactive := *runTUI || (!*runHeadless && isatty.IsTerminal(os.Stdout.Fd()))

	if err := os.MkdirAll(cfg.General.StateDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create state directory: %v\n", err)
		os.Exit(1)
	}
	logger, closeLog, err := setupLogger(cfg, *verbose, interactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, interactive); err != nil {
		logger.Error("ace-dash failed", "error", err)
		closeLog()
		os.Exit(1)
	}
}

// run wires the shell, its hosts and its surfaces, and blocks until ctx is
// done, the user quits the UI, or a QUIT command arrives.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, interactive bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !interactive && cfg.Host.PIDFile != "" {
		if err := daemon.AcquirePID(cfg.Host.PIDFile); err != nil {
			return err
		}
		defer daemon.ReleasePID(cfg.Host.PIDFile)
	}

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, m, logger)
		defer stopMetrics(srv, shutdownTimeout, logger)
	}

	profile := termenv.NewOutput(os.Stdout).EnvColorProfile()
	proto, err := image.ParseProtocol(cfg.Shell.IconProtocol, profile)
	if err != nil {
		return err
	}
	loader := image.NewLoader(image.LoaderConfig{
		Dir:      cfg.Shell.AssetDir,
		Renderer: image.NewRenderer(proto, profile, image.NewCache(0)),
		Logger:   logger,
	})

	dash := dashboard.New(registry.New(), dashboard.Config{
		Title:      cfg.Shell.Title,
		HomeIcon:   cfg.Shell.HomeIcon,
		IconWidth:  cfg.Shell.IconWidth,
		IconHeight: cfg.Shell.IconHeight,
		Loader:     loader,
		Logger:     logger,
		Metrics:    m,
	})
	defer func() {
		if err := dash.Stop(); err != nil && !errors.Is(err, dashboard.ErrBadState) {
			logger.Warn("dashboard stop failed", "error", err)
		}
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := dash.Sync(sctx); err != nil {
			logger.Warn("render queue did not drain", "error", err)
		}
		dash.Close()
	}()

	if interactive {
		if w, h, err := term.GetSize(os.Stdout.Fd()); err == nil {
			fitTerminal(dash, w, h, logger)
		}
	}
	if err := dash.Start(ctx); err != nil {
		return err
	}

	manifest, err := loadManifest(cfg.Host.Manifest)
	if err != nil {
		return err
	}
	apps := host.New(dash, logger)
	apps.Run(manifest)
	defer apps.Stop()

	ipc := daemon.NewIPCServer(cfg.Host.SocketPath, daemon.NewBridge(dash, apps.NewApp, cancel), logger)
	if err := ipc.Start(); err != nil {
		return err
	}
	defer ipc.Stop()

	logger.Info("ace-dash running",
		"version", version,
		"session", apps.Session(),
		"socket", cfg.Host.SocketPath,
		"icons", proto.String(),
		"interactive", interactive,
	)

	if interactive {
		return tui.Run(ctx, dash)
	}

	if cfg.Host.HealthFile != "" {
		hw := daemon.NewHealthWriter(cfg.Host.HealthFile, cfg.Host.HealthInterval.Duration, dash, apps.Session(), logger)
		go hw.Run(ctx)
	}
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromFile(path)
}

func loadManifest(path string) (*host.Manifest, error) {
	if path == "" {
		return host.DefaultManifest(), nil
	}
	return host.LoadManifest(path)
}

// setupLogger logs to stderr and the configured log file. The interactive
// shell owns the terminal, so there it logs to the file only.
func setupLogger(cfg *config.Config, verbose, interactive bool) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.General.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	closeLog := func() {}
	if cfg.General.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		closeLog = func() { f.Close() }
		if interactive {
			out = f
		} else {
			out = io.MultiWriter(os.Stderr, f)
		}
	} else if interactive {
		out = io.Discard
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closeLog, nil
}

func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}

func stopMetrics(srv *http.Server, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown failed", "error", err)
	}
}

// resizer is the part of the dashboard fitTerminal needs.
type resizer interface {
	Resize(width, height int) error
}

// fitTerminal sizes the app area to a width x height terminal, leaving room
// for the top and status bars.
func fitTerminal(r resizer, width, height int, logger *slog.Logger) {
	if err := r.Resize(width, max(height-3, 1)); err != nil {
		logger.Warn("initial resize failed", "width", width, "height", height, "error", err)
	}
}

func printStatus(client *daemon.IPCClient) error {
	var st daemon.Status
	if err := client.Call("STATUS", &st); err != nil {
		return err
	}
	fmt.Printf("%s  %s  view=%s", st.Title, st.State, st.View.Kind)
	if st.View.App != "" {
		fmt.Printf(" (%s)", st.View.App)
	}
	fmt.Println()
	for _, ic := range st.Icons {
		fmt.Printf("  %-16s position=%d\n", ic.Name, ic.Position)
	}
	fmt.Printf("tasks: executed=%d faulted=%d pending=%d\n", st.Executed, st.Faulted, st.Pending)
	return nil
}

func sendAndPrint(client *daemon.IPCClient, line string) error {
	var reply json.RawMessage
	if err := client.Call(line, &reply); err != nil {
		return err
	}
	fmt.Println(string(reply))
	return nil
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "ace-dash: %v\n", err)
		os.Exit(1)
	}
}
