// Package daemon exposes a running dashboard to other local processes: a
// line-based control socket, a PID file lock and a periodically written
// health file.
package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

// IPCHandler processes incoming IPC commands. The returned value is encoded
// as the JSON reply.
type IPCHandler interface {
	HandleCommand(ctx context.Context, cmd string, args []string) (any, error)
}

// IPCServer listens on a Unix domain socket for line-based text commands
// and returns JSON responses.
//
// Protocol:
//   - Client sends a single line: COMMAND [arg1] [arg2] ...
//   - Server responds with one JSON line, or {"error": "..."} on failure.
type IPCServer struct {
	socketPath string
	handler    IPCHandler
	logger     *slog.Logger
	listener   net.Listener
	wg         sync.WaitGroup
	done       chan struct{}
	stopOnce   sync.Once
}

// NewIPCServer creates an IPC server that will listen on socketPath and
// dispatch commands to handler.
func NewIPCServer(socketPath string, handler IPCHandler, logger *slog.Logger) *IPCServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &IPCServer{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Start begins listening for connections on the Unix socket. The socket file
// is created with mode 0600. Any existing socket file at the path is
// removed first.
func (s *IPCServer) Start() error {
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info("control socket listening", "path", s.socketPath)
	return nil
}

// Stop closes the listener, waits for active connections to finish, and
// removes the socket file. It is safe to call more than once.
func (s *IPCServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		os.Remove(s.socketPath)
	})
}

func (s *IPCServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed", "error", err)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn reads one command line, dispatches it and writes the reply.
func (s *IPCServer) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(5 * time.Second))

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return
	}

	cmd, args := parseIPCCommand(line)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reply, err := s.handler.HandleCommand(ctx, cmd, args)
	if err != nil {
		s.logger.Debug("ipc command failed", "cmd", cmd, "error", err)
		reply = map[string]string{"error": err.Error()}
	}

	data, err := json.Marshal(reply)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"error": "encode reply: " + err.Error()})
	}
	fmt.Fprintf(conn, "%s\n", data)
}

// parseIPCCommand splits a line into an upper-cased command and its
// positional arguments.
//
//	STATUS            -> "STATUS", []
//	ADD Music 10 ♪    -> "ADD", ["Music", "10", "♪"]
func parseIPCCommand(line string) (string, []string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil
	}
	return strings.ToUpper(parts[0]), parts[1:]
}

// IPCClient connects to a running dashboard via its Unix socket.
type IPCClient struct {
	socketPath string
	timeout    time.Duration
}

// NewIPCClient creates a client for the socket at socketPath.
func NewIPCClient(socketPath string) *IPCClient {
	return &IPCClient{socketPath: socketPath, timeout: 5 * time.Second}
}

// SendCommand sends a text command and returns the raw JSON reply line.
// Each call opens a new connection.
func (c *IPCClient) SendCommand(cmd string) (string, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return "", fmt.Errorf("connect to dashboard: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := fmt.Fprintf(conn, "%s\n", cmd); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}
		return "", errors.New("empty response from dashboard")
	}
	return scanner.Text(), nil
}

// Call sends cmd and decodes the reply into out. A reply carrying an
// "error" field is returned as an error.
func (c *IPCClient) Call(cmd string, out any) error {
	line, err := c.SendCommand(cmd)
	if err != nil {
		return err
	}
	var failure struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(line), &failure); err == nil && failure.Error != "" {
		return fmt.Errorf("%s: %s", commandName(cmd), failure.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(line), out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

func commandName(line string) string {
	cmd, _ := parseIPCCommand(line)
	return cmd
}
