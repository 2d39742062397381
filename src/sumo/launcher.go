package sumo

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Jingwu-01/Robotaxi-backend/src/traci"

	"go.uber.org/zap"
)

// LaunchOptions describes one SUMO process start
type LaunchOptions struct {
	Binary          string // empty = resolve from SUMO_HOME or PATH
	GUI             bool
	Config          string
	StepLength      float64
	AdditionalFiles []string
	Host            string // empty = 127.0.0.1
	Port            int    // 0 = pick a free port
}

// Process is a running SUMO instance with its TraCI session
type Process struct {
	Conn *traci.Conn
	Port int

	cmd    *exec.Cmd
	logger *zap.SugaredLogger
}

// FindBinary resolves the SUMO executable the way sumolib's checkBinary
// does: explicit path first, then SUMO_HOME/bin, then PATH.
func FindBinary(explicit string, gui bool) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("SUMO binary %s not usable: %w", explicit, err)
		}
		return explicit, nil
	}

	name := "sumo"
	if gui {
		name = "sumo-gui"
	}

	if home := os.Getenv("SUMO_HOME"); home != "" {
		candidate := filepath.Join(home, "bin", name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("could not locate %s; set the SUMO_HOME environment variable: %w", name, err)
	}
	return path, nil
}

// Launch starts SUMO with a TraCI server, connects to it, and claims
// client order 1. The returned process owns both the child process and
// the TraCI connection.
func Launch(opts LaunchOptions, logger *zap.SugaredLogger) (*Process, error) {
	binary, err := FindBinary(opts.Binary, opts.GUI)
	if err != nil {
		return nil, err
	}

	port := opts.Port
	if port == 0 {
		port, err = freePort()
		if err != nil {
			return nil, fmt.Errorf("error picking TraCI port: %w", err)
		}
	}

	args := []string{
		"-c", opts.Config,
		"--start",
		"--quit-on-end",
		"--step-length", strconv.FormatFloat(opts.StepLength, 'f', -1, 64),
		"--remote-port", strconv.Itoa(port),
	}
	if len(opts.AdditionalFiles) > 0 {
		args = append(args, "--additional-files", strings.Join(opts.AdditionalFiles, ","))
	}

	cmd := exec.Command(binary, args...)
	cmd.Dir = filepath.Dir(opts.Config)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	logger.Infow("Launching SUMO", "binary", binary, "port", port, "config", opts.Config)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting SUMO process: %w", err)
	}

	host := opts.Host
	if host == "" {
		host = "127.0.0.1"
	}
	conn, err := dialRetry(fmt.Sprintf("%s:%d", host, port), 30, 500*time.Millisecond, logger)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, fmt.Errorf("SUMO started but TraCI never came up: %w", err)
	}

	if err := conn.SetOrder(1); err != nil {
		conn.Close()
		cmd.Process.Kill()
		cmd.Wait()
		return nil, fmt.Errorf("error claiming TraCI client order: %w", err)
	}

	return &Process{
		Conn:   conn,
		Port:   port,
		cmd:    cmd,
		logger: logger,
	}, nil
}

// Stop closes the TraCI session, which instructs SUMO to quit, then
// waits for the child. A SIGKILL follows if SUMO does not exit in time.
func (p *Process) Stop() error {
	closeErr := p.Conn.Close()

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case err := <-done:
		// SUMO exits non-zero when closed mid-run; not a failure
		if err != nil {
			p.logger.Debugw("SUMO exited", "err", err)
		}
	case <-time.After(10 * time.Second):
		p.logger.Warn("SUMO did not exit after close, killing process")
		p.cmd.Process.Signal(syscall.SIGKILL)
		<-done
	}
	return closeErr
}

// dialRetry keeps dialing until the TraCI server accepts. SUMO opens
// the port only after loading the network, which can take a while on
// big scenarios.
func dialRetry(addr string, attempts int, delay time.Duration, logger *zap.SugaredLogger) (*traci.Conn, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := traci.Dial(addr, logger)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("no TraCI server at %s after %d attempts: %w", addr, attempts, lastErr)
}

// freePort asks the kernel for an unused TCP port
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
