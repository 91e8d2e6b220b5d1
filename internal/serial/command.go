package serial

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
)

// CommandSource reads lines from the stdout of an external command. Lines the
// command writes to stderr are logged.
type CommandSource struct {
	path   string
	args   []string
	logger *slog.Logger
}

func NewCommandSource(cfg CommandConfig, logger *slog.Logger) *CommandSource {
	return &CommandSource{
		path:   cfg.Path,
		args:   cfg.Args,
		logger: logger,
	}
}

func (s *CommandSource) Name() string {
	return "command:" + s.path
}

func (s *CommandSource) Open(ctx context.Context) (io.ReadCloser, error) {
	binPath, err := FindRuntime(s.path)
	if err != nil {
		return nil, fmt.Errorf("finding command %s: %w", s.path, err)
	}

	cmd := exec.CommandContext(ctx, binPath, s.args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting command: %w", err)
	}

	r := &commandReader{
		ReadCloser: stdout,
		cmd:        cmd,
		stderrDone: make(chan struct{}),
	}
	go s.handleStderr(stderr, r.stderrDone)

	s.logger.Info("command started", slog.String("path", binPath), slog.Int("pid", cmd.Process.Pid))
	return r, nil
}

// handleStderr reads from stderr and logs every line.
func (s *CommandSource) handleStderr(stderr io.Reader, done chan<- struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		s.logger.Warn(fmt.Sprintf("%s >> %s", s.path, line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		s.logger.Warn(fmt.Sprintf("%s: error reading stderr: %s", ErrBrokenPipe, err))
	}
}

// commandReader is the stdout of a running command. Closing it stops the
// command and reaps it.
type commandReader struct {
	io.ReadCloser

	cmd        *exec.Cmd
	stderrDone chan struct{}
}

func (r *commandReader) Close() error {
	_ = r.cmd.Process.Kill()

	err := r.cmd.Wait()
	<-r.stderrDone

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &exitErr):
		// -1 means terminated by a signal, which is how the command is stopped
		if exitErr.ExitCode() > 0 {
			return fmt.Errorf("command exited with error: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("waiting for command: %w", err)
	}
}
