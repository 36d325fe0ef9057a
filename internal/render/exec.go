package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTimeout = 60 * time.Second

// Config contains the settings shared by every command-line backend
type Config struct {
	// BinaryPath is the path to the tool. If empty, the tool's default name
	// is searched in PATH.
	BinaryPath string
	// Timeout bounds a single invocation
	Timeout time.Duration
	// TempDir is where per-call workspaces are created
	TempDir string
	// Logger for debug output
	Logger *zap.Logger
}

// tool is a resolved external binary.
type tool struct {
	name    string
	binary  string
	timeout time.Duration
	tempDir string
	logger  *zap.Logger
}

func newTool(name, defaultBinary string, cfg *Config) (*tool, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	binary := cfg.BinaryPath
	if binary == "" {
		binary = defaultBinary
	}
	resolved, err := resolveBinaryPath(binary)
	if err != nil {
		return nil, NewRenderError(ErrCodeBinaryNotFound,
			fmt.Sprintf("%s binary not found: %s", name, binary), err)
	}

	t := &tool{
		name:    name,
		binary:  resolved,
		timeout: cfg.Timeout,
		tempDir: cfg.TempDir,
		logger:  cfg.Logger,
	}
	if t.timeout == 0 {
		t.timeout = defaultTimeout
	}
	if t.tempDir == "" {
		t.tempDir = os.TempDir()
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	return t, nil
}

// resolveBinaryPath finds the full path to the binary
func resolveBinaryPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return path, nil
	}
	return exec.LookPath(path)
}

// workspace creates a private directory for one invocation. The returned
// cleanup removes it with everything inside.
func (t *tool) workspace() (string, func(), error) {
	dir, err := os.MkdirTemp(t.tempDir, t.name+"-"+uuid.NewString()[:8]+"-*")
	if err != nil {
		return "", func() {}, NewRenderError(ErrCodeRenderFailed, "failed to create temp dir", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			t.logger.Warn("failed to remove temp dir", zap.String("dir", dir), zap.Error(err))
		}
	}, nil
}

// run executes the tool with args under the configured timeout.
func (t *tool) run(ctx context.Context, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	t.logger.Debug("executing "+t.name,
		zap.String("binary", t.binary),
		zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, t.binary, args...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return NewRenderError(ErrCodeRenderTimeout,
				fmt.Sprintf("%s timed out after %v", t.name, t.timeout), err)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return NewRenderError(ErrCodeRenderTimeout, t.name+" was cancelled", err)
		}

		t.logger.Error(t.name+" failed",
			zap.Error(err),
			zap.String("stderr", stderr.String()),
			zap.String("stdout", stdout.String()))

		return NewRenderError(ErrCodeRenderFailed,
			t.name+" execution failed: "+strings.TrimSpace(stderr.String()), err)
	}

	t.logger.Debug(t.name+" finished", zap.Duration("duration", time.Since(start)))
	return nil
}

// readOutput reads a file the tool was expected to produce.
func readOutput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "expected output was not produced", err)
	}
	if len(data) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "output is empty", nil)
	}
	return data, nil
}
