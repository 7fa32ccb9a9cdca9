// Package rebuild marks manifest entries for regeneration and drives the
// external python tools that rebuild cached frames and light maps.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/anmitsu/go-shlex"
	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/logger"
)

// Tool runs one external rebuild command. args[0] is the script path.
type Tool interface {
	Run(ctx context.Context, args []string, env []string) (exitCode int, err error)
}

// PythonTool runs scripts with a python interpreter.
type PythonTool struct {
	// Command is the interpreter command line, e.g. "python3" or "uv run python".
	Command string
	// Dir is the working directory of the child process.
	Dir string
}

// NewPythonTool creates a tool for the given interpreter command line.
func NewPythonTool(command, dir string) *PythonTool {
	if command == "" {
		command = "python"
	}
	return &PythonTool{Command: command, Dir: dir}
}

// Run starts the interpreter with args and waits for it to exit. The
// child's stdout and stderr are forwarded to the engine log. A non-zero exit
// is reported through exitCode with a nil error; err is set only when the
// process could not run.
func (p *PythonTool) Run(ctx context.Context, args []string, env []string) (int, error) {
	argv, err := shlex.Split(p.Command, true)
	if err != nil {
		return -1, fmt.Errorf("parsing python command %q: %w", p.Command, err)
	}
	if len(argv) == 0 {
		return -1, fmt.Errorf("empty python command")
	}
	argv = append(argv, args...)

	source := "tool"
	if len(args) > 0 {
		source = filepath.Base(args[0])
	}
	stdout := logger.Writer(source)
	stderr := logger.Writer(source + ":stderr")
	defer stdout.Close()
	defer stderr.Close()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = p.Dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.Info("running tool", zap.Strings("argv", argv))
	err = cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, fmt.Errorf("running %s: %w", source, err)
	}
	return 0, nil
}
