package installer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"devenv/internal/logger"
)

// Runner launches installer executables and waits for them to finish.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec and captures their combined output.
type ExecRunner struct{}

// Run executes name with args. A launch failure or non-zero exit is an error
// that carries the command's output.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	logger.Debug("[DEBUG] Running command: %s\n", strings.Join(cmd.Args, " "))
	output, err := cmd.CombinedOutput()
	logger.Debug("[DEBUG] Command output: %s\n", output)
	if err != nil {
		return fmt.Errorf("%s: %w\nOutput: %s", name, err, output)
	}
	return nil
}
