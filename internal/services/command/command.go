// Package command runs external tool binaries with streamed output and
// timeout-aware error classification shared by the renderer clients.
package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"longimage/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error
}

// New returns the Executor backed by os/exec.
func New() Executor {
	return commandExecutor{}
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error {
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%w: binary %q not found", services.ErrToolNotFound, binary)
	}
	if err := ctx.Err(); err != nil {
		return classifyWait(ctx, binary, err)
	}

	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if forward != nil {
				forward(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout, onStdout)
	go scan(stderr, onStderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan %s output: %w", binary, scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return classifyWait(ctx, binary, err)
	}
	return nil
}

// classifyWait maps a command failure onto the tool error taxonomy. A
// context deadline means the tool was killed for exceeding its budget; a
// plain cancellation means the job was cancelled; everything else with
// an exit status is a crash.
func classifyWait(ctx context.Context, binary string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s exceeded its time budget", services.ErrToolTimeout, binary)
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%w: %s interrupted", services.ErrCancelled, binary)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %s exited with status %d", services.ErrToolCrashed, binary, exitErr.ExitCode())
	}
	return fmt.Errorf("%w: %s: %v", services.ErrToolCrashed, binary, err)
}
