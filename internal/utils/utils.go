package utils

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long StreamCommand waits for the command after it
// exited or was signalled
var waitDelay = 5 * time.Second

// ExitError is returned by StreamCommand when the command was started but
// exited with a non-zero status
type ExitError struct {
	Cmd  string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with an error: %d", e.Cmd, e.Code)
}

// ExitCode returns exit code of the command if given error is an ExitError
// and -1 otherwise
func ExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

// StreamCommand runs given command with given arguments on given CWD.
// stderr is merged into stdout and the combined output is passed to onLine
// one line at a time while the command is running. Trailing new line chars
// are removed from the line.
// StreamCommand returns once the command itself exits, background processes
// left holding its output are cut off after waitDelay.
func StreamCommand(ctx context.Context, log *slog.Logger, envs []string, cwd string, onLine func(string), command string, args ...string) error {
	cmdStr := command + " " + strings.Join(args, " ")
	log.Log(ctx, -8, "running command", "cwd", cwd, "cmd", cmdStr)

	cmd := exec.CommandContext(ctx, command, args...)
	// force kill process after waitDelay of sending it sigterm (when ctx is
	// cancelled) and stop copying output of any processes it left behind
	cmd.WaitDelay = waitDelay
	if cwd != "" {
		cmd.Dir = cwd
	}

	// child process inherits current env, given envs take precedence
	cmd.Env = append(os.Environ(), envs...)

	// same writer for both streams so exec shares one pipe between them and
	// output order is preserved
	pr, pw := io.Pipe()
	defer pr.Close()
	cmd.Stdout = pw
	cmd.Stderr = pw

	start := time.Now()
	if err := cmd.Start(); err != nil {
		pw.Close()
		return fmt.Errorf("Run(%s): err:%w", cmdStr, err)
	}

	readErr := make(chan error, 1)
	go func() {
		readErr <- readLines(pr, onLine)
	}()

	err := cmd.Wait()
	pw.Close()
	rErr := <-readErr
	runTime := time.Since(start)

	if ctx.Err() != nil {
		return fmt.Errorf("Run(%s): err:%w", cmdStr, ctx.Err())
	}

	// output was cut off but the command itself succeeded
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		log.Log(ctx, -8, "command output closed after exit", "cmd", cmdStr, "wait-delay", waitDelay)
		err = nil
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		log.Log(ctx, -8, "command failed", "cmd", cmdStr, "exit-code", exitErr.ExitCode(), "time", runTime)
		return &ExitError{Cmd: command, Code: exitErr.ExitCode()}
	case err != nil:
		return fmt.Errorf("Run(%s): err:%w", cmdStr, err)
	case rErr != nil:
		return fmt.Errorf("Run(%s): unable to read output err:%w", cmdStr, rErr)
	}

	log.Log(ctx, -8, "command result", "cmd", cmdStr, "time", runTime)
	return nil
}

func readLines(r io.Reader, onLine func(string)) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" && onLine != nil {
			onLine(strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
