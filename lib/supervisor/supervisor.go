// Package supervisor launches the external VPN client and keeps signal
// delivery correct around the spawn window: a termination signal received at
// any point after Run begins is forwarded to the child exactly once, and the
// original signal disposition is restored before Run returns.
package supervisor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// Supervisor runs one child process to completion.
type Supervisor struct {
	Command string
	Args    []string

	// Signals to intercept and forward. Defaults to SIGTERM and SIGINT.
	Signals []os.Signal

	// Stdout and Stderr default to the supervisor's own.
	Stdout io.Writer
	Stderr io.Writer
}

// Run spawns the child and drives it to completion. writeSecret, when
// non-nil, is handed the child's stdin for the scoped duration of the call;
// the supervisor closes the stream afterwards, never the callback. The
// returned code is the child's exit status, with death-by-signal mapped to
// the conventional 128+signal.
//
// Ordering: signal interception starts before the spawn, so a signal
// arriving in the window between spawn and forwarder startup sits in the
// channel buffer rather than killing the supervisor; the forwarder only ever
// runs while the child exists; interception is undone after the exit status
// has been observed.
func (s *Supervisor) Run(writeSecret func(io.Writer) error) (int, error) {
	signals := s.Signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGTERM, os.Interrupt}
	}

	sigc := make(chan os.Signal, 4)
	signal.Notify(sigc, signals...)
	defer signal.Stop(sigc)

	cmd := exec.Command(s.Command, s.Args...)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return 0, fmt.Errorf("opening stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting %s: %w", s.Command, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigc:
				log.Debugf("Forwarding %s to pid %d", sig, cmd.Process.Pid)
				if err := cmd.Process.Signal(sig); err != nil {
					log.Debugf("Forwarding signal: %s", err)
				}
			case <-done:
				return
			}
		}
	}()

	var writeErr error
	if writeSecret != nil {
		writeErr = writeSecret(stdin)
	}
	// The child reads the secret until EOF, so the close is part of the
	// handoff, not cleanup.
	if err := stdin.Close(); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("closing child stdin: %w", err)
	}

	waitErr := cmd.Wait()
	close(done)
	signal.Stop(sigc)

	if writeErr != nil {
		return exitCode(cmd, waitErr), writeErr
	}

	if waitErr != nil {
		if _, ok := waitErr.(*exec.ExitError); !ok {
			return 0, waitErr
		}
	}
	return exitCode(cmd, waitErr), nil
}

// exitCode maps the observed process state to the code the program should
// re-exit with.
func exitCode(cmd *exec.Cmd, waitErr error) int {
	state := cmd.ProcessState
	if state == nil {
		return 1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	if code := state.ExitCode(); code >= 0 {
		return code
	}
	if waitErr != nil {
		return 1
	}
	return 0
}
