package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"

	"plugin-exec-engine/internal/sandbox"
)

// ErrNoProcessSlots is returned by Launch when the concurrent-process cap is
// reached and the caller's context expires before a slot frees up.
var ErrNoProcessSlots = errors.New("no worker process slots available")

// killGrace is how long a cancelled worker gets to exit after SIGKILL before
// Launch stops waiting on it.
const killGrace = 2 * time.Second

// Launcher runs plugin invocations in dedicated worker processes by
// re-executing the host binary with the worker marker set. A semaphore caps
// how many workers run at once.
type Launcher struct {
	binary string
	sem    chan struct{}
}

// NewLauncher builds a Launcher capped at maxConcurrent simultaneous worker
// processes. It resolves the host binary path once at startup.
func NewLauncher(maxConcurrent int) (*Launcher, error) {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	binary, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolving host binary: %w", err)
	}
	return &Launcher{
		binary: binary,
		sem:    make(chan struct{}, maxConcurrent),
	}, nil
}

// Launch runs one worker request in a fresh process and returns its decoded
// response. Cancelling ctx kills the worker; the worker's own rlimits and
// backstop deadline bound it if the parent dies instead.
func (l *Launcher) Launch(ctx context.Context, req *sandbox.WorkerRequest) (*sandbox.WorkerResponse, error) {
	select {
	case l.sem <- struct{}{}:
		defer func() { <-l.sem }()
	case <-ctx.Done():
		return nil, ErrNoProcessSlots
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding worker request: %w", err)
	}

	cmd := exec.Command(l.binary)
	cmd.Env = append(os.Environ(), sandbox.WorkerEnv+"=1")
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting worker process: %w", err)
	}
	pid := cmd.Process.Pid
	log.Debug().Int("pid", pid).Str("entry_point", req.EntryPoint).Msg("worker process started")

	exitCh := make(chan error, 1)
	go func() { exitCh <- cmd.Wait() }()

	select {
	case err = <-exitCh:
	case <-ctx.Done():
		if killErr := cmd.Process.Kill(); killErr != nil {
			log.Warn().Err(killErr).Int("pid", pid).Msg("failed to kill worker process")
		}
		select {
		case <-exitCh:
		case <-time.After(killGrace):
			log.Warn().Int("pid", pid).Msg("worker process did not exit after kill")
		}
		return nil, ctx.Err()
	}

	if err != nil {
		return nil, fmt.Errorf("worker process failed: %w (stderr: %s)", err, truncateStderr(stderr.String()))
	}

	var resp sandbox.WorkerResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decoding worker response: %w", err)
	}
	return &resp, nil
}

func truncateStderr(s string) string {
	const max = 512
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
