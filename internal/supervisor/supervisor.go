// Package supervisor starts and watches the local ProPresenter
// process. Pure process plumbing; no export logic lives here.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/log"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/propresenter"
)

// processName is the executable name ProPresenter runs under.
const processName = "ProPresenter"

// readyPollInterval is the cadence of Version() probes after a launch.
const readyPollInterval = 500 * time.Millisecond

// LaunchResult reports what LaunchAndWait did and where it ended up.
type LaunchResult struct {
	Launched bool   `json:"launched"`
	Ready    bool   `json:"ready"`
	Error    string `json:"error,omitempty"`
}

// VersionPoller is the probe used to decide API readiness. Satisfied
// by *propresenter.Client.
type VersionPoller interface {
	Version(ctx context.Context) (propresenter.VersionInfo, error)
}

// Supervisor checks for and launches the ProPresenter process.
type Supervisor struct {
	Client VersionPoller
}

// New returns a supervisor probing readiness through client.
func New(client VersionPoller) *Supervisor {
	return &Supervisor{Client: client}
}

// IsRunning reports whether a ProPresenter process exists on this host.
func (s *Supervisor) IsRunning(ctx context.Context) (bool, error) {
	switch runtime.GOOS {
	case "windows":
		out, err := exec.CommandContext(ctx, "tasklist", "/FI", "IMAGENAME eq "+processName+".exe", "/NH").Output()
		if err != nil {
			return false, fmt.Errorf("tasklist: %w", err)
		}
		return strings.Contains(string(out), processName), nil
	default:
		err := exec.CommandContext(ctx, "pgrep", "-x", processName).Run()
		if err == nil {
			return true, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return false, nil // no match
		}
		return false, fmt.Errorf("pgrep: %w", err)
	}
}

// LaunchAndWait launches ProPresenter if it is not running, then polls
// the Version endpoint until the API answers or timeout elapses.
func (s *Supervisor) LaunchAndWait(ctx context.Context, timeout time.Duration) LaunchResult {
	logger := log.WithComponent("supervisor")
	result := LaunchResult{}

	running, err := s.IsRunning(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("process check failed, attempting launch anyway")
	}
	if !running {
		if err := s.launch(ctx); err != nil {
			result.Error = err.Error()
			return result
		}
		result.Launched = true
		logger.Info().Msg("launched ProPresenter")
	}

	ready := s.waitReady(ctx, timeout)
	ready.Launched = result.Launched
	return ready
}

// waitReady polls the Version endpoint until it answers or timeout
// elapses.
func (s *Supervisor) waitReady(ctx context.Context, timeout time.Duration) LaunchResult {
	result := LaunchResult{}
	deadline := time.Now().Add(timeout)
	for {
		probeCtx, cancel := context.WithTimeout(ctx, readyPollInterval)
		_, err := s.Client.Version(probeCtx)
		cancel()
		if err == nil {
			result.Ready = true
			return result
		}
		if time.Now().After(deadline) {
			result.Error = "ProPresenter API did not become ready in time"
			return result
		}
		select {
		case <-ctx.Done():
			result.Error = ctx.Err().Error()
			return result
		case <-time.After(readyPollInterval):
		}
	}
}

func (s *Supervisor) launch(ctx context.Context) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", "-a", processName)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/C", "start", "", processName+".exe")
	default:
		return fmt.Errorf("launching ProPresenter is not supported on %s", runtime.GOOS)
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("launch %s: %w", processName, err)
	}
	return nil
}
