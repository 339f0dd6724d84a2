package agent

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/process"
	"golang.org/x/sys/unix"
)

// Request errors reported synchronously to the start caller. Never retried.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNoCredential    = errors.New("account has no password")
)

// buildLaunchArgs assembles the JVM invocation for one account. Extra args
// arrive as "k=v&k2=v2" and become -D system properties, same contract the
// dashboard always used.
func buildLaunchArgs(cfg AccountConfig) []string {
	args := []string{
		"-Dusername=" + cfg.Username,
		"-Dpassword=" + cfg.Password,
		"-Xms512m",
		"-Xmx4096m",
	}
	if cfg.Args != "" {
		for _, pair := range strings.Split(cfg.Args, "&") {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			args = append(args, fmt.Sprintf("-D%s=%s", k, v))
		}
	}
	return append(args,
		"-cp", "PureInstaller.jar:RuneLite.jar",
		"ca.arnah.runelite.LauncherHijack",
	)
}

// spawnWorker launches the client detached in its own process group so an
// agent restart does not take the workers down. The returned Cmd is the
// intermediary launcher, not the worker itself; the PID resolver finds the
// real one later.
func (s *Supervisor) spawnWorker(cfg AccountConfig) (*exec.Cmd, error) {
	javaPath := s.cfg.JavaPath
	if javaPath == "" {
		p, err := exec.LookPath(s.cfg.WorkerExeName)
		if err != nil {
			return nil, fmt.Errorf("locate %s: %w", s.cfg.WorkerExeName, err)
		}
		javaPath = p
	}

	cmd := exec.Command(javaPath, buildLaunchArgs(cfg)...)
	cmd.Dir = s.cfg.WorkDir
	cmd.Env = append(os.Environ(), "LAUNCH_MODE=JVM")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	// Reap only. The worker outlives the launcher; exit detection is the
	// liveness monitor's job.
	go func() { _ = cmd.Wait() }()
	return cmd, nil
}

// killProcessGroup sends SIGTERM to the group, waits up to timeout, then
// SIGKILLs whatever is left.
func killProcessGroup(pid int, timeout time.Duration) error {
	if pid <= 0 {
		return nil
	}
	if err := unix.Kill(-pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		// Group may be gone already; fall back to the single process.
		_ = unix.Kill(pid, unix.SIGTERM)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}
	_ = unix.Kill(-pid, unix.SIGKILL)
	_ = unix.Kill(pid, unix.SIGKILL)
	return fmt.Errorf("stop timeout after %s (pid=%d)", timeout, pid)
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	alive, err := process.PidExists(int32(pid))
	if err != nil {
		return false
	}
	return alive
}
