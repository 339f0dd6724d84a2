package agent

import (
	"context"
	"os/exec"
	"time"
)

// Status is the lifecycle state of a supervised bot.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
)

// AccountConfig is the immutable configuration snapshot a bot was launched
// with. Copied at start time: later edits to the stored account never affect
// a running record.
type AccountConfig struct {
	Username string
	Password string
	Plugin   string
	Args     string // "k=v&k2=v2" pairs passed as -D system properties
	RSN      string
}

// BotRecord is the registry's per-account state. All fields are guarded by
// the supervisor mutex; the deferred callbacks (PID resolver, tail, liveness)
// re-check the record is still registered before writing.
type BotRecord struct {
	Username    string
	Cmd         *exec.Cmd // immediate spawn handle; an intermediary, not the worker
	PID         int       // resolved worker PID; 0 until resolution succeeds, never reset
	StartedAt   time.Time
	Config      AccountConfig
	Status      Status
	CurrentTask string

	tail       *tailSession       // non-nil exactly while tailing is active
	liveCancel context.CancelFunc // cancels the liveness poll loop
	finalized  bool               // liveness/stop finalization ran (exactly once)
}

// killTarget is the PID forced termination should aim at: the resolved worker
// PID when known, otherwise the spawn handle's own PID, otherwise 0 (skip).
func (r *BotRecord) killTarget() int {
	if r.PID > 0 {
		return r.PID
	}
	if r.Cmd != nil && r.Cmd.Process != nil {
		return r.Cmd.Process.Pid
	}
	return 0
}

// reportedPID is what list/status surfaces show: resolved PID preferred,
// spawn PID as a fallback, nil before either exists.
func (r *BotRecord) reportedPID() *int {
	if pid := r.killTarget(); pid > 0 {
		p := pid
		return &p
	}
	return nil
}
