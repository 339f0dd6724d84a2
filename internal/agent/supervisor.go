package agent

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var supLog = logrus.WithField("component", "supervisor")

// AccountSource resolves an account's launch configuration. Unknown accounts
// return (nil, nil); errors are transport failures only.
type AccountSource interface {
	Lookup(ctx context.Context, username string) (*AccountConfig, error)
}

// Supervisor owns the bot registry: the single source of truth for every
// running account's lifecycle state. All record mutation goes through its
// mutex, and every deferred callback (PID resolver, tail, liveness, removal)
// re-checks the record is still the registered one before writing, so a stop
// racing a pending callback can never revive a removed record.
type Supervisor struct {
	cfg      Config
	accounts AccountSource
	logs     *RollingLogs
	alerts   *AlertSink
	hub      *Hub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	bots     map[string]*BotRecord
	lastTask map[string]string
}

func NewSupervisor(cfg Config, accounts AccountSource, alerts *AlertSink) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:      cfg,
		accounts: accounts,
		logs:     NewRollingLogs(cfg.LogDir),
		alerts:   alerts,
		ctx:      ctx,
		cancel:   cancel,
		bots:     make(map[string]*BotRecord),
		lastTask: make(map[string]string),
	}
}

// AttachHub wires the state broadcaster; done after construction because the
// hub's snapshot closure points back at the supervisor.
func (s *Supervisor) AttachHub(h *Hub) { s.hub = h }

// RollingLogs exposes the per-account log store (the HTTP layer reads it).
func (s *Supervisor) RollingLogs() *RollingLogs { return s.logs }

// StartOverrides are the optional per-start plugin/argument overrides.
type StartOverrides struct {
	Plugin string
	Args   string
}

// Start launches a worker for username and registers its record. Returns the
// immediate spawn PID; alreadyRunning is true when a live record exists, in
// which case nothing is spawned.
func (s *Supervisor) Start(ctx context.Context, username string, ov StartOverrides) (pid int, alreadyRunning bool, err error) {
	acct, err := s.accounts.Lookup(ctx, username)
	if err != nil {
		return 0, false, fmt.Errorf("account lookup: %w", err)
	}
	if acct == nil {
		return 0, false, ErrAccountNotFound
	}
	if strings.TrimSpace(acct.Password) == "" {
		return 0, false, ErrNoCredential
	}

	cfg := *acct
	if ov.Plugin != "" {
		cfg.Plugin = ov.Plugin
	}
	if ov.Args != "" {
		cfg.Args = ov.Args
	}

	s.mu.Lock()
	if existing, ok := s.bots[username]; ok && existing.Status != StatusStopped {
		p := 0
		if rp := existing.reportedPID(); rp != nil {
			p = *rp
		}
		s.mu.Unlock()
		return p, true, nil
	}
	// A stopped record awaiting grace removal is replaced: restarting an
	// account always creates a brand-new record.
	rec := &BotRecord{
		Username:  username,
		StartedAt: time.Now(),
		Config:    cfg,
		Status:    StatusStarting,
	}
	s.bots[username] = rec
	s.mu.Unlock()

	supLog.WithFields(logrus.Fields{
		"username": username,
		"plugin":   cfg.Plugin,
	}).Info("starting bot")

	s.logs.Reset(username)
	s.logs.Append(username, "[AGENT] Starting bot")

	cmd, err := s.spawnWorker(cfg)
	if err != nil {
		s.mu.Lock()
		if s.bots[username] == rec {
			delete(s.bots, username)
		}
		s.mu.Unlock()
		s.logs.Append(username, "[AGENT] Launch failed: "+err.Error())
		return 0, false, err
	}

	s.mu.Lock()
	rec.Cmd = cmd
	s.mu.Unlock()
	s.logs.Append(username, fmt.Sprintf("[AGENT] Launched with PID %d", cmd.Process.Pid))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.afterSettle(rec)
	}()
	return cmd.Process.Pid, false, nil
}

// afterSettle runs the deferred half of a start: PID resolution, worker log
// discovery + tailing, then the liveness poll. All of it waits out the settle
// delay first so the worker runtime has registered in the process table and
// opened its log.
func (s *Supervisor) afterSettle(rec *BotRecord) {
	select {
	case <-s.ctx.Done():
		return
	case <-time.After(s.cfg.SettleDelay):
	}

	for attempt := 1; attempt <= s.cfg.PIDResolveAttempts; attempt++ {
		pid, found := findWorkerPID(rec.Username, s.cfg.WorkerExeName)
		if found {
			s.mu.Lock()
			if s.bots[rec.Username] != rec || rec.Status == StatusStopped {
				s.mu.Unlock()
				return // record gone, discard the result
			}
			if rec.PID == 0 {
				rec.PID = pid
			}
			s.mu.Unlock()
			supLog.WithFields(logrus.Fields{"username": rec.Username, "pid": pid}).Info("resolved worker PID")
			s.logs.Append(rec.Username, fmt.Sprintf("[AGENT] Java PID: %d", pid))
			break
		}
		if attempt == s.cfg.PIDResolveAttempts {
			// Not an error: liveness and termination degrade to no-ops.
			supLog.WithField("username", rec.Username).Warn("worker PID not found in process table")
			break
		}
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.cfg.SettleDelay):
		}
	}

	s.mu.Lock()
	gone := s.bots[rec.Username] != rec || rec.Status == StatusStopped
	s.mu.Unlock()
	if gone {
		return
	}

	if path, ok := discoverWorkerLog(s.cfg.WorkerLogDir, rec.Username); ok {
		s.logs.Append(rec.Username, "[AGENT] Tailing: "+path)
		s.startTail(rec, path)
	} else {
		supLog.WithField("username", rec.Username).Info("no worker log found, tailing not started")
	}

	s.startLiveness(rec)
}

func (s *Supervisor) startTail(rec *BotRecord, path string) {
	var offset int64
	if st, err := os.Stat(path); err == nil {
		offset = st.Size() // only lines appended after attach matter
	}

	ctx, cancel := context.WithCancel(s.ctx)
	sess := &tailSession{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if s.bots[rec.Username] != rec || rec.Status == StatusStopped {
		s.mu.Unlock()
		cancel()
		return
	}
	rec.tail = sess
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.followLoop(ctx, rec, path, offset, sess.done)
	}()
}

func (s *Supervisor) startLiveness(rec *BotRecord) {
	ctx, cancel := context.WithCancel(s.ctx)

	s.mu.Lock()
	if s.bots[rec.Username] != rec || rec.Status == StatusStopped {
		s.mu.Unlock()
		cancel()
		return
	}
	rec.liveCancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.livenessLoop(ctx, rec)
	}()
}

// livenessLoop is the only path that detects an unexpectedly-crashed worker:
// the detached spawn gives us no exit signal, so we poll the process table.
func (s *Supervisor) livenessLoop(ctx context.Context, rec *BotRecord) {
	t := time.NewTicker(s.cfg.LivenessInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.mu.Lock()
			pid := rec.PID
			s.mu.Unlock()
			if pid <= 0 {
				continue // not resolved yet: still starting, not failed
			}
			if processAlive(pid) {
				continue
			}
			s.finalize(rec, "[AGENT] Process exited")
			supLog.WithField("username", rec.Username).Info("bot exited")
			return
		}
	}
}

// finalize moves a record to stopped exactly once: stops liveness, releases
// the tail subscription, and schedules removal after the grace delay so
// observers get one more snapshot with the terminal state.
func (s *Supervisor) finalize(rec *BotRecord, note string) {
	s.mu.Lock()
	if s.bots[rec.Username] != rec || rec.finalized {
		s.mu.Unlock()
		return
	}
	rec.finalized = true
	rec.Status = StatusStopped
	tail := rec.tail
	rec.tail = nil
	cancelLive := rec.liveCancel
	rec.liveCancel = nil
	s.mu.Unlock()

	if cancelLive != nil {
		cancelLive()
	}
	tail.stop()
	s.logs.Append(rec.Username, note)
	s.scheduleRemoval(rec)
}

func (s *Supervisor) scheduleRemoval(rec *BotRecord) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.cfg.GraceDelay):
		}
		s.mu.Lock()
		if s.bots[rec.Username] == rec {
			delete(s.bots, rec.Username)
		}
		s.mu.Unlock()
	}()
}

// Stop tears down an account's record: tail and liveness synchronously, then
// forced termination of the last known PID. Idempotent; stopping an unknown
// account succeeds trivially.
func (s *Supervisor) Stop(ctx context.Context, username string) error {
	s.mu.Lock()
	rec, ok := s.bots[username]
	if !ok {
		s.mu.Unlock()
		supLog.WithField("username", username).Info("stop requested for unknown bot (no-op)")
		return nil
	}
	var tail *tailSession
	var cancelLive context.CancelFunc
	if !rec.finalized {
		rec.finalized = true
		rec.Status = StatusStopped
		tail = rec.tail
		rec.tail = nil
		cancelLive = rec.liveCancel
		rec.liveCancel = nil
	}
	killPID := rec.killTarget()
	s.mu.Unlock()

	if cancelLive != nil {
		cancelLive()
	}
	tail.stop()

	if killPID > 0 {
		if err := killProcessGroup(killPID, 4*time.Second); err != nil {
			supLog.WithError(err).WithField("username", username).Warn("forced termination failed")
			s.logs.Append(username, "[AGENT] Kill failed: "+err.Error())
		} else {
			s.logs.Append(username, fmt.Sprintf("[AGENT] Stopped via kill PID %d", killPID))
		}
	} else {
		s.logs.Append(username, "[AGENT] No valid PID to kill")
	}

	s.scheduleRemoval(rec)
	return nil
}

// handleLogLine applies the classified events of one tailed worker line.
func (s *Supervisor) handleLogLine(rec *BotRecord, line string) {
	s.logs.Append(rec.Username, line)

	for _, ev := range ClassifyLine(line) {
		switch ev.Kind {
		case EventTaskChanged:
			s.mu.Lock()
			if s.bots[rec.Username] != rec {
				s.mu.Unlock()
				return
			}
			rec.CurrentTask = ev.Task
			s.lastTask[rec.Username] = ev.Task
			s.mu.Unlock()
			if s.hub != nil {
				s.hub.BroadcastTask(rec.Username, ev.Task)
			}
		case EventLoginSucceeded:
			s.mu.Lock()
			if s.bots[rec.Username] == rec && rec.Status != StatusStopped {
				rec.Status = StatusRunning
			}
			s.mu.Unlock()
		case EventFailureDetected:
			s.mu.Lock()
			pid := rec.PID
			s.mu.Unlock()
			s.alerts.Send(rec.Username, ev.Failure, pid)
		case EventErrorObserved:
			s.logs.Append(rec.Username, "[ERROR] "+line)
		}
	}
}

// Snapshot builds the full-state view the broadcaster pushes.
func (s *Supervisor) Snapshot() []StateEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StateEntry, 0, len(s.bots))
	for _, rec := range s.bots {
		task := rec.CurrentTask
		if task == "" {
			task = "Idle"
		}
		out = append(out, StateEntry{
			Username:    rec.Username,
			Status:      rec.Status,
			CurrentTask: task,
			PID:         rec.reportedPID(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// BotInfo is one row of the bot list query.
type BotInfo struct {
	Username  string     `json:"username"`
	Status    Status     `json:"status"`
	PID       *int       `json:"pid"`
	StartTime *time.Time `json:"startTime"`
}

func (s *Supervisor) List() []BotInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BotInfo, 0, len(s.bots))
	for _, rec := range s.bots {
		started := rec.StartedAt
		out = append(out, BotInfo{
			Username:  rec.Username,
			Status:    rec.Status,
			PID:       rec.reportedPID(),
			StartTime: &started,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// LogView is the pull-based per-account log/status query result.
type LogView struct {
	Logs        string `json:"logs"`
	Status      Status `json:"status"`
	CurrentTask string `json:"currentTask"`
}

// LogsFor returns the trailing rolling log plus the task re-derived from it.
// When the derived task differs from the last broadcast value the delta is
// pushed, keeping passive pollers and push observers in sync.
func (s *Supervisor) LogsFor(username string) (LogView, error) {
	lines, err := s.logs.Tail(username, 1000)
	if err != nil {
		return LogView{}, err
	}
	task := DeriveTask(lines)

	s.mu.Lock()
	status := StatusStopped
	if rec, ok := s.bots[username]; ok {
		status = rec.Status
	}
	changed := s.lastTask[username] != task
	if changed {
		s.lastTask[username] = task
	}
	s.mu.Unlock()

	if changed && s.hub != nil {
		s.hub.BroadcastTask(username, task)
	}
	return LogView{
		Logs:        strings.Join(lines, "\n"),
		Status:      status,
		CurrentTask: task,
	}, nil
}

// Shutdown releases every tail subscription and issues a best-effort forced
// termination for every known PID, without waiting for confirmation.
func (s *Supervisor) Shutdown() {
	s.cancel()

	s.mu.Lock()
	var tails []*tailSession
	var pids []int
	for _, rec := range s.bots {
		if rec.tail != nil {
			tails = append(tails, rec.tail)
			rec.tail = nil
		}
		if pid := rec.killTarget(); pid > 0 {
			pids = append(pids, pid)
		}
	}
	s.mu.Unlock()

	for _, t := range tails {
		t.stop()
	}
	for _, pid := range pids {
		_ = unix.Kill(-pid, unix.SIGKILL)
		_ = unix.Kill(pid, unix.SIGKILL)
	}
	s.wg.Wait()
}
