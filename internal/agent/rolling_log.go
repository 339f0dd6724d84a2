package agent

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var rollLog = logrus.WithField("component", "rolling_log")

// RollingLogs owns the agent's append-only per-account text logs, distinct
// from the worker's own log files. A file is truncated to its last keepLines
// lines whenever its size exceeds maxBytes, checked after every append.
type RollingLogs struct {
	dir       string
	maxBytes  int64
	keepLines int
	mu        sync.Mutex
}

func NewRollingLogs(dir string) *RollingLogs {
	return &RollingLogs{dir: dir, maxBytes: 500000, keepLines: 500}
}

// Path returns the rolling log file for username.
func (l *RollingLogs) Path(username string) string {
	return filepath.Join(l.dir, sanitizeUsername(username)+".log")
}

// Append writes one timestamped line and enforces the size bound.
func (l *RollingLogs) Append(username, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		rollLog.WithError(err).Warn("mkdir log dir failed")
		return
	}
	path := l.Path(username)
	timestamp := time.Now().UTC().Format("2006-01-02 15:04:05") + " GMT"
	line := fmt.Sprintf("%s %s\n", timestamp, message)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		rollLog.WithError(err).WithField("username", username).Warn("open rolling log failed")
		return
	}
	_, werr := f.WriteString(line)
	_ = f.Close()
	if werr != nil {
		rollLog.WithError(werr).WithField("username", username).Warn("append rolling log failed")
		return
	}

	st, err := os.Stat(path)
	if err != nil || st.Size() <= l.maxBytes {
		return
	}
	if err := l.truncateLocked(path); err != nil {
		rollLog.WithError(err).WithField("username", username).Warn("truncate rolling log failed")
	}
}

func (l *RollingLogs) truncateLocked(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(string(b), "\n")
	if len(lines) > l.keepLines {
		lines = lines[len(lines)-l.keepLines:]
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644)
}

// Tail returns up to n trailing lines of the rolling log. A missing file is
// not an error: the bot just never logged.
func (l *RollingLogs) Tail(username string, n int) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.Path(username))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			lines = append(lines, strings.TrimRight(line, "\r\n"))
			if len(lines) > n {
				lines = lines[len(lines)-n:]
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
	}
	return lines, nil
}

// Reset removes the rolling log so a fresh start begins with an empty file.
func (l *RollingLogs) Reset(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = os.Remove(l.Path(username))
}

// sanitizeUsername keeps the original file-name rule: anything outside
// [A-Za-z0-9_@.-] becomes '_'.
func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '@', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
