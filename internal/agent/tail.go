package agent

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

var tailLog = logrus.WithField("component", "tail")

const (
	// discoverWindow is how many trailing bytes of a candidate log are
	// inspected for the account identifier.
	discoverWindow = 5000
	// discoverCandidates caps how many recent files are content-checked.
	discoverCandidates = 5

	tailPollInterval = 500 * time.Millisecond
)

// tailSession owns one active follow loop. stop is synchronous and safe to
// call more than once; the subscription is released exactly once.
type tailSession struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *tailSession) stop() {
	if t == nil {
		return
	}
	t.cancel()
	<-t.done
}

// discoverWorkerLog picks the worker's log file: the five most recently
// modified *.log files are checked for the account identifier in their
// trailing window, first hit in recency order wins, otherwise fall back to
// the single newest file. ok=false means there is nothing to tail.
func discoverWorkerLog(dir, username string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	type candidate struct {
		path  string
		mtime time.Time
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{path: filepath.Join(dir, e.Name()), mtime: info.ModTime()})
	}
	if len(files) == 0 {
		return "", false
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mtime.After(files[j].mtime) })

	n := len(files)
	if n > discoverCandidates {
		n = discoverCandidates
	}
	for _, f := range files[:n] {
		if snippet, err := readTrailing(f.path, discoverWindow); err == nil && strings.Contains(snippet, username) {
			return f.path, true
		}
	}
	return files[0].path, true
}

func readTrailing(path string, n int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return "", err
	}
	start := int64(0)
	if st.Size() > n {
		start = st.Size() - n
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return "", err
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// followLoop streams newly appended lines of path into the record's line
// handler. It never holds a file handle across reads: every drain re-opens,
// so rotation and truncation (size shrinking below the carried offset) are
// survived by restarting from the top of the new content.
func (s *Supervisor) followLoop(ctx context.Context, rec *BotRecord, path string, offset int64, done chan struct{}) {
	defer close(done)

	var events chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		// fsnotify is more reliable watching the directory than the file
		if err := watcher.Add(filepath.Dir(path)); err == nil {
			events = watcher.Events
		}
	} else {
		tailLog.WithError(err).Debug("fsnotify unavailable, poll only")
	}

	ticker := time.NewTicker(tailPollInterval)
	defer ticker.Stop()

	var partial strings.Builder
	drain := func() {
		st, err := os.Stat(path)
		if err != nil {
			return
		}
		size := st.Size()
		if size < offset {
			offset = 0
			partial.Reset()
		}
		if size == offset {
			return
		}
		f, err := os.Open(path)
		if err != nil {
			return
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			_ = f.Close()
			return
		}
		b, err := io.ReadAll(io.LimitReader(f, size-offset))
		_ = f.Close()
		if err != nil && len(b) == 0 {
			return
		}
		offset += int64(len(b))
		partial.Write(b)
		for {
			buf := partial.String()
			idx := strings.IndexByte(buf, '\n')
			if idx < 0 {
				break
			}
			line := strings.TrimRight(buf[:idx], "\r")
			rest := buf[idx+1:]
			partial.Reset()
			partial.WriteString(rest)
			if line != "" {
				s.handleLogLine(rec, line)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Name != path || (!ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create)) {
				continue
			}
			drain()
		case <-ticker.C:
			drain()
		}
	}
}
