package agent

import "strings"

// Marker literals matched against the worker's free-text log output. They are
// an implicit contract with the RuneLite/PAccountBuilder side and are kept in
// one place so a worker update only touches this file.
const (
	markerTask       = "Executing task:"
	markerLogin      = "LOGGED_IN"
	markerFailedTask = "PAccountBuilder: Failed to execute task"
	markerFailedRow  = "Failed tasks four times in a row"
	markerStopped    = "PAccountBuilder: Stopped"
	markerError      = "ERROR"
	markerException  = "Exception"

	failureDescPrefix = "PAccountBuilder: "
)

// EventKind classifies a single log line.
type EventKind int

const (
	EventTaskChanged EventKind = iota
	EventLoginSucceeded
	EventFailureDetected
	EventErrorObserved
)

// Event is one lifecycle signal extracted from a log line. A line can yield
// zero, one, or several events.
type Event struct {
	Kind    EventKind
	Task    string // EventTaskChanged
	Failure string // EventFailureDetected
}

// ClassifyLine maps one worker log line to lifecycle events. Pure function,
// no state: the supervisor applies the events.
func ClassifyLine(line string) []Event {
	var events []Event

	if strings.Contains(line, markerFailedTask) || strings.Contains(line, markerFailedRow) {
		desc := line
		if idx := strings.Index(line, failureDescPrefix); idx >= 0 {
			desc = line[idx+len(failureDescPrefix):]
		}
		events = append(events, Event{Kind: EventFailureDetected, Failure: desc})
	}

	if idx := strings.Index(line, markerTask); idx >= 0 {
		task := strings.TrimSpace(line[idx+len(markerTask):])
		if task != "" {
			events = append(events, Event{Kind: EventTaskChanged, Task: task})
		}
	}

	if strings.Contains(line, markerLogin) {
		events = append(events, Event{Kind: EventLoginSucceeded})
	}

	if strings.Contains(line, markerError) || strings.Contains(line, markerException) {
		events = append(events, Event{Kind: EventErrorObserved})
	}

	return events
}

// DeriveTask re-derives the current task from rolling-log lines, newest last.
// It scans in reverse for the same markers the live tail uses so the pull and
// push paths always agree.
func DeriveTask(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if idx := strings.Index(line, markerTask); idx >= 0 {
			return strings.TrimSpace(line[idx+len(markerTask):])
		}
		if strings.Contains(line, markerStopped) {
			return "Stopped"
		}
	}
	return "Idle"
}
