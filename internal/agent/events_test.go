package agent

import "testing"

func TestClassifyLineTask(t *testing.T) {
	events := ClassifyLine("2024-01-05 10:00:00 [Client] INFO PAccountBuilder - Executing task: Mine iron")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != EventTaskChanged {
		t.Errorf("expected EventTaskChanged, got %v", events[0].Kind)
	}
	if events[0].Task != "Mine iron" {
		t.Errorf("expected task 'Mine iron', got %q", events[0].Task)
	}
}

func TestClassifyLineEmptyTaskIgnored(t *testing.T) {
	events := ClassifyLine("Executing task:   ")
	if len(events) != 0 {
		t.Errorf("blank task should yield no events, got %v", events)
	}
}

func TestClassifyLineLogin(t *testing.T) {
	events := ClassifyLine("GameStateChanged: LOGGED_IN")
	if len(events) != 1 || events[0].Kind != EventLoginSucceeded {
		t.Errorf("expected single login event, got %v", events)
	}
}

func TestClassifyLineFailure(t *testing.T) {
	events := ClassifyLine("WARN PAccountBuilder: Failed to execute task Chop oak logs")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != EventFailureDetected {
		t.Errorf("expected EventFailureDetected, got %v", events[0].Kind)
	}
	if events[0].Failure != "Failed to execute task Chop oak logs" {
		t.Errorf("failure description should start after the builder prefix, got %q", events[0].Failure)
	}
}

func TestClassifyLineFailedRowWithoutPrefix(t *testing.T) {
	line := "Failed tasks four times in a row, giving up"
	events := ClassifyLine(line)
	if len(events) != 1 || events[0].Kind != EventFailureDetected {
		t.Fatalf("expected single failure event, got %v", events)
	}
	if events[0].Failure != line {
		t.Errorf("without a builder prefix the whole line is the description, got %q", events[0].Failure)
	}
}

func TestClassifyLineError(t *testing.T) {
	for _, line := range []string{
		"2024-01-05 ERROR something broke",
		"java.lang.NullPointerException at ...",
	} {
		events := ClassifyLine(line)
		if len(events) != 1 || events[0].Kind != EventErrorObserved {
			t.Errorf("line %q: expected single error event, got %v", line, events)
		}
	}
}

func TestClassifyLineMultipleEvents(t *testing.T) {
	// A failure line also contains "Failed" but not "ERROR"/"Exception";
	// build one that trips both the failure and error matchers.
	events := ClassifyLine("ERROR PAccountBuilder: Failed to execute task Fish shrimp")
	kinds := map[EventKind]bool{}
	for _, e := range events {
		kinds[e.Kind] = true
	}
	if !kinds[EventFailureDetected] || !kinds[EventErrorObserved] {
		t.Errorf("expected failure and error events, got %v", events)
	}
}

func TestDeriveTaskNewestWins(t *testing.T) {
	lines := []string{
		"Executing task: Mine copper",
		"some chatter",
		"Executing task: Mine iron",
		"more chatter",
	}
	if got := DeriveTask(lines); got != "Mine iron" {
		t.Errorf("expected 'Mine iron', got %q", got)
	}
}

func TestDeriveTaskStopped(t *testing.T) {
	lines := []string{
		"Executing task: Mine iron",
		"PAccountBuilder: Stopped",
	}
	if got := DeriveTask(lines); got != "Stopped" {
		t.Errorf("expected 'Stopped', got %q", got)
	}
}

func TestDeriveTaskIdleDefault(t *testing.T) {
	if got := DeriveTask(nil); got != "Idle" {
		t.Errorf("expected 'Idle' for empty log, got %q", got)
	}
	if got := DeriveTask([]string{"nothing interesting"}); got != "Idle" {
		t.Errorf("expected 'Idle' with no markers, got %q", got)
	}
}
