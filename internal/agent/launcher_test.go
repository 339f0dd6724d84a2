package agent

import (
	"os"
	"testing"
	"time"
)

func TestBuildLaunchArgs(t *testing.T) {
	args := buildLaunchArgs(AccountConfig{
		Username: "alice",
		Password: "hunter2",
		Args:     "script=miner&world=309",
	})

	want := []string{
		"-Dusername=alice",
		"-Dpassword=hunter2",
		"-Xms512m",
		"-Xmx4096m",
		"-Dscript=miner",
		"-Dworld=309",
		"-cp", "PureInstaller.jar:RuneLite.jar",
		"ca.arnah.runelite.LauncherHijack",
	}
	if len(args) != len(want) {
		t.Fatalf("expected %d args, got %d: %v", len(want), len(args), args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("arg %d: expected %q, got %q", i, want[i], args[i])
		}
	}
}

func TestBuildLaunchArgsMalformedPairsSkipped(t *testing.T) {
	args := buildLaunchArgs(AccountConfig{Username: "alice", Args: "novalue&k=v"})
	for _, a := range args {
		if a == "-Dnovalue" || a == "-Dnovalue=" {
			t.Errorf("pair without '=' should be skipped, got %q", a)
		}
	}
	found := false
	for _, a := range args {
		if a == "-Dk=v" {
			found = true
		}
	}
	if !found {
		t.Error("well-formed pair missing")
	}
}

func TestKillProcessGroupZeroPID(t *testing.T) {
	if err := killProcessGroup(0, time.Second); err != nil {
		t.Errorf("pid 0 should be a no-op, got %v", err)
	}
	if err := killProcessGroup(-5, time.Second); err != nil {
		t.Errorf("negative pid should be a no-op, got %v", err)
	}
}

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Error("our own PID should be alive")
	}
	if processAlive(0) {
		t.Error("pid 0 should not read as alive")
	}
}
