//go:build !windows

package spawn

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRunAndWait_CapturesOutput(t *testing.T) {
	res, err := Exec{}.RunAndWait(context.Background(), "echo out; echo err 1>&2", t.TempDir())
	if err != nil {
		t.Fatalf("RunAndWait error: %v", err)
	}
	if res.ExitCode != 0 || res.Stdout != "out\n" || res.Stderr != "err\n" {
		t.Errorf("result = %+v", res)
	}
}

func TestRunAndWait_NonZeroExit(t *testing.T) {
	res, err := Exec{}.RunAndWait(context.Background(), "echo partial; exit 3", t.TempDir())
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if res.ExitCode != 3 || res.Stdout != "partial\n" {
		t.Errorf("result = %+v", res)
	}
}

func TestRunAndWait_WorkDir(t *testing.T) {
	dir := t.TempDir()
	if _, err := (Exec{}).RunAndWait(context.Background(), "touch marker", dir); err != nil {
		t.Fatalf("RunAndWait error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "marker")); err != nil {
		t.Errorf("marker not created in work dir: %v", err)
	}
}

func TestSpawnDetached(t *testing.T) {
	dir := t.TempDir()
	if err := (Exec{}).SpawnDetached("touch started", dir); err != nil {
		t.Fatalf("SpawnDetached error: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(filepath.Join(dir, "started")); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("detached command did not run")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestEmptyCommand(t *testing.T) {
	if err := (Exec{}).SpawnDetached("  ", ""); !errors.Is(err, ErrNoCommand) {
		t.Errorf("SpawnDetached err = %v, want ErrNoCommand", err)
	}
	if _, err := (Exec{}).RunAndWait(context.Background(), "", ""); !errors.Is(err, ErrNoCommand) {
		t.Errorf("RunAndWait err = %v, want ErrNoCommand", err)
	}
}
