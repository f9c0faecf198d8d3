package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetHomeFromEnv(t *testing.T) {
	home := filepath.Join(t.TempDir(), "custom-home")
	t.Setenv(HomeEnv, home)

	got, err := GetHome()
	if err != nil {
		t.Fatalf("GetHome() error = %v", err)
	}
	if got != home {
		t.Errorf("GetHome() = %q, want %q", got, home)
	}
	if info, err := os.Stat(home); err != nil || !info.IsDir() {
		t.Errorf("home directory was not created: %v", err)
	}
}

func TestGetHistoryDBPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)

	got, err := GetHistoryDBPath(DefaultConfig())
	if err != nil {
		t.Fatalf("GetHistoryDBPath() error = %v", err)
	}
	if want := filepath.Join(home, "history.db"); got != want {
		t.Errorf("GetHistoryDBPath() = %q, want %q", got, want)
	}

	cfg := DefaultConfig()
	cfg.History.DBPath = "/explicit/path.db"
	got, err = GetHistoryDBPath(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got != "/explicit/path.db" {
		t.Errorf("GetHistoryDBPath() = %q, want explicit path", got)
	}
}

func TestGetTrackLockPath(t *testing.T) {
	got := GetTrackLockPath("/repo")
	if want := filepath.Join("/repo", ".findary", "track.lock"); got != want {
		t.Errorf("GetTrackLockPath() = %q, want %q", got, want)
	}
}
