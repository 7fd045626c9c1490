package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "wsclient") {
		t.Errorf("GetConfigDir() = %v, should contain 'wsclient'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("macOS config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}

	t.Setenv(ConfigPathEnvVar, "/tmp/custom.yaml")
	configPath, err = GetConfigPath()
	if err != nil || configPath != "/tmp/custom.yaml" {
		t.Errorf("GetConfigPath() with override = %v, %v", configPath, err)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Profiles == nil {
		t.Error("NewRegistry().Profiles should be initialized")
	}
	if reg.Preferences == nil || reg.Preferences.DiscoverTimeout != 5 {
		t.Errorf("NewRegistry().Preferences = %+v", reg.Preferences)
	}
}

func TestRegistryProfiles(t *testing.T) {
	reg := NewRegistry()

	cfg := Default()
	cfg.Headers = map[string]string{"Origin": "https://example.com"}
	reg.SetProfile("echo", "ws://localhost:8080/echo", "local echo", cfg)
	reg.SetProfile("alpha", "wss://alpha.example.com", "", Default())
	reg.Preferences.DefaultProfile = "echo"

	cfg.Headers["Origin"] = "mutated"
	p := reg.GetProfile("echo")
	if p == nil {
		t.Fatal("GetProfile(echo) = nil")
	}
	if p.Config.Headers["Origin"] != "https://example.com" {
		t.Error("SetProfile did not copy the headers map")
	}

	if got := reg.ProfileNames(); len(got) != 2 || got[0] != "alpha" || got[1] != "echo" {
		t.Errorf("ProfileNames() = %v", got)
	}

	reg.TouchProfile("echo")
	if reg.Profiles["echo"].LastUsed.IsZero() {
		t.Error("TouchProfile did not set LastUsed")
	}

	if !reg.DeleteProfile("echo") {
		t.Error("DeleteProfile(echo) = false")
	}
	if reg.DeleteProfile("echo") {
		t.Error("second DeleteProfile(echo) = true")
	}
	if reg.Preferences.DefaultProfile != "" {
		t.Error("deleting the default profile should clear DefaultProfile")
	}
	if reg.GetProfile("missing") != nil {
		t.Error("GetProfile(missing) should be nil")
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	testConfigPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg := NewRegistry()
	cfg := Default()
	cfg.Compression = true
	cfg.PingInterval = 15 * time.Second
	cfg.Extensions = map[string]string{"x-test": "a=1"}
	cfg.TLS.ServerName = "echo.internal"
	reg.SetProfile("prod", "wss://prod.example.com/ws", "production", cfg)

	if err := reg.SaveTo(testConfigPath); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	info, err := os.Stat(testConfigPath)
	if err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadRegistryFrom(testConfigPath)
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}

	p := loaded.GetProfile("prod")
	if p == nil {
		t.Fatal("profile should exist in loaded registry")
	}
	if p.URL != "wss://prod.example.com/ws" || p.Description != "production" {
		t.Errorf("loaded profile = %+v", p)
	}
	if !p.Config.Compression || p.Config.PingInterval != 15*time.Second {
		t.Errorf("loaded config = %+v", p.Config)
	}
	if p.Config.Extensions["x-test"] != "a=1" || p.Config.TLS.ServerName != "echo.internal" {
		t.Errorf("loaded config maps = %+v", p.Config)
	}
}

func TestLoadRegistryFrom_Missing(t *testing.T) {
	reg, err := LoadRegistryFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}
	if reg.Version != 1 || len(reg.Profiles) != 0 {
		t.Errorf("LoadRegistryFrom(missing) = %+v", reg)
	}
}

func TestLoadRegistryFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad version", content: "version: 2\n"},
		{name: "bad yaml", content: "version: [1\n"},
		{name: "bad profile config", content: "version: 1\nprofiles:\n  x:\n    url: ws://h\n    config:\n      compression_level: 12\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadRegistryFrom(path); err == nil {
				t.Error("LoadRegistryFrom() error = nil, want error")
			}
		})
	}
}

func BenchmarkGetConfigDir(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetConfigDir()
	}
}
