package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Window defaults
	if cfg.Window.Width != 1280 {
		t.Errorf("expected width 1280, got %d", cfg.Window.Width)
	}
	if cfg.Window.Height != 720 {
		t.Errorf("expected height 720, got %d", cfg.Window.Height)
	}
	if cfg.Window.Fullscreen {
		t.Error("expected fullscreen to be false by default")
	}
	if !cfg.Window.VSync {
		t.Error("expected vsync to be true by default")
	}

	// Simulation defaults
	if cfg.Simulation.Gravity != -9.81 {
		t.Errorf("expected gravity -9.81, got %f", cfg.Simulation.Gravity)
	}
	if cfg.Simulation.Iterations != 10 {
		t.Errorf("expected 10 iterations, got %d", cfg.Simulation.Iterations)
	}
	if cfg.Simulation.Paused {
		t.Error("expected simulation to run by default")
	}

	// Scene defaults
	if cfg.Scene.File != "" {
		t.Errorf("expected no scene file, got %s", cfg.Scene.File)
	}
	if !cfg.Scene.Floor {
		t.Error("expected floor to be enabled by default")
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
window:
  width: 1920
  height: 1080
  fullscreen: true
  vsync: false

simulation:
  gravity: -20
  time_step: 0.01
  iterations: 25
  sleep_time_threshold: 0
  paused: true

scene:
  file: "levels/tower.xml"
  autosave: true
  floor: false

logging:
  level: "debug"
  log_file: "physbox.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Window.Width != 1920 || cfg.Window.Height != 1080 {
		t.Errorf("expected 1920x1080, got %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if !cfg.Window.Fullscreen {
		t.Error("expected fullscreen to be true")
	}
	if cfg.Window.VSync {
		t.Error("expected vsync to be false")
	}
	// Title was not in the file and keeps its default
	if cfg.Window.Title != "physbox" {
		t.Errorf("expected default title, got %q", cfg.Window.Title)
	}

	if cfg.Simulation.Gravity != -20 {
		t.Errorf("expected gravity -20, got %f", cfg.Simulation.Gravity)
	}
	if cfg.Simulation.TimeStep != 0.01 {
		t.Errorf("expected time step 0.01, got %f", cfg.Simulation.TimeStep)
	}
	if cfg.Simulation.Iterations != 25 {
		t.Errorf("expected 25 iterations, got %d", cfg.Simulation.Iterations)
	}
	if !cfg.Simulation.Paused {
		t.Error("expected paused to be true")
	}

	if cfg.Scene.File != "levels/tower.xml" {
		t.Errorf("expected scene file levels/tower.xml, got %s", cfg.Scene.File)
	}
	if !cfg.Scene.AutoSave || cfg.Scene.Floor {
		t.Errorf("unexpected scene flags: %+v", cfg.Scene)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "physbox.log" {
		t.Errorf("expected log file 'physbox.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
window:
  width: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero time step", func(c *Config) { c.Simulation.TimeStep = 0 }},
		{"huge time step", func(c *Config) { c.Simulation.TimeStep = 1 }},
		{"no iterations", func(c *Config) { c.Simulation.Iterations = 0 }},
		{"zero width", func(c *Config) { c.Window.Width = 0 }},
		{"ambient above one", func(c *Config) { c.Lighting.Ambient = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	os.Chdir(tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("window:\n  width: 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find config.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "scene flag",
			setup: func() { *flagScene = "demo.xml" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Scene.File != "demo.xml" {
					t.Errorf("expected scene demo.xml, got %s", cfg.Scene.File)
				}
			},
			teardown: func() { *flagScene = "" },
		},
		{
			name:  "fullscreen flag",
			setup: func() { *flagFullscreen = true },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Window.Fullscreen {
					t.Error("expected fullscreen to be true with fullscreen flag")
				}
			},
			teardown: func() { *flagFullscreen = false },
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 2560
				*flagHeight = 1440
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Window.Width != 2560 || cfg.Window.Height != 1440 {
					t.Errorf("expected 2560x1440, got %dx%d", cfg.Window.Width, cfg.Window.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
		{
			name:  "gravity and paused flags",
			setup: func() { *flagGravity = -3.5; *flagPaused = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Simulation.Gravity != -3.5 {
					t.Errorf("expected gravity -3.5, got %f", cfg.Simulation.Gravity)
				}
				if !cfg.Simulation.Paused {
					t.Error("expected paused with paused flag")
				}
			},
			teardown: func() { *flagGravity = 0; *flagPaused = false },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)

			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
window:
  width: 1600
  height: 900
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Width should be from flag (1920), not file (1600)
	if cfg.Window.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Window.Width)
	}
	// Height should be from file (900) since no flag override
	if cfg.Window.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Window.Height)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Scene.File = "saved.xml"
	cfg.Simulation.Gravity = -1.5
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("loadFromFile: %v", err)
	}
	if loaded.Scene.File != "saved.xml" || loaded.Simulation.Gravity != -1.5 {
		t.Errorf("round trip lost values: %+v", loaded)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# physbox") {
		t.Errorf("saved config should start with the header comment, got %q", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only config.yaml in the directory, got %d entries", len(entries))
	}
}
