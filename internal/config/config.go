// Package config handles sandbox configuration loading and management.
package config

// Config holds all sandbox settings.
type Config struct {
	Window     WindowConfig     `yaml:"window"`
	Simulation SimulationConfig `yaml:"simulation"`
	Scene      SceneConfig      `yaml:"scene"`
	Lighting   LightingConfig   `yaml:"lighting"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// WindowConfig holds display settings for the viewer.
type WindowConfig struct {
	Title      string `yaml:"title"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Fullscreen bool   `yaml:"fullscreen"`
	VSync      bool   `yaml:"vsync"`
}

// SimulationConfig holds physics world settings.
type SimulationConfig struct {
	Gravity            float32 `yaml:"gravity"`              // Acceleration along Y, negative is down
	TimeStep           float32 `yaml:"time_step"`            // Fixed step in seconds
	Iterations         int     `yaml:"iterations"`           // Solver iterations per step
	SleepTimeThreshold float32 `yaml:"sleep_time_threshold"` // Idle seconds before a body freezes, 0 disables
	Paused             bool    `yaml:"paused"`
}

// SceneConfig holds scene document settings.
type SceneConfig struct {
	File     string `yaml:"file"`     // Scene loaded at startup and written by save
	AutoSave bool   `yaml:"autosave"` // Save on exit
	Floor    bool   `yaml:"floor"`    // Spawn a static floor when no scene file is loaded
	Watch    bool   `yaml:"watch"`    // Reload the scene file when it changes on disk
}

// LightingConfig places the directional light used to shade objects.
type LightingConfig struct {
	SunAzimuth   float32 `yaml:"sun_azimuth"`   // Degrees around Y, 0 is +Z
	SunElevation float32 `yaml:"sun_elevation"` // Degrees above the horizon
	Ambient      float32 `yaml:"ambient"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:      "physbox",
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
		},
		Simulation: SimulationConfig{
			Gravity:            -9.81,
			TimeStep:           1.0 / 60.0,
			Iterations:         10,
			SleepTimeThreshold: 0.5,
			Paused:             false,
		},
		Scene: SceneConfig{
			File:     "",
			AutoSave: false,
			Floor:    true,
			Watch:    false,
		},
		Lighting: LightingConfig{
			SunAzimuth:   210,
			SunElevation: 60,
			Ambient:      0.25,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
