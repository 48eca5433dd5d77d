package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Timer   TimerConfig   `yaml:"timer"`
	Battery BatteryConfig `yaml:"battery"`
	Display DisplayConfig `yaml:"display"`
	Mock    MockConfig    `yaml:"mock"`
	Alarm   AlarmConfig   `yaml:"alarm"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port string `yaml:"port"`
}

// TimerConfig contains the countdown preset.
type TimerConfig struct {
	PresetMinutes uint16        `yaml:"preset_minutes"`
	StartFinished bool          `yaml:"start_finished"` // Start at 0:00 instead of the preset
	TickInterval  time.Duration `yaml:"tick_interval"`
	StepMinutes   uint16        `yaml:"step_minutes"` // Minutes added/removed per button press
}

// BatteryConfig describes the battery voltage front-end and thresholds.
type BatteryConfig struct {
	R1             float64 `yaml:"r1"`   // Divider top resistor (Ω)
	R2             float64 `yaml:"r2"`   // Divider bottom resistor (Ω)
	VRef           float64 `yaml:"vref"` // ADC reference (V)
	EmptyMV        uint16  `yaml:"empty_mv"`
	FullMV         uint16  `yaml:"full_mv"`
	LowMV          uint16  `yaml:"low_mv"`
	AverageSamples int     `yaml:"average_samples"` // Number of reports to average (0 = disabled)
}

// DisplayConfig contains host panel settings.
type DisplayConfig struct {
	Scale  int  `yaml:"scale"` // Host pixels per oled pixel
	Invert bool `yaml:"invert"`
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	StartMV          uint16        `yaml:"start_mv"`            // Battery voltage at connect (mV)
	DrainMVPerSecond float64       `yaml:"drain_mv_per_second"` // Battery drain rate
	NoiseMV          float64       `yaml:"noise_mv"`            // Reading noise amplitude (mV)
	ReportRate       time.Duration `yaml:"report_rate"`
}

// AlarmConfig controls the sound played when the countdown finishes.
type AlarmConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Volume       float64       `yaml:"volume"`     // Gain exponent, 0 = unchanged, negative is quieter
	SoundFile    string        `yaml:"sound_file"` // Optional WAV file; a generated tone is used when empty
	Beeps        int           `yaml:"beeps"`
	ToneHz       float64       `yaml:"tone_hz"`
	BeepDuration time.Duration `yaml:"beep_duration"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port: "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
		},
		Timer: TimerConfig{
			PresetMinutes: 30,
			StartFinished: false,
			TickInterval:  time.Second,
			StepMinutes:   1,
		},
		Battery: BatteryConfig{
			R1:             10000,
			R2:             10000,
			VRef:           3.3,
			EmptyMV:        3300,
			FullMV:         4200,
			LowMV:          3500,
			AverageSamples: 0,
		},
		Display: DisplayConfig{
			Scale:  4,
			Invert: false,
		},
		Mock: MockConfig{
			StartMV:          4100,
			DrainMVPerSecond: 0.5,
			NoiseMV:          5,
			ReportRate:       200 * time.Millisecond,
		},
		Alarm: AlarmConfig{
			Enabled:      true,
			Volume:       0,
			Beeps:        3,
			ToneHz:       880,
			BeepDuration: 200 * time.Millisecond,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that cannot be repaired by falling back to defaults.
func (c *Config) Validate() error {
	if c.Timer.PresetMinutes > 999 {
		return fmt.Errorf("timer.preset_minutes out of range: %d (max 999)", c.Timer.PresetMinutes)
	}
	if c.Battery.FullMV <= c.Battery.EmptyMV {
		return fmt.Errorf("battery.full_mv (%d) must be above battery.empty_mv (%d)", c.Battery.FullMV, c.Battery.EmptyMV)
	}
	if c.Alarm.Beeps < 0 {
		return fmt.Errorf("alarm.beeps must not be negative: %d", c.Alarm.Beeps)
	}
	if c.Battery.AverageSamples < 0 {
		return fmt.Errorf("battery.average_samples must not be negative: %d", c.Battery.AverageSamples)
	}
	if c.Timer.TickInterval <= 0 {
		return fmt.Errorf("timer.tick_interval must be positive: %s", c.Timer.TickInterval)
	}
	if c.Mock.ReportRate <= 0 {
		return fmt.Errorf("mock.report_rate must be positive: %s", c.Mock.ReportRate)
	}
	if c.Alarm.BeepDuration <= 0 {
		return fmt.Errorf("alarm.beep_duration must be positive: %s", c.Alarm.BeepDuration)
	}
	if c.Alarm.ToneHz <= 0 {
		return fmt.Errorf("alarm.tone_hz must be positive: %g", c.Alarm.ToneHz)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}

	if c.Timer.PresetMinutes == 0 && !c.Timer.StartFinished {
		c.Timer.PresetMinutes = def.Timer.PresetMinutes
	}
	if c.Timer.TickInterval == 0 {
		c.Timer.TickInterval = def.Timer.TickInterval
	}
	if c.Timer.StepMinutes == 0 {
		c.Timer.StepMinutes = def.Timer.StepMinutes
	}

	if c.Battery.R1 == 0 {
		c.Battery.R1 = def.Battery.R1
	}
	if c.Battery.R2 == 0 {
		c.Battery.R2 = def.Battery.R2
	}
	if c.Battery.VRef == 0 {
		c.Battery.VRef = def.Battery.VRef
	}
	if c.Battery.EmptyMV == 0 {
		c.Battery.EmptyMV = def.Battery.EmptyMV
	}
	if c.Battery.FullMV == 0 {
		c.Battery.FullMV = def.Battery.FullMV
	}
	if c.Battery.LowMV == 0 {
		c.Battery.LowMV = def.Battery.LowMV
	}

	if c.Display.Scale == 0 {
		c.Display.Scale = def.Display.Scale
	}

	if c.Mock.StartMV == 0 {
		c.Mock.StartMV = def.Mock.StartMV
	}
	if c.Mock.ReportRate == 0 {
		c.Mock.ReportRate = def.Mock.ReportRate
	}

	if c.Alarm.Beeps == 0 {
		c.Alarm.Beeps = def.Alarm.Beeps
	}
	if c.Alarm.ToneHz == 0 {
		c.Alarm.ToneHz = def.Alarm.ToneHz
	}
	if c.Alarm.BeepDuration == 0 {
		c.Alarm.BeepDuration = def.Alarm.BeepDuration
	}
}
