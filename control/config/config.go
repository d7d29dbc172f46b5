// Package config loads the word clock's wiring and tuning from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the whole configuration file.
type Config struct {
	Pins     Pins     `yaml:"pins"`
	Serial   Serial   `yaml:"serial"`
	Debounce Debounce `yaml:"debounce"`
	HTTP     HTTP     `yaml:"http"`
}

// Pins names the GPIO pins, as periph.io knows them (for example "P9_12" or "GPIO17").  Unset
// pins are not driven.
type Pins struct {
	Increment string   `yaml:"increment"`
	Decrement string   `yaml:"decrement"`
	Hour      []string `yaml:"hour"`  // Least significant bit first.
	Words     []string `yaml:"words"` // zehn, fünf, vor, nach, halb, drei, viertel, uhr.
}

// Serial configures the diagnostic UART.  An empty port sends the stream to the event log.
type Serial struct {
	Port  string `yaml:"port"`
	Speed int    `yaml:"speed"`
}

// Debounce tunes the button debouncer.
type Debounce struct {
	Interval string `yaml:"interval"` // Period of the debounce timer, like "12.5ms".
	Window   int    `yaml:"window"`   // Ticks a button must stay pressed.
	Guard    int    `yaml:"guard"`    // Ticks to ignore a button after it commits.
}

// HTTP configures the debug server.
type HTTP struct {
	Bind string `yaml:"bind"`
}

// Default returns the configuration used for anything the file leaves out.
func Default() *Config {
	return &Config{
		Serial:   Serial{Speed: 9600},
		Debounce: Debounce{Interval: "12.5ms", Window: 4, Guard: 8},
		HTTP:     HTTP{Bind: ":8080"},
	}
}

// Load reads a configuration file.  Environment variables in the file are expanded, after loading
// a .env file from the working directory if there is one.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse parses and validates configuration file contents.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks that the configuration can be used.
func (c *Config) Validate() error {
	var errs []error
	if l := len(c.Pins.Hour); l > 4 {
		errs = append(errs, fmt.Errorf("pins.hour: at most 4 pins, got %d", l))
	}
	if l := len(c.Pins.Words); l > 8 {
		errs = append(errs, fmt.Errorf("pins.words: at most 8 pins, got %d", l))
	}
	if (c.Pins.Increment == "") != (c.Pins.Decrement == "") {
		errs = append(errs, errors.New("pins: increment and decrement must be set together"))
	}
	if c.Serial.Speed <= 0 {
		errs = append(errs, fmt.Errorf("serial.speed: must be positive, got %d", c.Serial.Speed))
	}
	if d, err := time.ParseDuration(c.Debounce.Interval); err != nil {
		errs = append(errs, fmt.Errorf("debounce.interval: %w", err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("debounce.interval: must be positive, got %v", d))
	}
	if c.Debounce.Window < 1 {
		errs = append(errs, fmt.Errorf("debounce.window: must be at least 1, got %d", c.Debounce.Window))
	}
	if c.Debounce.Guard < 0 {
		errs = append(errs, fmt.Errorf("debounce.guard: must not be negative, got %d", c.Debounce.Guard))
	}
	return errors.Join(errs...)
}

// DebounceInterval returns the parsed debounce timer period.  Validate must have succeeded.
func (c *Config) DebounceInterval() time.Duration {
	d, _ := time.ParseDuration(c.Debounce.Interval)
	return d
}

// HasButtons returns true if button pins are configured.
func (c *Config) HasButtons() bool {
	return c.Pins.Increment != ""
}

// HourPins returns the hour pin names in a fixed-size array.
func (c *Config) HourPins() [4]string {
	var result [4]string
	copy(result[:], c.Pins.Hour)
	return result
}

// WordPins returns the word pin names in a fixed-size array.
func (c *Config) WordPins() [8]string {
	var result [8]string
	copy(result[:], c.Pins.Words)
	return result
}
