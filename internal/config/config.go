package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	cribnet "github.com/peterkuimelis/crib/internal/net"
)

// Connect controls how the client reaches the server.
type Connect struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// Config holds the client's tunables. Username and server address are not
// part of it; they are always asked for interactively.
type Config struct {
	Connect      Connect       `yaml:"connect"`
	PollInterval time.Duration `yaml:"poll_interval"`
	LogLevel     string        `yaml:"log_level"`
	// Transcript is a directory that receives every server frame; empty
	// disables recording.
	Transcript string `yaml:"transcript"`
	Greeting   bool   `yaml:"greeting"`
}

// Default returns the tunables used when no config file is given.
func Default() Config {
	return Config{
		Connect: Connect{
			Attempts: cribnet.DefaultConnectAttempts,
			Delay:    cribnet.DefaultConnectDelay,
		},
		PollInterval: cribnet.DefaultPollInterval,
		LogLevel:     "warn",
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.Connect.Attempts < 0 {
		return fmt.Errorf("connect.attempts: %d is negative", c.Connect.Attempts)
	}
	if c.Connect.Delay < 0 {
		return fmt.Errorf("connect.delay: %s is negative", c.Connect.Delay)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval: %s must be positive", c.PollInterval)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the zerolog level named by LogLevel.
func (c Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
