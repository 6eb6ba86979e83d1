package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidModalities lists the response modalities the remote service supports.
var ValidModalities = []string{"text", "audio"}

// ValidTurnDetectionModes lists known turn-detection modes. Used by
// [Validate] to warn about unrecognised modes.
var ValidTurnDetectionModes = []string{"server_vad", "semantic_vad"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Session
	for i, m := range cfg.Session.Modalities {
		if !slices.Contains(ValidModalities, m) {
			errs = append(errs, fmt.Errorf("session.modalities[%d] %q is invalid; valid values: text, audio", i, m))
		}
	}
	if td := cfg.Session.TurnDetection; td != "" && !slices.Contains(ValidTurnDetectionModes, td) {
		slog.Warn("unknown turn-detection mode, passing through as-is",
			"mode", td,
			"known", ValidTurnDetectionModes,
		)
	}
	if cfg.Session.APIKeyEnv != "" {
		if _, ok := os.LookupEnv(cfg.Session.APIKeyEnv); !ok {
			slog.Warn("api_key_env names an unset environment variable; the connection will be unauthenticated",
				"env", cfg.Session.APIKeyEnv,
			)
		}
	}

	// Audio
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must not be negative", cfg.Audio.SampleRate))
	}
	if cfg.Audio.PeriodMs < 0 || cfg.Audio.PeriodMs > 1000 {
		errs = append(errs, fmt.Errorf("audio.period_ms %d is out of range [0, 1000]", cfg.Audio.PeriodMs))
	}
	if cfg.Audio.PreBufferMs < 0 {
		errs = append(errs, fmt.Errorf("audio.pre_buffer_ms %d must not be negative", cfg.Audio.PreBufferMs))
	}
	if cfg.Audio.BufferSeconds < 0 {
		errs = append(errs, fmt.Errorf("audio.buffer_seconds %d must not be negative", cfg.Audio.BufferSeconds))
	}
	if cfg.Audio.PreBufferMs > 0 && cfg.Audio.BufferSeconds > 0 &&
		cfg.Audio.PreBufferMs >= cfg.Audio.BufferSeconds*1000 {
		errs = append(errs, fmt.Errorf("audio.pre_buffer_ms %d must be smaller than the ring buffer (%d s)", cfg.Audio.PreBufferMs, cfg.Audio.BufferSeconds))
	}

	// Tools: duplicate name detection
	toolNamesSeen := make(map[string]int, len(cfg.Tools))
	for i, tool := range cfg.Tools {
		prefix := fmt.Sprintf("tools[%d]", i)
		if tool.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := toolNamesSeen[tool.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of tools[%d]", prefix, tool.Name, prev))
		}
		toolNamesSeen[tool.Name] = i
	}

	return errors.Join(errs...)
}
