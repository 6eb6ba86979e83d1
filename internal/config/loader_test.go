package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/voicewire/internal/config"
)

const validYAML = `
server:
  metrics_addr: ":9090"
  log_level: info
session:
  base_url: wss://example.test/v1/realtime
  model: gpt-4o-realtime-preview
  api_key_env: OPENAI_API_KEY
  voice: coral
  instructions: Be concise.
  transcription_model: whisper-1
  turn_detection: server_vad
  modalities:
    - text
    - audio
audio:
  sample_rate: 24000
  period_ms: 10
  pre_buffer_ms: 100
  buffer_seconds: 10
tools:
  - name: generate_image
    description: Renders an image from a prompt.
    parameters:
      type: object
      properties:
        prompt:
          type: string
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %q", cfg.Server.MetricsAddr)
	}
	if cfg.Session.Voice != "coral" {
		t.Errorf("Voice = %q", cfg.Session.Voice)
	}
	if cfg.Audio.PreBufferMs != 100 {
		t.Errorf("PreBufferMs = %d", cfg.Audio.PreBufferMs)
	}
	if len(cfg.Tools) != 1 || cfg.Tools[0].Name != "generate_image" {
		t.Errorf("Tools = %+v", cfg.Tools)
	}
	if cfg.Tools[0].Parameters["type"] != "object" {
		t.Errorf("tool parameters not passed through: %+v", cfg.Tools[0].Parameters)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()
	yaml := `
session:
  model: gpt-4o-realtime-preview
  vioce: coral
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for misspelled field, got nil")
	}
	if !strings.Contains(err.Error(), "vioce") {
		t.Errorf("error should name the unknown field, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_InvalidModality(t *testing.T) {
	t.Parallel()
	yaml := `
session:
  modalities:
    - text
    - video
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid modality, got nil")
	}
	if !strings.Contains(err.Error(), "video") {
		t.Errorf("error should name the bad modality, got: %v", err)
	}
}

func TestValidate_AudioRanges(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  sample_rate: -1
  period_ms: 2000
  pre_buffer_ms: -5
  buffer_seconds: -2
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors for out-of-range audio settings, got nil")
	}
	// All failures are reported together.
	for _, want := range []string{"sample_rate", "period_ms", "pre_buffer_ms", "buffer_seconds"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_PreBufferLargerThanRing(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  pre_buffer_ms: 3000
  buffer_seconds: 2
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error when the pre-buffer exceeds the ring, got nil")
	}
}

func TestValidate_DuplicateToolNames(t *testing.T) {
	t.Parallel()
	yaml := `
tools:
  - name: generate_image
  - name: generate_image
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate tool names, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_ToolNameRequired(t *testing.T) {
	t.Parallel()
	yaml := `
tools:
  - description: a tool without a name
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unnamed tool, got nil")
	}
	if !strings.Contains(err.Error(), "name is required") {
		t.Errorf("error should mention the missing name, got: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("does/not/exist.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
