// Package config provides the configuration schema and loader for the
// voicewire client.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voicewire.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Audio   AudioConfig   `yaml:"audio"`
	Tools   []ToolConfig  `yaml:"tools"`
}

// ServerConfig holds logging and telemetry settings for the client process.
type ServerConfig struct {
	// MetricsAddr is the TCP address the /metrics and /healthz endpoints
	// listen on (e.g. ":9090"). Empty disables the telemetry server.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// SessionConfig describes the remote speech service connection. It maps
// onto the session.update handshake sent once per connection.
type SessionConfig struct {
	// BaseURL is the WebSocket endpoint. Empty uses the service default.
	BaseURL string `yaml:"base_url"`

	// Model selects the remote model (e.g. "gpt-4o-realtime-preview").
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself never lives in the config file.
	APIKeyEnv string `yaml:"api_key_env"`

	// Voice selects the model's voice identity.
	Voice string `yaml:"voice"`

	// Instructions are the natural-language system instructions.
	Instructions string `yaml:"instructions"`

	// TranscriptionModel enables user-speech transcription when set
	// (e.g. "whisper-1").
	TranscriptionModel string `yaml:"transcription_model"`

	// TurnDetection selects the turn-detection mode (e.g. "server_vad").
	TurnDetection string `yaml:"turn_detection"`

	// Modalities enabled for responses. Defaults to text and audio.
	Modalities []string `yaml:"modalities"`
}

// AudioConfig tunes the local audio pipeline.
type AudioConfig struct {
	// SampleRate in Hz. Defaults to 24000, the wire format's rate.
	SampleRate int `yaml:"sample_rate"`

	// PeriodMs is the device callback period in milliseconds.
	PeriodMs int `yaml:"period_ms"`

	// PreBufferMs is how much audio must be queued before playback of a
	// response starts. Higher absorbs more jitter at the cost of latency.
	PreBufferMs int `yaml:"pre_buffer_ms"`

	// BufferSeconds sizes the playback ring buffer.
	BufferSeconds int `yaml:"buffer_seconds"`
}

// ToolConfig declares one externally-implemented tool announced to the
// model. Parameters is a JSON-schema-shaped map passed through verbatim.
type ToolConfig struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters"`
}
