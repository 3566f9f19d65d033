package params

import "time"

type WebDaemonConfig struct {
	ListenerConfig `mapstructure:",squash"`

	// SessionTTL is how long an idle session is kept before it is dropped.
	SessionTTL time.Duration `mapstructure:"session_ttl" json:"session_ttl" validate:"gt=0"`

	// MaxUploadBytes bounds uploaded map files.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" json:"max_upload_bytes" validate:"gt=0"`

	// Token, if set, is required on mutating requests.
	Token string `mapstructure:"token" json:"-"`
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3000",
	}
}

func DefaultWebDaemonConfig() WebDaemonConfig {
	return WebDaemonConfig{
		ListenerConfig: DefaultWebListenerConfig(),
		SessionTTL:     24 * time.Hour,
		MaxUploadBytes: 32 << 20,
	}
}

func DefaultTestWebDaemonConfig() WebDaemonConfig {
	d := DefaultWebDaemonConfig()
	d.Address = "localhost:3333"
	d.SessionTTL = time.Minute
	return d
}
