package params

// InfluxConfig configures the optional InfluxDB export of session events.
// Export is off while URL is empty.
type InfluxConfig struct {
	URL    string `mapstructure:"url" json:"url" validate:"omitempty,url"`
	Token  string `mapstructure:"token" json:"-"`
	Org    string `mapstructure:"org" json:"org" validate:"required_with=URL"`
	Bucket string `mapstructure:"bucket" json:"bucket" validate:"required_with=URL"`
}

func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}
