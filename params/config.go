package params

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	DataDir    string           `mapstructure:"datadir" json:"datadir"`
	Tracker    TrackerConfig    `mapstructure:"tracker" json:"tracker"`
	Router     RouterConfig     `mapstructure:"router" json:"router"`
	Directions DirectionsConfig `mapstructure:"directions" json:"directions"`
	Web        WebDaemonConfig  `mapstructure:"web" json:"web"`
	Influx     InfluxConfig     `mapstructure:"influx" json:"influx"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:    DefaultDatadirRoot,
		Tracker:    DefaultTrackerConfig(),
		Router:     DefaultRouterConfig(),
		Directions: DefaultDirectionsConfig(),
		Web:        DefaultWebDaemonConfig(),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	return ValidateStruct(c)
}

// ValidateStruct checks the struct tags of any params struct.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SetDefaults registers DefaultConfig values with v so that
// env vars and partial config files layer over them.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("datadir", d.DataDir)
	v.SetDefault("tracker.completion_threshold_feet", d.Tracker.CompletionThresholdFeet)
	v.SetDefault("tracker.arming_factor", d.Tracker.ArmingFactor)
	v.SetDefault("router.policy", string(d.Router.Policy))
	v.SetDefault("router.batch_limit", d.Router.BatchLimit)
	v.SetDefault("directions.base_url", d.Directions.BaseURL)
	v.SetDefault("directions.profile", d.Directions.Profile)
	v.SetDefault("directions.access_token", "")
	v.SetDefault("directions.timeout", d.Directions.Timeout)
	v.SetDefault("directions.cache_size", d.Directions.CacheSize)
	v.SetDefault("web.network", d.Web.Network)
	v.SetDefault("web.address", d.Web.Address)
	v.SetDefault("web.session_ttl", d.Web.SessionTTL)
	v.SetDefault("web.max_upload_bytes", d.Web.MaxUploadBytes)
	v.SetDefault("web.token", "")
	v.SetDefault("influx.url", "")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "")
	v.SetDefault("influx.bucket", "")
}

// BindEnv wires EVERYSTREET_* variables and the conventional
// MAPBOX_ACCESS_TOKEN to their config keys.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("directions.access_token",
		EnvPrefix+"_DIRECTIONS_ACCESS_TOKEN", "MAPBOX_ACCESS_TOKEN"); err != nil {
		return err
	}
	return v.BindEnv("influx.token", EnvPrefix+"_INFLUX_TOKEN", "INFLUXDB_TOKEN")
}

// Load unmarshals, expands and validates the config held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	dir, err := ExpandDatadir(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("expand datadir: %w", err)
	}
	cfg.DataDir = dir
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
