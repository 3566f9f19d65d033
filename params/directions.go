package params

import "time"

// PlaceholderAccessToken is shipped in sample configs and counts as no token at all.
const PlaceholderAccessToken = "YOUR_MAPBOX_ACCESS_TOKEN_HERE"

type DirectionsConfig struct {
	BaseURL     string        `mapstructure:"base_url" json:"base_url" validate:"required,url"`
	Profile     string        `mapstructure:"profile" json:"profile" validate:"required"`
	AccessToken string        `mapstructure:"access_token" json:"-"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout" validate:"gte=0"`

	// CacheSize is the number of successful responses kept in memory.
	// Zero disables the cache.
	CacheSize int `mapstructure:"cache_size" json:"cache_size" validate:"gte=0"`
}

func DefaultDirectionsConfig() DirectionsConfig {
	return DirectionsConfig{
		BaseURL:   "https://api.mapbox.com",
		Profile:   "mapbox/driving",
		Timeout:   30 * time.Second,
		CacheSize: 64,
	}
}

// HasCredentials is false when the token is missing or still the placeholder.
func (c DirectionsConfig) HasCredentials() bool {
	return c.AccessToken != "" && c.AccessToken != PlaceholderAccessToken
}
