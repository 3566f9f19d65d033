package params

// TrackerConfig holds the segment completion thresholds.
type TrackerConfig struct {
	// CompletionThresholdFeet is the radius around a segment's end
	// that counts as having reached it.
	CompletionThresholdFeet float64 `mapstructure:"completion_threshold_feet" json:"completion_threshold_feet" validate:"gt=0"`

	// ArmingFactor scales CompletionThresholdFeet into the radius
	// around a segment's start that arms completion.
	ArmingFactor float64 `mapstructure:"arming_factor" json:"arming_factor" validate:"gte=1"`
}

func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		CompletionThresholdFeet: 100, // about 30 meters
		ArmingFactor:            1.5,
	}
}

// ArmingRadiusFeet is the radius around a segment's start that arms completion.
func (c TrackerConfig) ArmingRadiusFeet() float64 {
	return c.CompletionThresholdFeet * c.ArmingFactor
}
