package params

type RoutePolicy string

const (
	// RoutePolicyNearest targets the single uncompleted segment whose start is nearest.
	RoutePolicyNearest RoutePolicy = "nearest"
	// RoutePolicyBatch routes through uncompleted segments in stored order.
	RoutePolicyBatch RoutePolicy = "batch"
)

// MaxWaypoints is the most waypoints the directions API accepts in one request.
const MaxWaypoints = 25

// MaxBatchSegments is how many segments fit in one request:
// one waypoint for the user plus a start and an end per segment.
const MaxBatchSegments = (MaxWaypoints - 1) / 2

type RouterConfig struct {
	Policy     RoutePolicy `mapstructure:"policy" json:"policy" validate:"oneof=nearest batch"`
	BatchLimit int         `mapstructure:"batch_limit" json:"batch_limit" validate:"min=1,max=11"`
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Policy:     RoutePolicyNearest,
		BatchLimit: MaxBatchSegments,
	}
}
