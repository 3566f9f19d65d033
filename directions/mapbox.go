package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/everystreet/params"
	"github.com/tidwall/gjson"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 16 << 20

type mapboxResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry *geojson.Geometry `json:"geometry"`
		Distance float64           `json:"distance"`
		Duration float64           `json:"duration"`
		Legs     []struct {
			Steps []struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
				Name     string  `json:"name"`
				Maneuver struct {
					Type        string    `json:"type"`
					Modifier    string    `json:"modifier"`
					Instruction string    `json:"instruction"`
					Location    []float64 `json:"location"`
				} `json:"maneuver"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// Client talks to the Mapbox Directions API, or anything that answers like it.
type Client struct {
	cfg   params.DirectionsConfig
	http  *http.Client
	cache *lru.Cache[string, *Route]
	log   *slog.Logger
}

// NewClient returns a client configured by cfg.
// A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg params.DirectionsConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	c := &Client{
		cfg:  cfg,
		http: httpClient,
		log:  slog.With("d", "directions"),
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, *Route](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("directions cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// RequestURL builds the request URL for waypoints.
func (c *Client) RequestURL(waypoints []orb.Point) string {
	return fmt.Sprintf("%s/directions/v5/%s/%s?steps=true&geometries=geojson&overview=full&access_token=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Profile,
		WaypointString(waypoints), url.QueryEscape(c.cfg.AccessToken))
}

// Route requests a route through waypoints, which are [lon, lat].
func (c *Client) Route(ctx context.Context, waypoints []orb.Point) (*Route, error) {
	if err := checkWaypoints(waypoints); err != nil {
		return nil, err
	}
	key := c.cfg.Profile + "/" + WaypointString(waypoints)
	if c.cache != nil {
		if r, ok := c.cache.Get(key); ok {
			c.log.Debug("Directions cache hit", "waypoints", len(waypoints))
			return r, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(waypoints), nil)
	if err != nil {
		return nil, fmt.Errorf("directions request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The url.Error would carry the access token.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("directions request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("directions response: %w", err)
	}

	route, err := decodeRoute(resp.StatusCode, body)
	if err != nil {
		c.log.Warn("Directions request failed", "status", resp.StatusCode, "error", err)
		return nil, err
	}
	c.log.Debug("Directions route", "waypoints", len(waypoints),
		"distance", route.Distance, "steps", len(route.Steps))
	if c.cache != nil {
		c.cache.Add(key, route)
	}
	return route, nil
}

func decodeRoute(status int, body []byte) (*Route, error) {
	message := func() string {
		if m := gjson.GetBytes(body, "message"); m.Exists() && m.String() != "" {
			return m.String()
		}
		return DefaultNoRouteMessage
	}

	if status != http.StatusOK {
		return nil, &RouteError{StatusCode: status, Message: message()}
	}

	res := mapboxResponse{}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode directions response: %w", err)
	}
	if len(res.Routes) == 0 {
		return nil, &RouteError{StatusCode: status, Message: message()}
	}

	first := res.Routes[0]
	if len(first.Legs) == 0 {
		return nil, &RouteError{StatusCode: status, Message: message()}
	}
	route := &Route{
		Distance: first.Distance,
		Duration: first.Duration,
		Steps:    []Step{},
	}
	if first.Geometry != nil {
		route.Geometry = first.Geometry.Geometry()
	}
	for _, leg := range first.Legs {
		for _, st := range leg.Steps {
			step := Step{
				Instruction: st.Maneuver.Instruction,
				Name:        st.Name,
				Distance:    st.Distance,
				Duration:    st.Duration,
				Maneuver: Maneuver{
					Type:        st.Maneuver.Type,
					Modifier:    st.Maneuver.Modifier,
					Instruction: st.Maneuver.Instruction,
				},
			}
			if len(st.Maneuver.Location) >= 2 {
				step.Maneuver.Location = orb.Point{st.Maneuver.Location[0], st.Maneuver.Location[1]}
			}
			route.Steps = append(route.Steps, step)
		}
	}
	if len(route.Steps) == 0 {
		return nil, &RouteError{StatusCode: status, Message: message()}
	}
	return route, nil
}
