package webd

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rotblauer/everystreet/common"
	"github.com/rotblauer/everystreet/directions"
	"github.com/rotblauer/everystreet/params"
)

type stubProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *stubProvider) Route(ctx context.Context, waypoints []orb.Point) (*directions.Route, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return &directions.Route{
		Geometry: orb.LineString(waypoints),
		Distance: common.MetersPerMile,
		Duration: 60,
		Steps:    []directions.Step{{Instruction: "Head north", Distance: 111, Duration: 10}},
	}, nil
}

func (p *stubProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// newTestWebDaemon creates a WebDaemon with a stub provider and an httptest server.
// Teardown stops both.
func newTestWebDaemon(t *testing.T, mutate func(c *params.WebDaemonConfig)) (*WebDaemon, *httptest.Server, *stubProvider) {
	t.Helper()
	config := params.DefaultTestWebDaemonConfig()
	if mutate != nil {
		mutate(&config)
	}
	p := &stubProvider{}
	d, err := NewWebDaemon(&config, WithProvider(p))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = d.Stop(context.Background())
	})
	return d, srv, p
}
