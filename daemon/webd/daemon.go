package webd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/gorilla/mux"
	"github.com/jellydator/ttlcache/v3"
	"github.com/olahol/melody"
	"github.com/rotblauer/everystreet/conceptual"
	"github.com/rotblauer/everystreet/directions"
	"github.com/rotblauer/everystreet/params"
	"github.com/rotblauer/everystreet/session"
)

type WebDaemon struct {
	Config *params.WebDaemonConfig

	// SessionConfig is applied to every new session.
	SessionConfig session.Config

	provider directions.Provider
	history  session.Recorder

	logger         *slog.Logger
	melodyInstance *melody.Melody
	sessions       *ttlcache.Cache[conceptual.SessionID, *session.Session]
	subs           sync.Map // conceptual.SessionID -> event.Subscription
	feedEvents     event.FeedOf[session.Event]

	// ctx outlives requests; background route requests run on it.
	ctx    context.Context
	cancel context.CancelFunc

	started     time.Time
	server      *http.Server
	done        chan struct{}
	interrupted atomic.Bool
}

type Option func(*WebDaemon)

// WithProvider sets the directions provider shared by all sessions.
func WithProvider(p directions.Provider) Option {
	return func(d *WebDaemon) { d.provider = p }
}

func WithHistory(r session.Recorder) Option {
	return func(d *WebDaemon) { d.history = r }
}

func WithSessionConfig(c session.Config) Option {
	return func(d *WebDaemon) { d.SessionConfig = c }
}

func NewWebDaemon(config *params.WebDaemonConfig, opts ...Option) (*WebDaemon, error) {
	logger := slog.With("d", "web")
	if config == nil {
		logger.Warn("No config provided, using default")
		c := params.DefaultWebDaemonConfig()
		config = &c
	}
	if err := params.ValidateStruct(config); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &WebDaemon{
		Config:        config,
		SessionConfig: session.DefaultConfig(),
		logger:        logger,
		sessions: ttlcache.New[conceptual.SessionID, *session.Session](
			ttlcache.WithTTL[conceptual.SessionID, *session.Session](config.SessionTTL)),
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.sessions.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[conceptual.SessionID, *session.Session]) {
		id := item.Key()
		if sub, ok := d.subs.LoadAndDelete(id); ok {
			sub.(event.Subscription).Unsubscribe()
		}
		d.logger.Info("Session dropped", "session", id, "reason", reason)
	})
	d.initMelody()
	return d, nil
}

// SubscribeEvents delivers events from every session.
func (d *WebDaemon) SubscribeEvents(ch chan<- session.Event) event.Subscription {
	return d.feedEvents.Subscribe(ch)
}

// NewSession registers a new session and forwards its events to the daemon feed.
func (d *WebDaemon) NewSession() *session.Session {
	id := newSessionID()
	var opts []session.Option
	if d.provider != nil {
		opts = append(opts, session.WithProvider(d.provider))
	}
	if d.history != nil {
		opts = append(opts, session.WithHistory(d.history))
	}
	sess := session.New(id, d.SessionConfig, opts...)

	ch := make(chan session.Event, 16)
	sub := sess.Subscribe(ch)
	go func() {
		for {
			select {
			case ev := <-ch:
				d.feedEvents.Send(ev)
			case <-sub.Err():
				return
			}
		}
	}()
	d.subs.Store(id, sub)
	d.sessions.Set(id, sess, ttlcache.DefaultTTL)
	d.logger.Info("Session created", "session", id)
	return sess
}

// Session looks up a live session and extends its idle expiry.
func (d *WebDaemon) Session(id conceptual.SessionID) (*session.Session, bool) {
	item := d.sessions.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Start listens and serves without waiting.
// It can be stopped gracefully with a call to Stop then Wait.
func (d *WebDaemon) Start() error {
	listen, err := net.Listen(d.Config.Network, d.Config.Address)
	if err != nil {
		return err
	}
	d.server = &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go d.sessions.Start()
	go func() {
		defer close(d.done)
		d.logger.Info("Web daemon listening", "address", listen.Addr().String())
		err := d.server.Serve(listen)
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !d.interrupted.Load() {
			d.logger.Error("Web daemon failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts down the server, closes sockets and drops all sessions.
func (d *WebDaemon) Stop(ctx context.Context) error {
	d.interrupted.Store(true)
	var err error
	if d.server != nil {
		err = d.server.Shutdown(ctx)
	}
	d.cancel()
	for _, item := range d.sessions.Items() {
		item.Value().WaitRoute()
	}
	d.sessions.Stop()
	d.sessions.DeleteAll()
	_ = d.melodyInstance.Close()
	return err
}

func (d *WebDaemon) Wait() {
	<-d.done
}

// Handler is the router wrapped with permissive CORS, which answers preflight requests.
func (d *WebDaemon) Handler() http.Handler {
	return corsHandler(d.NewRouter())
}

func (d *WebDaemon) NewRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware(d.logger))

	// /ping is a simple server healthcheck endpoint
	router.Path("/ping").HandlerFunc(pingPong).Methods(http.MethodGet)
	router.Path("/status").HandlerFunc(d.statusReport).Methods(http.MethodGet)
	router.Path("/socket").HandlerFunc(d.handleSocket).Methods(http.MethodGet)

	sessionRoutes := router.PathPrefix("/sessions").Subrouter()
	sessionRoutes.Path("/{session}").HandlerFunc(d.handleSnapshot).Methods(http.MethodGet)
	sessionRoutes.Path("/{session}/segments").HandlerFunc(d.handleSegments).Methods(http.MethodGet)
	sessionRoutes.Path("/{session}/route.geojson").HandlerFunc(d.handleRouteGeoJSON).Methods(http.MethodGet)

	authenticated := sessionRoutes.NewRoute().Subrouter()
	authenticated.Use(tokenAuthenticationMiddleware(d.Config.Token))
	authenticated.Path("").HandlerFunc(d.handleNewSession).Methods(http.MethodPost)
	authenticated.Path("/{session}/file").HandlerFunc(d.handleFile).Methods(http.MethodPost)
	authenticated.Path("/{session}/fix").HandlerFunc(d.handleFix).Methods(http.MethodPost)
	authenticated.Path("/{session}/fix-error").HandlerFunc(d.handleFixError).Methods(http.MethodPost)
	authenticated.Path("/{session}/route").HandlerFunc(d.handleRoute).Methods(http.MethodPost)

	return router
}
