package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tchayre/logsti/internal/models"
)

// RESTConfig configures a RESTGateway.
type RESTConfig struct {
	BaseURL        string
	Timeout        time.Duration
	ReconnectDelay time.Duration
	UserAgent      string
	Logger         zerolog.Logger
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

// RESTGateway talks to a logsti server over HTTP and its realtime
// websocket. Requests are never retried.
type RESTGateway struct {
	http           *resty.Client
	baseURL        string
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	log            zerolog.Logger
	tickets        *restResource[models.Ticket, models.TicketInput, models.TicketPatch]
	references     map[models.ReferenceKind]*restResource[models.Reference, models.ReferenceInput, models.ReferencePatch]

	mu   sync.Mutex
	subs map[*restSubscription]struct{}
}

// NewRESTGateway creates a client gateway for cfg.BaseURL.
func NewRESTGateway(cfg RESTConfig) *RESTGateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "logsti-gateway/1.0"
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	client := resty.New()
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	}
	client.SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	g := &RESTGateway{
		http:           client,
		baseURL:        base,
		reconnectDelay: cfg.ReconnectDelay,
		dialer:         cfg.Dialer,
		log:            cfg.Logger,
		references:     map[models.ReferenceKind]*restResource[models.Reference, models.ReferenceInput, models.ReferencePatch]{},
		subs:           map[*restSubscription]struct{}{},
	}
	g.tickets = &restResource[models.Ticket, models.TicketInput, models.TicketPatch]{g: g, table: models.TicketsTable}
	for _, kind := range models.ReferenceKinds {
		g.references[kind] = &restResource[models.Reference, models.ReferenceInput, models.ReferencePatch]{g: g, table: kind.Table()}
	}
	return g
}

func (g *RESTGateway) Tickets() TicketResource { return g.tickets }

// References returns the resource for kind, or nil for unknown kinds.
func (g *RESTGateway) References(kind models.ReferenceKind) ReferenceResource {
	r, ok := g.references[kind]
	if !ok {
		return nil
	}
	return r
}

// HealthCheck calls GET /api/health.
func (g *RESTGateway) HealthCheck(ctx context.Context) HealthStatus {
	var status HealthStatus
	resp, err := g.http.R().SetContext(ctx).SetResult(&status).Get("/api/health")
	if err != nil {
		return HealthStatus{Status: StatusError, Message: err.Error(), CheckedAt: time.Now().UTC()}
	}
	if !resp.IsSuccess() {
		// the server reports its own failure in the same shape
		_ = json.Unmarshal(resp.Body(), &status)
		if status.Message == "" {
			status.Message = resp.Status()
		}
		status.Status = StatusError
	}
	status.OK = resp.IsSuccess() && status.Status == StatusOK
	if status.CheckedAt.IsZero() {
		status.CheckedAt = time.Now().UTC()
	}
	return status
}

// Close releases every open subscription.
func (g *RESTGateway) Close() error {
	g.mu.Lock()
	subs := make([]*restSubscription, 0, len(g.subs))
	for s := range g.subs {
		subs = append(subs, s)
	}
	g.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

// toRemoteError maps a transport error or non-2xx response.
func toRemoteError(resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return NewRemoteError(KindNetwork, "request canceled", err)
		}
		return NewRemoteError(KindNetwork, err.Error(), err)
	}
	if resp.IsSuccess() {
		return nil
	}
	msg := resp.Status()
	var body errorBody
	if json.Unmarshal(resp.Body(), &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return NewRemoteError(kindForStatus(resp.StatusCode()), msg, nil)
}

func kindForStatus(code int) Kind {
	switch code {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindNetwork
	}
	return KindUnknown
}

// StatusForKind is the HTTP status a server uses for kind.
func StatusForKind(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindNetwork:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type restResource[T any, C any, P any] struct {
	g     *RESTGateway
	table string
}

func (r *restResource[T, C, P]) path(id string) string {
	if id == "" {
		return "/api/" + r.table
	}
	return "/api/" + r.table + "/" + url.PathEscape(id)
}

func (r *restResource[T, C, P]) List(ctx context.Context) ([]T, error) {
	items := []T{}
	resp, err := r.g.http.R().SetContext(ctx).SetResult(&items).Get(r.path(""))
	if err := toRemoteError(resp, err); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *restResource[T, C, P]) Create(ctx context.Context, in C) (T, error) {
	var out T
	resp, err := r.g.http.R().SetContext(ctx).SetBody(in).SetResult(&out).Post(r.path(""))
	if err := toRemoteError(resp, err); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Update sends a PATCH; nil patch fields are omitted from the body.
func (r *restResource[T, C, P]) Update(ctx context.Context, id string, patch P) (T, error) {
	var out T
	resp, err := r.g.http.R().SetContext(ctx).SetBody(patch).SetResult(&out).Patch(r.path(id))
	if err := toRemoteError(resp, err); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (r *restResource[T, C, P]) Delete(ctx context.Context, id string) error {
	resp, err := r.g.http.R().SetContext(ctx).Delete(r.path(id))
	return toRemoteError(resp, err)
}

func (r *restResource[T, C, P]) Subscribe(fn func([]T)) (Subscription, error) {
	wsURL, err := r.g.realtimeURL(r.table)
	if err != nil {
		return nil, NewRemoteError(KindUnknown, err.Error(), err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &restSubscription{g: r.g, cancel: cancel, trigger: make(chan struct{}, 1)}
	r.g.mu.Lock()
	r.g.subs[s] = struct{}{}
	r.g.mu.Unlock()

	go s.listen(ctx, wsURL, r.table)
	go s.reload(ctx, func(ctx context.Context) error {
		items, err := r.List(ctx)
		if err != nil {
			return err
		}
		if ctx.Err() == nil {
			fn(items)
		}
		return nil
	})
	return s, nil
}

func (g *RESTGateway) realtimeURL(table string) (string, error) {
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/realtime"
	u.RawQuery = url.Values{"table": {table}}.Encode()
	return u.String(), nil
}

// restSubscription keeps a websocket open, reconnecting after failures,
// and reloads once per burst of events.
type restSubscription struct {
	g       *RESTGateway
	cancel  context.CancelFunc
	trigger chan struct{}
	once    sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *restSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
		s.g.mu.Lock()
		delete(s.g.subs, s)
		s.g.mu.Unlock()
	})
}

func (s *restSubscription) poke() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *restSubscription) listen(ctx context.Context, wsURL, table string) {
	for ctx.Err() == nil {
		conn, _, err := s.g.dialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			s.g.log.Debug().Err(err).Str("table", table).Msg("realtime dial failed")
			if !sleepCtx(ctx, s.g.reconnectDelay) {
				return
			}
			continue
		}
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		if ctx.Err() != nil {
			conn.Close()
			return
		}
		// changes made before this connection existed were never announced
		s.poke()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
			s.poke()
		}
		conn.Close()
		if !sleepCtx(ctx, s.g.reconnectDelay) {
			return
		}
	}
}

func (s *restSubscription) reload(ctx context.Context, fn func(context.Context) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				s.g.log.Warn().Err(err).Msg("reload after change failed")
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
