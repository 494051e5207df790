package statssvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mkrupp/practice-tracker/internal/domain"
	context_ "github.com/mkrupp/practice-tracker/internal/infra/context"
	"github.com/mkrupp/practice-tracker/internal/infra/logging"
	http_ "github.com/mkrupp/practice-tracker/internal/infra/transport/http"
)

// ErrNoUser is returned when a handler runs without an authenticated user in the context.
var ErrNoUser = errors.New("no user in context")

// HTTPTransport serves GET /stats?range=&dayKey=&days=.
type HTTPTransport struct {
	statsSvc *StatsService
	log      logging.Logger
	mux      *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates the transport; /stats requires a session resolved through auth.
func NewHTTPTransport(statsSvc *StatsService, auth http_.Authenticator, cookieName string) *HTTPTransport {
	ht := &HTTPTransport{
		statsSvc: statsSvc,
		log:      logging.GetLogger("svc.statssvc.http_transport"),
		mux:      http.NewServeMux(),
	}

	http_.HandleMethod(ht.mux, http.MethodGet, "/stats", http_.RequireUser(auth, cookieName, ht.log, ht.HandleStats))

	return ht
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

// parseQuery validates the query string; the day key is checked by the service.
// A parameter that is present but empty is invalid, not defaulted.
func (ht *HTTPTransport) parseQuery(r *http.Request) (Query, http_.FieldErrors) {
	var q Query

	fe := http_.FieldErrors{}
	values := r.URL.Query()
	cfg := ht.statsSvc.Config

	if values.Has("range") {
		rng, err := ParseRange(values.Get("range"))
		if err != nil {
			fe.Add("range", "Expected one of: today, week, month, all")
		}

		q.Range = rng
	}

	if values.Has("days") {
		days, err := strconv.Atoi(values.Get("days"))

		switch {
		case err != nil:
			fe.Add("days", "Expected integer")
		case days < cfg.MinDays:
			fe.Add("days", fmt.Sprintf("Must be at least %d", cfg.MinDays))
		case days > cfg.MaxDays:
			fe.Add("days", fmt.Sprintf("Must be at most %d", cfg.MaxDays))
		default:
			q.Days = days
		}
	}

	q.AsOfDayKey = values.Get("dayKey")

	return q, fe
}

// HandleStats returns statistics for the authenticated user.
func (ht *HTTPTransport) HandleStats(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleStats(w, r)
}

func (ht *HTTPTransport) handleStats(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "stats failed", "error", err)
		}
	}(r.Context())

	user, ok := context_.UserFromContext(r.Context())
	if !ok {
		http_.Unauthorized(w)

		return ErrNoUser
	}

	q, fe := ht.parseQuery(r)
	if !fe.Empty() {
		http_.ValidationError(w, "Invalid query", fe)

		return nil
	} else if r.URL.Query().Has("dayKey") && q.AsOfDayKey == "" {
		http_.InvalidDayKey(w, "")

		return nil
	}

	q.UserID = user.ID

	stats, err := ht.statsSvc.GetStats(r.Context(), q)
	if errors.Is(err, domain.ErrInvalidDayKey) {
		http_.InvalidDayKey(w, q.AsOfDayKey)

		return nil
	} else if err != nil {
		http_.InternalError(w)

		return fmt.Errorf("get stats: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, stats)
}
