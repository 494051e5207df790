package trackersvc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/mkrupp/practice-tracker/internal/domain"
	context_ "github.com/mkrupp/practice-tracker/internal/infra/context"
	"github.com/mkrupp/practice-tracker/internal/infra/logging"
	http_ "github.com/mkrupp/practice-tracker/internal/infra/transport/http"
)

const (
	minDelta = 1
	maxDelta = 50
)

// ErrNoUser is returned when a handler runs without an authenticated user in the context.
var ErrNoUser = errors.New("no user in context")

// HTTPTransport serves the practice and completion endpoints:
// - GET /practices: the catalog
// - GET /completions?dayKey=: the user's rows for a day
// - POST /done: record a completion
// - POST /undo: revert a completion.
type HTTPTransport struct {
	trackerSvc *TrackerService
	log        logging.Logger
	mux        *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates the transport. Every route except /practices requires a session
// resolved through auth.
func NewHTTPTransport(trackerSvc *TrackerService, auth http_.Authenticator, cookieName string) *HTTPTransport {
	ht := &HTTPTransport{
		trackerSvc: trackerSvc,
		log:        logging.GetLogger("svc.trackersvc.http_transport"),
		mux:        http.NewServeMux(),
	}

	http_.HandleMethod(ht.mux, http.MethodGet, "/practices", http.HandlerFunc(ht.HandlePractices))
	http_.HandleMethod(ht.mux, http.MethodGet, "/completions",
		http_.RequireUser(auth, cookieName, ht.log, ht.HandleCompletions))
	http_.HandleMethod(ht.mux, http.MethodPost, "/done", http_.RequireUser(auth, cookieName, ht.log, ht.HandleDone))
	http_.HandleMethod(ht.mux, http.MethodPost, "/undo", http_.RequireUser(auth, cookieName, ht.log, ht.HandleUndo))

	return ht
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

type completionRequest struct {
	PracticeID *string  `json:"practiceId"`
	Delta      *float64 `json:"delta"`
}

// validate returns the practice id and delta, defaulting delta to 1.
func (req completionRequest) validate() (string, int, http_.FieldErrors) {
	fe := http_.FieldErrors{}

	if req.PracticeID == nil {
		fe.Add("practiceId", "Required")
	}

	delta := DefaultDelta

	if req.Delta != nil {
		d := *req.Delta

		switch {
		case d != math.Trunc(d):
			fe.Add("delta", "Expected integer")
		case d < minDelta:
			fe.Add("delta", fmt.Sprintf("Must be at least %d", minDelta))
		case d > maxDelta:
			fe.Add("delta", fmt.Sprintf("Must be at most %d", maxDelta))
		default:
			delta = int(d)
		}
	}

	if !fe.Empty() {
		return "", 0, fe
	}

	return *req.PracticeID, delta, nil
}

func (ht *HTTPTransport) readCompletionRequest(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	var req completionRequest

	if err := http_.ReadJSON(w, r, &req); err != nil {
		http_.ValidationError(w, "Invalid input", nil)

		return "", 0, false
	}

	practiceID, delta, fe := req.validate()
	if fe != nil {
		http_.ValidationError(w, "Invalid input", fe)

		return "", 0, false
	}

	return practiceID, delta, true
}

func unknownPractice(w http.ResponseWriter) {
	fe := http_.FieldErrors{}
	fe.Add("practiceId", "Unknown practiceId")
	http_.ValidationError(w, "Invalid input", fe)
}

// PracticesResponse is the body of GET /practices.
type PracticesResponse struct {
	Practices []domain.Practice `json:"practices"`
}

// HandlePractices returns the catalog.
func (ht *HTTPTransport) HandlePractices(w http.ResponseWriter, r *http.Request) {
	if err := http_.WriteJSON(w, http.StatusOK, PracticesResponse{Practices: ht.trackerSvc.Practices()}); err != nil {
		ht.log.ErrorContext(r.Context(), "write practices failed", "error", err)
	}
}

// CompletionsResponse is the body of GET /completions.
type CompletionsResponse struct {
	DayKey       string                               `json:"dayKey"`
	Completions  []domain.CompletionResponse          `json:"completions"`
	ByPracticeID map[string]domain.CompletionResponse `json:"byPracticeId"`
}

// HandleCompletions lists the user's completions for ?dayKey= (today by default).
func (ht *HTTPTransport) HandleCompletions(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleCompletions(w, r)
}

func (ht *HTTPTransport) handleCompletions(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "list completions failed", "error", err)
		}
	}(r.Context())

	user, ok := context_.UserFromContext(r.Context())
	if !ok {
		http_.Unauthorized(w)

		return ErrNoUser
	}

	dayKey := r.URL.Query().Get("dayKey")

	day, err := ht.trackerSvc.Completions(r.Context(), user.ID, dayKey)
	if errors.Is(err, domain.ErrInvalidDayKey) {
		http_.InvalidDayKey(w, dayKey)

		return nil
	} else if err != nil {
		http_.InternalError(w)

		return fmt.Errorf("completions: %w", err)
	}

	resp := CompletionsResponse{
		DayKey:       day.DayKey,
		Completions:  make([]domain.CompletionResponse, 0, len(day.Completions)),
		ByPracticeID: make(map[string]domain.CompletionResponse, len(day.Completions)),
	}

	for _, c := range day.Completions {
		cr := c.Response()
		resp.Completions = append(resp.Completions, cr)
		resp.ByPracticeID[c.PracticeID] = cr
	}

	return http_.WriteJSON(w, http.StatusOK, resp)
}

// DoneResponse is the body of a successful POST /done.
type DoneResponse struct {
	Completion domain.CompletionResponse `json:"completion"`
	DayKey     string                    `json:"dayKey"`
	PracticeID string                    `json:"practiceId"`
	MaxPerDay  int                       `json:"maxPerDay"`
}

// MaxPerDayDetails are the details of a MAX_PER_DAY_REACHED error.
type MaxPerDayDetails struct {
	PracticeID string `json:"practiceId"`
	DayKey     string `json:"dayKey"`
	MaxPerDay  int    `json:"maxPerDay"`
	Count      int    `json:"count"`
}

// HandleDone records a completion. Body: {"practiceId": "...", "delta": 1}.
func (ht *HTTPTransport) HandleDone(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDone(w, r)
}

func (ht *HTTPTransport) handleDone(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "done failed", "error", err)
		}
	}(r.Context())

	user, ok := context_.UserFromContext(r.Context())
	if !ok {
		http_.Unauthorized(w)

		return ErrNoUser
	}

	practiceID, delta, ok := ht.readCompletionRequest(w, r)
	if !ok {
		return nil
	}

	res, err := ht.trackerSvc.Done(r.Context(), user.ID, practiceID, delta)
	if err != nil {
		http_.InternalError(w)

		return fmt.Errorf("done: %w", err)
	}

	switch res.Outcome {
	case DoneUnknownPractice:
		unknownPractice(w)

		return nil
	case DoneMaxReached:
		http_.WriteError(w, http.StatusConflict, http_.CodeMaxPerDayReached, "Max per day reached", MaxPerDayDetails{
			PracticeID: practiceID,
			DayKey:     res.DayKey,
			MaxPerDay:  res.MaxPerDay,
			Count:      res.Count,
		})

		return nil
	case DoneApplied:
	}

	return http_.WriteJSON(w, http.StatusOK, DoneResponse{
		Completion: res.Completion.Response(),
		DayKey:     res.DayKey,
		PracticeID: practiceID,
		MaxPerDay:  res.MaxPerDay,
	})
}

// UndoResultBody describes what the undo did to the row.
type UndoResultBody struct {
	Kind       UndoOutcome                `json:"kind"`
	Completion *domain.CompletionResponse `json:"completion,omitempty"`
}

// UndoResponse is the body of a successful POST /undo.
type UndoResponse struct {
	OK         bool           `json:"ok"`
	Result     UndoResultBody `json:"result"`
	DayKey     string         `json:"dayKey"`
	PracticeID string         `json:"practiceId"`
}

// HandleUndo reverts completions. Body: {"practiceId": "...", "delta": 1}.
func (ht *HTTPTransport) HandleUndo(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUndo(w, r)
}

func (ht *HTTPTransport) handleUndo(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "undo failed", "error", err)
		}
	}(r.Context())

	user, ok := context_.UserFromContext(r.Context())
	if !ok {
		http_.Unauthorized(w)

		return ErrNoUser
	}

	practiceID, delta, ok := ht.readCompletionRequest(w, r)
	if !ok {
		return nil
	}

	res, err := ht.trackerSvc.Undo(r.Context(), user.ID, practiceID, delta)
	if err != nil {
		http_.InternalError(w)

		return fmt.Errorf("undo: %w", err)
	}

	if res.UnknownPractice {
		unknownPractice(w)

		return nil
	}

	body := UndoResultBody{Kind: res.Outcome}
	if res.Completion != nil {
		cr := res.Completion.Response()
		body.Completion = &cr
	}

	return http_.WriteJSON(w, http.StatusOK, UndoResponse{
		OK:         true,
		Result:     body,
		DayKey:     res.DayKey,
		PracticeID: practiceID,
	})
}
