package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sharedbox/sharedbox/internal/account"
	"github.com/sharedbox/sharedbox/internal/calfeed"
	"github.com/sharedbox/sharedbox/internal/logging"
	"github.com/sharedbox/sharedbox/internal/mailfeed"
)

// fetchRequest is the body of POST /api/emails. Accounts may be supplied
// inline; when absent the stored accounts are used.
type fetchRequest struct {
	Accounts   []account.Account `json:"accounts,omitempty"`
	PageTokens map[string]string `json:"pageTokens,omitempty"`
}

// markReadRequest is the body of POST /api/emails/{id}/read. The path id
// is the provider message id; the account is referenced by store id or
// supplied inline.
type markReadRequest struct {
	AccountID string           `json:"accountId,omitempty"`
	Account   *account.Account `json:"account,omitempty"`
}

type testConnectionRequest struct {
	Account account.Account `json:"account"`
}

type testConnectionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type calendarRequest struct {
	AccountID string           `json:"accountId,omitempty"`
	Account   *account.Account `json:"account,omitempty"`
	TimeMin   string           `json:"timeMin,omitempty"`
	TimeMax   string           `json:"timeMax,omitempty"`
}

type calendarResponse struct {
	Events         []calfeed.Event `json:"events"`
	TokenRefreshed bool            `json:"tokenRefreshed"`
	TokenError     string          `json:"tokenError,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// RegisterRoutes attaches the API handlers to the mux.
func (s *APIServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /api/emails", s.handleFetchEmails)
	mux.HandleFunc("POST /api/emails/{id}/read", s.handleMarkRead)
	mux.HandleFunc("POST /api/test-connection", s.handleTestConnection)
	mux.HandleFunc("POST /api/calendar/events", s.handleCalendarEvents)
}

func (s *APIServer) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "sharedbox",
		"status":  healthStatusOK,
	})
}

// handleFetchEmails aggregates the next page from every account. The
// response is 200-shaped with whatever succeeded; only a configuration
// problem (no accounts anywhere) maps to 400.
func (s *APIServer) handleFetchEmails(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	accounts := req.Accounts
	if len(accounts) == 0 && s.sc.accounts != nil {
		stored, err := s.sc.accounts.List(r.Context())
		if err != nil {
			s.sc.logger.Error("listing stored accounts failed", logging.Err(err))
		} else {
			accounts = stored
		}
	}

	result, err := s.sc.engine.FetchAll(r.Context(), accounts, req.PageTokens)
	if err != nil {
		var cfgErr *mailfeed.ConfigError
		if errors.As(err, &cfgErr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: cfgErr.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *APIServer) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("id")

	var req markReadRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	acct, err := s.resolveAccount(r, req.Account, req.AccountID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := s.sc.engine.MarkRead(r.Context(), acct, messageID); err != nil {
		writeJSON(w, http.StatusOK, testConnectionResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, testConnectionResponse{Success: true})
}

// handleTestConnection probes the supplied account's mail server. The
// probe outcome is reported in the body, success and failure both 200:
// an unreachable mailbox is a result, not a request error.
func (s *APIServer) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var req testConnectionRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if s.sc.prober == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "connection probing is not configured"})
		return
	}

	if err := s.sc.prober.Probe(r.Context(), req.Account); err != nil {
		writeJSON(w, http.StatusOK, testConnectionResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, testConnectionResponse{Success: true})
}

func (s *APIServer) handleCalendarEvents(w http.ResponseWriter, r *http.Request) {
	var req calendarRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	acct, err := s.resolveAccount(r, req.Account, req.AccountID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	events, outcome, err := s.sc.calendar.FetchEvents(r.Context(), acct, req.TimeMin, req.TimeMax)
	if err != nil {
		writeJSON(w, http.StatusOK, calendarResponse{
			Events:     []calfeed.Event{},
			TokenError: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, calendarResponse{
		Events:         events,
		TokenRefreshed: outcome.Refreshed,
		TokenError:     outcome.Err,
	})
}

// resolveAccount picks the inline account when given, otherwise loads it
// from the store by id.
func (s *APIServer) resolveAccount(r *http.Request, inline *account.Account, id string) (account.Account, error) {
	if inline != nil {
		return *inline, nil
	}
	if id == "" {
		return account.Account{}, errors.New("either account or accountId is required")
	}
	if s.sc.accounts == nil {
		return account.Account{}, errors.New("no account store configured")
	}
	return s.sc.accounts.Get(r.Context(), id)
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
