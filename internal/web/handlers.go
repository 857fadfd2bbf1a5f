package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/empenhos/internal/analytics"
	"github.com/JonMunkholm/empenhos/internal/logging"
)

const (
	dateLayout   = "2006-01-02"
	defaultLimit = 10
	maxLimit     = 100
)

// CommitmentsResponse is the body of GET /api/commitments.
type CommitmentsResponse struct {
	From        string                 `json:"from"`
	To          string                 `json:"to"`
	Count       int                    `json:"count"`
	Commitments []analytics.Commitment `json:"commitments"`
}

// handleCommitments lists every commitment issued in the range.
func (s *Server) handleCommitments(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	cs, err := s.repo.Commitments(r.Context(), from, to)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if cs == nil {
		cs = []analytics.Commitment{}
	}

	writeJSON(w, r, CommitmentsResponse{
		From:        from.Format(dateLayout),
		To:          to.Format(dateLayout),
		Count:       len(cs),
		Commitments: cs,
	})
}

// handleSummary returns the dashboard aggregates for the range.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	payees, err := parseLimit(r, "payees")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	agencies, err := parseLimit(r, "agencies")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	cs, err := s.repo.Commitments(r.Context(), from, to)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Debug("summary computed",
		"from", from.Format(dateLayout),
		"to", to.Format(dateLayout),
		"commitments", len(cs),
	)
	writeJSON(w, r, analytics.Summarize(cs, from, to, payees, agencies))
}

// handleHealth reports whether the database answers a ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		logging.FromContext(ctx).Warn("health check failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	writeJSON(w, r, map[string]string{"status": "ok"})
}

// parseRange reads the required from and to query parameters.
func parseRange(r *http.Request) (from, to time.Time, err error) {
	if from, err = parseDate(r, "from"); err != nil {
		return
	}
	to, err = parseDate(r, "to")
	return
}

func parseDate(r *http.Request, name string) (time.Time, error) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return time.Time{}, &paramError{Name: name, Reason: "required"}
	}
	t, err := time.Parse(dateLayout, val)
	if err != nil {
		return time.Time{}, &paramError{Name: name, Value: val, Reason: "not a YYYY-MM-DD date"}
	}
	return t, nil
}

// parseLimit parses a positive integer query parameter, capped at maxLimit.
func parseLimit(r *http.Request, name string) (int, error) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 1 {
		return 0, &paramError{Name: name, Value: val, Reason: "must be a positive integer"}
	}
	return min(n, maxLimit), nil
}
