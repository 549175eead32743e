package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/raidstats/internal/domain/aggregate"
	"github.com/okian/raidstats/internal/domain/types"
)

// handleAnalyze handles POST /raids/analyze.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	const op = "api.analyze"
	var req types.AnalyzeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	res, err := s.deps.Analyze(r.Context(), req)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleIgnore handles POST /raids/ignore. Repeats answer 204 as well.
func (s *Server) handleIgnore(w http.ResponseWriter, r *http.Request) {
	const op = "api.ignore"
	var req types.IgnoreRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	if _, err := s.deps.Ignore(r.Context(), req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAccept handles POST /raids/accept.
func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	const op = "api.accept"
	var req types.AcceptRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	n, err := s.deps.Accept(r.Context(), req)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.AcceptResponse{Accepted: n})
}

// handleMonth handles GET /raids/month/{month}?discord=&twitch=&manual=.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	const op = "api.month"
	filters, err := parseFilters(r)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	view, err := s.deps.MonthlyView(r.Context(), r.PathValue("month"), filters)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// parseFilters reads the source toggles; absent toggles are on.
func parseFilters(r *http.Request) (aggregate.Filters, error) {
	f := aggregate.AllSources()
	q := r.URL.Query()
	for name, dst := range map[string]*bool{"discord": &f.Discord, "twitch": &f.Twitch, "manual": &f.Manual} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, errors.Join(ErrBadRequest, fmt.Errorf("filter %s: %w", name, err))
		}
		*dst = v
	}
	return f, nil
}
