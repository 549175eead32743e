package api

import (
	"net/http"

	"github.com/okian/raidstats/internal/domain/types"
)

// handlePostEvent handles POST /raids/events: 202 when queued, 200 for a
// duplicate id, 429 under backpressure.
func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var req types.RelayEvent
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	ev, err := req.SourceEvent("")
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	accepted, err := s.deps.Submit(r.Context(), ev)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	if !accepted {
		writeJSON(w, http.StatusOK, types.IngestResponse{ID: ev.ID, Status: types.IngestDuplicate})
		return
	}
	writeJSON(w, http.StatusAccepted, types.IngestResponse{ID: ev.ID, Status: types.IngestAccepted})
}
