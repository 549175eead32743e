package api

import (
	"net/http"
)

// handleSearchMembers handles GET /members/search?q=.
func (s *Server) handleSearchMembers(w http.ResponseWriter, r *http.Request) {
	const op = "api.members_search"
	res, err := s.deps.SearchMembers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
