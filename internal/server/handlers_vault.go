package server

import (
	"fmt"
	"net/http"
	"strings"

	"statsvault/internal/api"
	"statsvault/internal/provision"
)

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	var req api.PushRequest
	if !s.decodeJSONReq(w, r, s.pushBodyLimit(), &req) {
		return
	}
	if req.Payload == nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("payload is required"), ErrCodeMissingRequired))
		return
	}

	if err := s.vault.Push(r.Context(), id, req.Payload); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	result, err := s.vault.Fetch(r.Context(), id, r.PathValue("token"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	s.writeJSON(w, http.StatusOK, api.FetchResponse{
		ID:        result.ID,
		Payload:   result.Payload,
		Remaining: result.Remaining,
		Token:     result.Token,
	})
}

func (s *Server) pushBodyLimit() int64 {
	return (s.maxPayload+2)/3*4 + pushEnvelopeOverhead
}

func (s *Server) pathIDOrBadRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if err := provision.ValidateID(id); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidID))
		return "", false
	}
	return id, true
}
