package server

import (
	"net/http"

	"statsvault/internal/api"
	"statsvault/internal/vault"
)

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeAdmin(w, r) {
		return
	}

	cmd, err := vault.ParseCommand(r.PathValue("command"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	result, err := s.vault.Admin(r.Context(), cmd, r.PathValue("arg"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.log().Info("admin request", "command", cmd.String(), "arg", r.PathValue("arg"), "remote_addr", r.RemoteAddr)
	s.writeJSON(w, http.StatusOK, api.AdminResponse{
		Command: result.Command.String(),
		Entries: result.Entries,
		Revoked: result.Revoked,
	})
}
