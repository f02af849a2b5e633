package server

import (
	"net/http"

	"statsvault/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	resp := api.InfoResponse{
		DBPath:          s.dbPath,
		PushPolicy:      string(s.vault.PushPolicy()),
		BlobBackend:     s.blobBackend,
		MaxPayloadBytes: s.maxPayload,
		StartedAt:       s.startedAt,
	}

	if s.info != nil {
		info, err := s.info.StoreInfo(r.Context())
		if err != nil {
			s.writeErrorReq(w, r, http.StatusInternalServerError, internalErrorCode(err, ErrCodeStoreFailure))
			return
		}
		resp.SchemaVersion = info.SchemaVersion
		resp.TotalEntries = info.TotalEntries
		resp.ExhaustedEntries = info.ExhaustedEntries
		resp.StoredPayloads = info.StoredPayloads
	}

	s.writeJSON(w, http.StatusOK, resp)
}
