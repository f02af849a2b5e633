package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"statsvault/internal/api"
	"statsvault/internal/store"
	"statsvault/internal/vault"
)

const testAdminToken = "admin-token-for-tests"

type testEnv struct {
	srv     *Server
	store   *store.Store
	handler http.Handler
}

func newTestEnv(t *testing.T, adminHash string) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	reg := prometheus.NewRegistry()
	coord, err := vault.NewCoordinator(st, st.Blobs(0), vault.Options{Registerer: reg, DefaultBudget: 3})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	srv := New("127.0.0.1:0", coord, Options{
		Info:           st,
		DBPath:         st.Path(),
		BlobBackend:    "sqlite",
		AdminTokenHash: adminHash,
		Gatherer:       reg,
	})
	return &testEnv{srv: srv, store: st, handler: srv.Handler()}
}

func testAdminHash(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminToken), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash admin token: %v", err)
	}
	return string(hash)
}

func (e *testEnv) seed(t *testing.T, id string, budget int64) {
	t.Helper()
	if _, err := e.store.InsertEntry(context.Background(), id, budget, time.Now().UTC()); err != nil {
		t.Fatalf("insert entry: %v", err)
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func adminHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testAdminToken}
}

func decodeErrorResponse(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, w.Body.String())
	}
	return resp
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string, errCode int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d (body %q)", status, w.Code, w.Body.String())
	}
	resp := decodeErrorResponse(t, w)
	if resp.Code != code {
		t.Fatalf("expected code %q, got %q", code, resp.Code)
	}
	if resp.ErrorCode != errCode {
		t.Fatalf("expected error_code %d, got %d", errCode, resp.ErrorCode)
	}
}
