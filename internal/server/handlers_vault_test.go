package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"statsvault/internal/api"
)

func pushBody(payload string) string {
	return fmt.Sprintf(`{"payload":%q}`, base64.StdEncoding.EncodeToString([]byte(payload)))
}

func TestPushFetchExhaust(t *testing.T) {
	env := newTestEnv(t, "")
	env.seed(t, "hello-id", 2)

	w := env.do(t, http.MethodPost, "/api/post/hello-id", pushBody("hello"), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d (%s)", w.Code, w.Body.String())
	}

	for i, wantRemaining := range []int64{1, 0} {
		token := fmt.Sprintf("t%d", i+1)
		w = env.do(t, http.MethodGet, "/api/get/hello-id/"+token, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("fetch %d: expected 200, got %d (%s)", i, w.Code, w.Body.String())
		}
		var resp api.FetchResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode fetch: %v", err)
		}
		if string(resp.Payload) != "hello" || resp.Remaining != wantRemaining || resp.Token != token || resp.ID != "hello-id" {
			t.Fatalf("fetch %d: unexpected response %+v", i, resp)
		}
		if got := w.Header().Get("Cache-Control"); got != "no-store" {
			t.Fatalf("expected Cache-Control no-store, got %q", got)
		}
	}

	w = env.do(t, http.MethodGet, "/api/get/hello-id/t3", "", nil)
	expectError(t, w, http.StatusGone, "exhausted", ErrCodeExhausted)
}

func TestFetchErrors(t *testing.T) {
	env := newTestEnv(t, "")
	env.seed(t, "empty-id", 1)

	w := env.do(t, http.MethodGet, "/api/get/unknown-id/tok", "", nil)
	expectError(t, w, http.StatusNotFound, "not_found", ErrCodeEntryNotFound)

	w = env.do(t, http.MethodGet, "/api/get/empty-id/tok", "", nil)
	expectError(t, w, http.StatusNotFound, "not_found", ErrCodePayloadNotFound)

	w = env.do(t, http.MethodGet, "/api/get/bad%20id/tok", "", nil)
	expectError(t, w, http.StatusBadRequest, "invalid_argument", ErrCodeInvalidID)

	w = env.do(t, http.MethodGet, "/api/get/empty-id/%20", "", nil)
	expectError(t, w, http.StatusBadRequest, "invalid_argument", ErrCodeInvalidToken)
}

func TestPushErrors(t *testing.T) {
	env := newTestEnv(t, "")
	env.seed(t, "push-id", 1)

	w := env.do(t, http.MethodPost, "/api/post/unknown-id", pushBody("x"), nil)
	expectError(t, w, http.StatusNotFound, "not_found", ErrCodeEntryNotFound)

	w = env.do(t, http.MethodPost, "/api/post/push-id", `{"payload":`, nil)
	expectError(t, w, http.StatusBadRequest, "invalid_argument", ErrCodeInvalidJSON)

	w = env.do(t, http.MethodPost, "/api/post/push-id", `{"payload":"not base64!"}`, nil)
	expectError(t, w, http.StatusBadRequest, "invalid_argument", ErrCodeInvalidJSON)

	w = env.do(t, http.MethodPost, "/api/post/push-id", `{}`, nil)
	expectError(t, w, http.StatusBadRequest, "invalid_argument", ErrCodeMissingRequired)

	// Fits the body limit but exceeds the payload cap.
	w = env.do(t, http.MethodPost, "/api/post/push-id", pushBody(strings.Repeat("x", 16*1024+1)), nil)
	expectError(t, w, http.StatusRequestEntityTooLarge, "too_large", ErrCodeRequestTooLarge)

	// Exceeds the body limit itself.
	w = env.do(t, http.MethodPost, "/api/post/push-id", pushBody(strings.Repeat("x", 64*1024)), nil)
	expectError(t, w, http.StatusRequestEntityTooLarge, "too_large", ErrCodeRequestTooLarge)
}

func TestFetchTokenNotLogged(t *testing.T) {
	env := newTestEnv(t, "")
	env.seed(t, "quiet-id", 1)
	w := env.do(t, http.MethodGet, "/api/get/quiet-id/secret-token", "", nil)
	if strings.Contains(w.Body.String(), "secret-token") {
		t.Fatalf("error body leaked token: %s", w.Body.String())
	}
}
