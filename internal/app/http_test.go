package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"assettrack/api/internal/authpw"
	"assettrack/api/internal/patrimony"
	"assettrack/api/internal/store"

	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T, fs *fakeStore, admins map[string]bool) (*httptest.Server, *Service) {
	t.Helper()
	svc := New(testConfig(), fs, newFakeSessions(), staticRoles{admins: admins}, authpw.NewService(newMockUserStore()), nil, nil, zerolog.Nop())
	server := httptest.NewServer(NewHTTPServer(svc, nil, "*", zerolog.Nop()).Handler())
	t.Cleanup(server.Close)
	return server, svc
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func sessionToken(t *testing.T, svc *Service, userID string) string {
	t.Helper()
	session, err := svc.issueSession(context.Background(), store.User{ID: userID, DisplayName: "Ana", Email: userID + "@example.com"})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return session.Token
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t, &fakeStore{}, nil)

	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeJSON(t, resp)
	if payload["ok"] != true {
		t.Fatalf("expected ok=true, got %v", payload)
	}
}

func TestPatrimoniesRequireSession(t *testing.T) {
	server, _ := newTestServer(t, &fakeStore{}, nil)

	resp, err := http.Get(server.URL + "/api/patrimonies")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSignUpThenCreateRecord(t *testing.T) {
	server, _ := newTestServer(t, &fakeStore{}, nil)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/auth/signup", "", map[string]any{
		"email":    "ana@example.com",
		"password": "s3creta",
		"name":     "Ana",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	payload := decodeJSON(t, resp)
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatal("expected a token in the signup response")
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/api/patrimonies", token, map[string]any{
		"number":       "001",
		"model":        "Notebook Dell",
		"registeredBy": "Ana",
		"observations": "Tela trincada",
		"status":       "Em manutenção",
		"location":     "Quartinho",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	created := decodeJSON(t, resp)
	if created["number"] != "001" {
		t.Fatalf("unexpected create payload %v", created)
	}
}

func TestCreateRejectsDuplicateNumberOverHTTP(t *testing.T) {
	fs := &fakeStore{
		listPatrimoniesFn: func(context.Context) ([]patrimony.Patrimony, error) {
			return []patrimony.Patrimony{{ID: "a", Number: "001"}}, nil
		},
	}
	server, svc := newTestServer(t, fs, nil)
	token := sessionToken(t, svc, "u1")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/patrimonies", token, map[string]any{
		"number":       "001",
		"model":        "Notebook Dell",
		"registeredBy": "Ana",
		"observations": "Tela trincada",
		"status":       "Em manutenção",
		"location":     "Quartinho",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	payload := decodeJSON(t, resp)
	if payload["code"] != "DUPLICATE_NUMBER" {
		t.Fatalf("expected DUPLICATE_NUMBER, got %v", payload)
	}
}

func TestDeleteForeignRecordForbidden(t *testing.T) {
	fs := &fakeStore{
		patrimonyOwnersFn: func(context.Context, []string) (map[string]string, error) {
			return map[string]string{"rec-1": "someone-else"}, nil
		},
	}
	server, svc := newTestServer(t, fs, nil)
	token := sessionToken(t, svc, "u1")

	resp := doJSON(t, http.MethodDelete, server.URL+"/api/patrimonies/rec-1", token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	payload := decodeJSON(t, resp)
	if payload["code"] != "PERMISSION_DENIED" {
		t.Fatalf("expected PERMISSION_DENIED, got %v", payload)
	}
}

func TestValidationErrorsSurfaceFieldDetails(t *testing.T) {
	server, svc := newTestServer(t, &fakeStore{}, nil)
	token := sessionToken(t, svc, "u1")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/patrimonies", token, map[string]any{
		"number":       "001",
		"model":        "Notebook Dell",
		"registeredBy": "Ana",
		"observations": "Tela trincada",
		"status":       "Em manutenção",
		"location":     "Outro",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	payload := decodeJSON(t, resp)
	if payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", payload)
	}
	details, _ := payload["details"].(map[string]any)
	if details["field"] != "customLocation" {
		t.Fatalf("expected customLocation detail, got %v", payload)
	}
}

func TestSessionInfoReflectsToken(t *testing.T) {
	server, svc := newTestServer(t, &fakeStore{}, map[string]bool{"u1": true})
	token := sessionToken(t, svc, "u1")

	resp := doJSON(t, http.MethodGet, server.URL+"/api/session", token, nil)
	payload := decodeJSON(t, resp)
	if payload["authenticated"] != true {
		t.Fatalf("expected authenticated session, got %v", payload)
	}
	if payload["isAdmin"] != true {
		t.Fatalf("expected admin session, got %v", payload)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/session", "", nil)
	payload = decodeJSON(t, resp)
	if payload["authenticated"] != false {
		t.Fatalf("expected anonymous session, got %v", payload)
	}
}

func TestTipsEndpointIsPublic(t *testing.T) {
	server, _ := newTestServer(t, &fakeStore{}, nil)

	resp, err := http.Get(server.URL + "/api/problems/"+url.PathEscape("Lentidão")+"/tips")
	if err != nil {
		t.Fatalf("get tips: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeJSON(t, resp)
	tips, _ := payload["tips"].([]any)
	if len(tips) == 0 {
		t.Fatal("expected tips for a known problem")
	}
}

func TestRefreshEndpointRotates(t *testing.T) {
	server, _ := newTestServer(t, &fakeStore{}, nil)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/auth/signup", "", map[string]any{
		"email":    "ana@example.com",
		"password": "s3creta",
		"name":     "Ana",
	})
	payload := decodeJSON(t, resp)
	refresh, _ := payload["refreshToken"].(string)
	if refresh == "" {
		t.Fatal("expected a refresh token")
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/api/session/refresh", "", map[string]any{"refreshToken": refresh})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	rotated := decodeJSON(t, resp)
	if rotated["refreshToken"] == refresh {
		t.Fatal("expected a rotated refresh token")
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/api/session/refresh", "", map[string]any{"refreshToken": refresh})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected replayed refresh to fail, got %d", resp.StatusCode)
	}
}
