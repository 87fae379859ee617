package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"festivo/api/internal/doc"
	"festivo/api/internal/store"
)

func testServer(fs *fakeStore) *httptest.Server {
	service := newTestService(fs)
	return httptest.NewServer(NewHTTPServer(service, "*").Handler())
}

func loginToken(t *testing.T, server *httptest.Server, name string) string {
	t.Helper()
	resp, err := http.Post(server.URL+"/api/session/login", "application/json", strings.NewReader(`{"name":"`+name+`"}`))
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if body.Token == "" {
		t.Fatalf("login returned no token")
	}
	return body.Token
}

func authedRequest(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	server := testServer(&fakeStore{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestInvitationsRequireAuth(t *testing.T) {
	server := testServer(&fakeStore{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/invitations")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/invitations", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for a garbage token, got %d", resp2.StatusCode)
	}
}

func TestCreateAndPatchOverHTTP(t *testing.T) {
	var ownerID string
	version := int64(0)
	fs := &fakeStore{
		createDocumentFn: func(_ context.Context, item store.Document, _ doc.Content) error {
			ownerID = item.OwnerID
			return nil
		},
		getDocumentFn: func(context.Context, string) (store.Document, doc.Content, error) {
			row, content := ownedDocument(version)
			row.OwnerID = ownerID
			return row, content, nil
		},
		commitPatchFn: func(_ context.Context, _ string, _ int64, _ doc.Content, snap store.Snapshot, _ *store.AIEditLog) (store.Snapshot, error) {
			version++
			snap.Number = version
			return snap, nil
		},
	}
	server := testServer(fs)
	defer server.Close()
	token := loginToken(t, server, "Nora")

	resp := authedRequest(t, http.MethodPost, server.URL+"/api/invitations", token, `{"themePresetId":"classic"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}

	resp = authedRequest(t, http.MethodPost, server.URL+"/api/invitations/inv_1/patches", token,
		`{"operations":[{"op":"setStyleOverride","token":"accentColor","tokenValue":"#ff0000"}]}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d", resp.StatusCode)
	}
	var payload struct {
		Version int64 `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode patch response: %v", err)
	}
	if payload.Version != 1 {
		t.Errorf("expected version 1, got %d", payload.Version)
	}

	// Invalid operation payloads are rejected before validation.
	resp = authedRequest(t, http.MethodPost, server.URL+"/api/invitations/inv_1/patches", token,
		`{"operations":[{"op":"teleportBlock"}]}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown op: expected 400, got %d", resp.StatusCode)
	}

	// A structurally valid op against a missing block fails validation.
	resp = authedRequest(t, http.MethodPost, server.URL+"/api/invitations/inv_1/patches", token,
		`{"operations":[{"op":"removeBlock","blockId":"blk_gone"}]}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("unknown block: expected 422, got %d", resp.StatusCode)
	}
}

func TestThemesEndpointIsPublic(t *testing.T) {
	server := testServer(&fakeStore{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/themes")
	if err != nil {
		t.Fatalf("themes request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Presets  []map[string]any `json:"presets"`
		Sections []map[string]any `json:"sections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode themes: %v", err)
	}
	if len(body.Presets) != 3 {
		t.Errorf("expected 3 presets, got %d", len(body.Presets))
	}
	if len(body.Sections) == 0 {
		t.Errorf("expected section variants in catalog response")
	}
}
