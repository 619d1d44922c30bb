package api

import (
	"encoding/json"
	"net/http"
	"testing"
)

func postJSON(t *testing.T, env *testEnv, path, body string) *http.Response {
	t.Helper()
	return env.request(t, http.MethodPost, path, &body)
}

func TestSignup(t *testing.T) {
	env := testServer(t)

	resp := postJSON(t, env, "/api/v1/auth/signup", `{
		"email": "new@example.com",
		"password": "a-strong-password",
		"tenant_name": "New Family"
	}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var body struct {
		Tenant struct {
			ID   string `json:"id"`
			Slug string `json:"slug"`
		} `json:"tenant"`
		APIKey string `json:"api_key"`
		Tokens struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			TokenType    string `json:"token_type"`
		} `json:"tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding signup response: %v", err)
	}
	if body.Tenant.Slug != "new-family" {
		t.Errorf("expected slug derived from the name, got %q", body.Tenant.Slug)
	}
	if len(body.APIKey) != 64 {
		t.Errorf("expected a 64-hex api key, got %q", body.APIKey)
	}
	if body.Tokens.AccessToken == "" || body.Tokens.RefreshToken == "" || body.Tokens.TokenType != "bearer" {
		t.Errorf("incomplete token pair: %+v", body.Tokens)
	}

	// The fresh api key uploads immediately.
	entriesBody := `[{"type":"sgv","date":1704067200000,"sgv":100}]`
	resp2 := env.requestWithSecret(t, http.MethodPost, "/api/v1/entries", &entriesBody, body.APIKey)
	if resp2.StatusCode != http.StatusCreated {
		t.Errorf("expected the new key to authenticate uploads, got %d", resp2.StatusCode)
	}
}

func TestSignupValidation(t *testing.T) {
	env := testServer(t)

	cases := map[string]string{
		"bad email":      `{"email":"nope","password":"a-strong-password","tenant_name":"X"}`,
		"short password": `{"email":"a@b.com","password":"short","tenant_name":"X"}`,
		"missing name":   `{"email":"a@b.com","password":"a-strong-password"}`,
		"bad slug":       `{"email":"a@b.com","password":"a-strong-password","tenant_name":"X","tenant_slug":"Not Valid!"}`,
		"not json":       `hello`,
	}
	for name, body := range cases {
		resp := postJSON(t, env, "/api/v1/auth/signup", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}

	// Taken slug is a conflict.
	resp := postJSON(t, env, "/api/v1/auth/signup",
		`{"email":"b@example.com","password":"a-strong-password","tenant_name":"Alice","tenant_slug":"alice"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for taken slug, got %d", resp.StatusCode)
	}
}

func TestLogin(t *testing.T) {
	env := testServer(t)

	resp := postJSON(t, env, "/api/v1/auth/signup", `{
		"email": "user@example.com",
		"password": "a-strong-password",
		"tenant_name": "Login Test"
	}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup failed: %d", resp.StatusCode)
	}

	resp = postJSON(t, env, "/api/v1/auth/login",
		`{"email":"user@example.com","password":"a-strong-password"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var tokens tokenPair
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		t.Fatalf("decoding tokens: %v", err)
	}
	if tokens.AccessToken == "" {
		t.Error("expected an access token")
	}

	// The access token authenticates entry reads as a bearer credential.
	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/v1/entries", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("bearer request failed: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("expected bearer token to authenticate, got %d", resp2.StatusCode)
	}

	// Wrong password and unknown account produce the identical response.
	for _, body := range []string{
		`{"email":"user@example.com","password":"wrong-password"}`,
		`{"email":"nobody@example.com","password":"a-strong-password"}`,
	} {
		resp := postJSON(t, env, "/api/v1/auth/login", body)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
	}
}

func TestAPIKeyRotation(t *testing.T) {
	env := testServer(t)

	resp := env.request(t, http.MethodGet, "/api/v1/auth/api-key", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var key struct {
		KeyValue string `json:"key_value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&key); err != nil {
		t.Fatalf("decoding key: %v", err)
	}
	if key.KeyValue != testAPISecret {
		t.Errorf("expected the seeded key, got %q", key.KeyValue)
	}

	resp = env.request(t, http.MethodPost, "/api/v1/auth/api-key/rotate", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var rotated struct {
		KeyValue string `json:"key_value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rotated); err != nil {
		t.Fatalf("decoding rotated key: %v", err)
	}
	if rotated.KeyValue == testAPISecret {
		t.Error("rotation must mint a new key")
	}

	// The old key stops working, the new one works.
	oldResp := env.request(t, http.MethodGet, "/api/v1/entries", nil)
	if oldResp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected revoked key to fail, got %d", oldResp.StatusCode)
	}
	newResp := env.requestWithSecret(t, http.MethodGet, "/api/v1/entries", nil, rotated.KeyValue)
	if newResp.StatusCode != http.StatusOK {
		t.Errorf("expected rotated key to authenticate, got %d", newResp.StatusCode)
	}
}
