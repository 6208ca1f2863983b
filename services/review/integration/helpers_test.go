//go:build integration

// Package integration exercises a running review service over HTTP. Run the
// service (REVIEW_STORE=memory is enough) and then:
//
//	go test -tags integration ./services/review/integration/...
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/moroccoguide/platform/pkg/auth"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// baseURL returns REVIEW_BASE_URL or the local default.
func baseURL() string {
	if u := os.Getenv("REVIEW_BASE_URL"); u != "" {
		return strings.TrimRight(u, "/")
	}
	return "http://localhost:8010"
}

// uniqueID generates a unique id so runs against a persistent store do not collide.
func uniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), rand.IntN(100000))
}

// skipIfNotRunning performs a quick health check against the service.
// If the service is unreachable, the test is skipped (not failed).
func skipIfNotRunning(t *testing.T) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL() + "/health/live")
	if err != nil {
		t.Skipf("review service at %s not reachable: %v", baseURL(), err)
	}
	resp.Body.Close()
}

// tokenFor mints an access token the running service accepts.
func tokenFor(t *testing.T, userID, name string) string {
	t.Helper()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = defaultJWTSecret
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "moroccoguide"
	}

	token, err := auth.NewJWTManager(secret, issuer, time.Hour).GenerateAccessToken(userID, name, "", "MA")
	if err != nil {
		t.Fatalf("minting token failed: %v", err)
	}
	return token
}

// doJSONRequest performs a request and returns the status code and decoded JSON body.
func doJSONRequest(t *testing.T, method, path string, body any, token string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body failed: %v", err)
		}
		bodyReader = bytes.NewReader(jsonBytes)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequest(method, baseURL()+path, bodyReader)
	if err != nil {
		t.Fatalf("creating %s request for %s failed: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp.Body)
}

// decodeBody reads the response body and attempts to decode it as JSON.
// If the body is empty or not JSON, it returns an empty map.
func decodeBody(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading response body failed: %v", err)
	}
	if len(raw) == 0 {
		return map[string]any{}
	}
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return map[string]any{"raw": string(raw)}
	}
	return result
}

// requireStatus asserts that the HTTP status code matches the expected value.
func requireStatus(t *testing.T, got, want int, data map[string]any) {
	t.Helper()
	if got != want {
		t.Fatalf("expected status %d, got %d: %v", want, got, data)
	}
}

// extractField extracts a value from a nested map using a dot-separated path.
func extractField(data map[string]any, path string) any {
	var current any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[part]
		if !ok {
			return nil
		}
	}
	return current
}

// extractString returns the string at path or fails the test.
func extractString(t *testing.T, data map[string]any, path string) string {
	t.Helper()
	s, ok := extractField(data, path).(string)
	if !ok {
		t.Fatalf("expected string at path %q in %v", path, data)
	}
	return s
}

// extractFloat returns the number at path or fails the test.
func extractFloat(t *testing.T, data map[string]any, path string) float64 {
	t.Helper()
	f, ok := extractField(data, path).(float64)
	if !ok {
		t.Fatalf("expected number at path %q in %v", path, data)
	}
	return f
}
