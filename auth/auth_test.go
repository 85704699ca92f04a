package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/go-cmp/cmp"
)

func mustWriteKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("unable to generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "app.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("unable to write key: %v", err)
	}
	return key, path
}

func TestInstallationToken(t *testing.T) {
	key, keyPath := mustWriteKey(t)
	expiresAt := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	var gotPerms GithubAppTokenReqPermissions
	var gotIssuer string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/app/installations/456/access_tokens" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.RS256})
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var claims jwt.Claims
		if err := tok.Claims(&key.PublicKey, &claims); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		gotIssuer = claims.Issuer

		if err := json.NewDecoder(r.Body).Decode(&gotPerms); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(GithubAppToken{Token: "ghs_test", ExpiresAt: expiresAt})
	}))
	defer srv.Close()

	app := &GithubApp{
		AppID:          "123",
		InstallationID: "456",
		PrivateKeyPath: keyPath,
		APIURL:         srv.URL + "/",
		Client:         srv.Client(),
	}

	perms := GithubAppTokenReqPermissions{
		Repositories: []string{"repo"},
		Permissions:  map[string]string{"contents": "write"},
	}

	got, err := app.InstallationToken(t.Context(), perms)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(&GithubAppToken{Token: "ghs_test", ExpiresAt: expiresAt}, got); diff != "" {
		t.Errorf("InstallationToken() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(perms, gotPerms); diff != "" {
		t.Errorf("request permissions mismatch (-want +got):\n%s", diff)
	}
	if gotIssuer != "123" {
		t.Errorf("expected jwt issuer to be app id got %q", gotIssuer)
	}
}

func TestInstallationToken_error_status(t *testing.T) {
	_, keyPath := mustWriteKey(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"forbidden"}`))
	}))
	defer srv.Close()

	app := &GithubApp{AppID: "1", InstallationID: "2", PrivateKeyPath: keyPath, APIURL: srv.URL}

	_, err := app.InstallationToken(t.Context(), GithubAppTokenReqPermissions{})
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("expected error with response status got: %v", err)
	}
}

func TestInstallationToken_invalid_key(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.pem")
	if err := os.WriteFile(path, []byte("not a key"), 0600); err != nil {
		t.Fatalf("unable to write key: %v", err)
	}

	app := &GithubApp{AppID: "1", InstallationID: "2", PrivateKeyPath: path}
	if _, err := app.InstallationToken(t.Context(), GithubAppTokenReqPermissions{}); err == nil {
		t.Error("expected error for invalid private key")
	}

	app.PrivateKeyPath = filepath.Join(t.TempDir(), "missing.pem")
	if _, err := app.InstallationToken(t.Context(), GithubAppTokenReqPermissions{}); err == nil {
		t.Error("expected error for missing private key")
	}
}
