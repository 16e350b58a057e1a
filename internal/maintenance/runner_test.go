package maintenance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kebairia/dbmaint/internal/config"
)

func newVaultStub(t *testing.T, path, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
}

func TestResolveConnection_VaultDynamicRole(t *testing.T) {
	srv := newVaultStub(t, "/v1/database/creds/maintenance",
		`{"lease_duration":3600,"data":{"username":"v-dyn-user","password":"v-dyn-pass"}}`)
	defer srv.Close()

	cfg := &config.Config{Vault: &config.VaultConfig{
		Address:     srv.URL,
		Token:       "test-token",
		DynamicRole: "database/creds/maintenance",
	}}
	conn, err := resolveConnection(context.Background(), cfg)
	if err != nil {
		t.Fatalf("resolveConnection returned error: %v", err)
	}
	if conn.User != "v-dyn-user" || conn.Password != "v-dyn-pass" {
		t.Errorf("credentials = (%q, %q), want the dynamic pair from vault", conn.User, conn.Password)
	}
}

func TestResolveConnection_VaultStaticSecret(t *testing.T) {
	srv := newVaultStub(t, "/v1/kv/mysql/maintenance",
		`{"data":{"username":"v-user","password":"v-pass","host":"db.internal","port":"3307"}}`)
	defer srv.Close()

	cfg := &config.Config{Vault: &config.VaultConfig{
		Address:    srv.URL,
		Token:      "test-token",
		SecretPath: "kv/mysql/maintenance",
	}}
	conn, err := resolveConnection(context.Background(), cfg)
	if err != nil {
		t.Fatalf("resolveConnection returned error: %v", err)
	}
	if conn.User != "v-user" || conn.Password != "v-pass" {
		t.Errorf("credentials = (%q, %q), want the static pair from vault", conn.User, conn.Password)
	}
	if conn.Host != "db.internal" || conn.Port != "3307" {
		t.Errorf("endpoint = (%q, %q), want the secret's host and port", conn.Host, conn.Port)
	}
}

func TestResolveConnection_NoVaultBlockUsesEnvironment(t *testing.T) {
	t.Setenv("DB_HOST", "env-host")
	t.Setenv("DB_USERNAME", "env-user")
	t.Setenv("DB_PASSWORD", "env-pass")

	conn, err := resolveConnection(context.Background(), &config.Config{})
	if err != nil {
		t.Fatalf("resolveConnection returned error: %v", err)
	}
	if conn.Host != "env-host" || conn.User != "env-user" || conn.Password != "env-pass" {
		t.Errorf("connection = %+v, want environment values", conn)
	}
	if conn.Port != "3306" {
		t.Errorf("port default = %q, want 3306", conn.Port)
	}
}
