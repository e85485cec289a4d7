package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vaultServer(t *testing.T, wantPath, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath || r.Header.Get("X-Vault-Token") != "root" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchKVv2(t *testing.T) {
	srv := vaultServer(t, "/v1/secret/data/appointments",
		`{"data":{"data":{"PAYMENT_WEBHOOK_SECRET":"s3cret","SMTP_PORT":587,"OTEL_ENABLED":true,"EMPTY":null}}}`)

	values, err := Fetch(context.Background(), srv.Client(), VaultConfig{
		Addr: srv.URL, Token: "root", Mount: "secret", Path: "appointments", KVVersion: 2, Timeout: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", values["PAYMENT_WEBHOOK_SECRET"])
	assert.Equal(t, "587", values["SMTP_PORT"])
	assert.Equal(t, "true", values["OTEL_ENABLED"])
	assert.Equal(t, "", values["EMPTY"])
}

func TestFetchKVv1(t *testing.T) {
	srv := vaultServer(t, "/v1/kv/appointments", `{"data":{"DB_PASSWORD":"pw"}}`)

	values, err := Fetch(context.Background(), srv.Client(), VaultConfig{
		Addr: srv.URL + "/", Token: "root", Mount: "/kv/", Path: "/appointments", KVVersion: 1, Timeout: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"DB_PASSWORD": "pw"}, values)
}

func TestFetchErrors(t *testing.T) {
	srv := vaultServer(t, "/v1/secret/data/appointments", `{"data":{}}`)

	_, err := Fetch(context.Background(), srv.Client(), VaultConfig{Addr: srv.URL, Token: "root"})
	assert.ErrorContains(t, err, "incomplete")

	_, err = Fetch(context.Background(), srv.Client(), VaultConfig{
		Addr: srv.URL, Token: "wrong", Mount: "secret", Path: "appointments", KVVersion: 2, Timeout: time.Second,
	})
	assert.ErrorContains(t, err, "403")

	_, err = Fetch(context.Background(), srv.Client(), VaultConfig{
		Addr: srv.URL, Token: "root", Mount: "secret", Path: "appointments", KVVersion: 2, Timeout: time.Second,
	})
	assert.ErrorContains(t, err, "KV v2")
}

func TestApplyRespectsExistingEnv(t *testing.T) {
	srv := vaultServer(t, "/v1/secret/data/appointments",
		`{"data":{"data":{"APPT_TEST_NEW":"from-vault","APPT_TEST_SET":"from-vault"}}}`)
	t.Setenv("APPT_TEST_SET", "local")
	t.Setenv("APPT_TEST_NEW", "")
	require.NoError(t, os.Unsetenv("APPT_TEST_NEW"))

	cfg := VaultConfig{
		Enabled: true, Addr: srv.URL, Token: "root", Mount: "secret", Path: "appointments", KVVersion: 2, Timeout: time.Second,
	}
	result, err := Apply(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Loaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "from-vault", os.Getenv("APPT_TEST_NEW"))
	assert.Equal(t, "local", os.Getenv("APPT_TEST_SET"))

	cfg.Overwrite = true
	_, err = Apply(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "from-vault", os.Getenv("APPT_TEST_SET"))
}

func TestApplyDisabled(t *testing.T) {
	result, err := Apply(context.Background(), VaultConfig{})
	require.NoError(t, err)
	assert.False(t, result.Enabled)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("VAULT_ENABLED", "TRUE")
	t.Setenv("VAULT_MOUNT", "kv")
	t.Setenv("VAULT_KV_VERSION", "1")
	t.Setenv("VAULT_TIMEOUT_MS", "250")

	cfg := ConfigFromEnv()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "kv", cfg.Mount)
	assert.Equal(t, 1, cfg.KVVersion)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
}
