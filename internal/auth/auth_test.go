package auth_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stacklet/mcp-server/internal/auth"
)

func clearEnv(t *testing.T) {
	t.Setenv("STACKLET_ENDPOINT", "")
	t.Setenv("STACKLET_ACCESS_TOKEN", "")
	t.Setenv("STACKLET_IDENTITY_TOKEN", "")
}

func writeCredentialDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"config.json": `{"api": "https://api.example.stacklet.io"}`,
		"credentials": "file-access-token\n",
		"id":          "file-identity-token\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadFromFiles(t *testing.T) {
	clearEnv(t)
	creds, err := auth.Load(writeCredentialDir(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if creds.Endpoint != "https://api.example.stacklet.io" {
		t.Errorf("Endpoint = %q", creds.Endpoint)
	}
	if creds.AccessToken != "file-access-token" || creds.IdentityToken != "file-identity-token" {
		t.Errorf("tokens = %q, %q", creds.AccessToken, creds.IdentityToken)
	}
}

func TestLoadEnvironmentWins(t *testing.T) {
	t.Setenv("STACKLET_ENDPOINT", "https://api.other.stacklet.io")
	t.Setenv("STACKLET_ACCESS_TOKEN", "env-access")
	t.Setenv("STACKLET_IDENTITY_TOKEN", "env-identity")

	creds, err := auth.Load(writeCredentialDir(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if creds.Endpoint != "https://api.other.stacklet.io" || creds.AccessToken != "env-access" {
		t.Errorf("environment should take precedence, got %+v", creds)
	}
}

func TestLoadReportsWhatIsMissing(t *testing.T) {
	clearEnv(t)
	_, err := auth.Load(t.TempDir())
	if err == nil {
		t.Fatal("expected an error with no credentials anywhere")
	}
	for _, want := range []string{"endpoint", "access_token", "identity_token", "stacklet-admin login"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestServiceEndpoint(t *testing.T) {
	creds := auth.Credentials{Endpoint: "https://api.example.stacklet.io"}
	if got := creds.ServiceEndpoint("redash"); got != "https://redash.example.stacklet.io/" {
		t.Errorf("redash endpoint = %q", got)
	}
	if got := creds.ServiceEndpoint("docs"); got != "https://docs.example.stacklet.io/" {
		t.Errorf("docs endpoint = %q", got)
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"sub": "user",
	})
	signed, err := token.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestCheckExpiry(t *testing.T) {
	now := time.Now()

	fresh := auth.Credentials{AccessToken: signedToken(t, now.Add(time.Hour))}
	if err := fresh.CheckExpiry(now); err != nil {
		t.Errorf("fresh token: %v", err)
	}

	expired := auth.Credentials{AccessToken: signedToken(t, now.Add(-time.Hour))}
	err := expired.CheckExpiry(now)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Errorf("expired token: %v", err)
	}

	// Opaque tokens are not our problem to validate.
	opaque := auth.Credentials{AccessToken: "not-a-jwt"}
	if err := opaque.CheckExpiry(now); err != nil {
		t.Errorf("opaque token: %v", err)
	}
}
