// Package auth loads Stacklet credentials from the environment or the
// ~/.stacklet directory written by `stacklet-admin login`.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials holds the endpoint and tokens used to reach Stacklet services.
type Credentials struct {
	Endpoint      string
	AccessToken   string
	IdentityToken string
}

// ServiceEndpoint rewrites the API endpoint for a sibling service, e.g.
// "redash" or "docs": https://api.example.com -> https://redash.example.com/.
func (c Credentials) ServiceEndpoint(service string) string {
	endpoint := strings.Replace(c.Endpoint, "api.", service+".", 1)
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return endpoint
}

// Fingerprint identifies a distinct endpoint/credential pair. Used to key the
// schema cache, since different deployments may expose different schemas.
func (c Credentials) Fingerprint() string {
	return fmt.Sprintf("%s|%d", c.Endpoint, len(c.AccessToken))
}

// CheckExpiry returns an error if the access token is a JWT that has already
// expired. Tokens that do not parse as JWTs are passed through without
// complaint; the platform will reject them itself if they are invalid.
func (c Credentials) CheckExpiry(now time.Time) error {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(c.AccessToken, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(now) {
		return fmt.Errorf("access token expired at %s; run `stacklet-admin login`", exp.Format(time.RFC3339))
	}
	return nil
}

// StackletDir returns the Stacklet configuration directory (~/.stacklet).
func StackletDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stacklet"
	}
	return filepath.Join(home, ".stacklet")
}

// Load resolves credentials from, in order of precedence:
//
//  1. Environment variables STACKLET_ENDPOINT, STACKLET_ACCESS_TOKEN,
//     STACKLET_IDENTITY_TOKEN.
//  2. CLI configuration files under dir (config.json, credentials, id).
//
// An empty dir means StackletDir().
func Load(dir string) (Credentials, error) {
	if dir == "" {
		dir = StackletDir()
	}

	creds := Credentials{
		Endpoint:      os.Getenv("STACKLET_ENDPOINT"),
		AccessToken:   os.Getenv("STACKLET_ACCESS_TOKEN"),
		IdentityToken: os.Getenv("STACKLET_IDENTITY_TOKEN"),
	}

	if creds.Endpoint == "" {
		if data, err := os.ReadFile(filepath.Join(dir, "config.json")); err == nil {
			var config struct {
				API string `json:"api"`
			}
			if err := json.Unmarshal(data, &config); err == nil {
				creds.Endpoint = config.API
			}
		}
	}
	if creds.AccessToken == "" {
		if data, err := os.ReadFile(filepath.Join(dir, "credentials")); err == nil {
			creds.AccessToken = strings.TrimSpace(string(data))
		}
	}
	if creds.IdentityToken == "" {
		if data, err := os.ReadFile(filepath.Join(dir, "id")); err == nil {
			creds.IdentityToken = strings.TrimSpace(string(data))
		}
	}

	var missing []string
	if creds.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if creds.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if creds.IdentityToken == "" {
		missing = append(missing, "identity_token")
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf(
			"missing Stacklet credentials: %s; run `stacklet-admin login`, or set via "+
				"environment STACKLET_ENDPOINT, STACKLET_ACCESS_TOKEN, STACKLET_IDENTITY_TOKEN",
			strings.Join(missing, ", "))
	}
	return creds, nil
}
