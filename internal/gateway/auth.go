package gateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"os"

	"github.com/soyeahso/agentstudio/internal/config"
)

// AuthResult is the outcome of checking a connect request's credentials.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"` // "token" | "password"
	Reason string `json:"reason,omitempty"`
}

// Credentials is the secret a client must present in its connect request.
type Credentials struct {
	Mode   string // "token" | "password"
	Secret string
}

// ResolveCredentials picks the gateway secret from config, falling back to
// AGENTSTUDIO_GATEWAY_TOKEN / AGENTSTUDIO_GATEWAY_PASSWORD. Without an explicit
// mode, a configured password selects password mode.
func ResolveCredentials(cfg config.GatewayAuth) Credentials {
	token := firstNonEmpty(cfg.Token, os.Getenv("AGENTSTUDIO_GATEWAY_TOKEN"))
	password := firstNonEmpty(cfg.Password, os.Getenv("AGENTSTUDIO_GATEWAY_PASSWORD"))

	mode := cfg.Mode
	if mode == "" {
		mode = "token"
		if password != "" {
			mode = "password"
		}
	}

	switch mode {
	case "token":
		return Credentials{Mode: mode, Secret: token}
	case "password":
		return Credentials{Mode: mode, Secret: password}
	}
	return Credentials{Mode: mode}
}

// Verify checks the credentials a client presented.
func (c Credentials) Verify(auth *ConnectAuth) AuthResult {
	if auth == nil {
		return AuthResult{Reason: "no credentials provided"}
	}

	var given string
	switch c.Mode {
	case "token":
		given = auth.Token
	case "password":
		given = auth.Password
	default:
		return AuthResult{Reason: "unknown auth mode: " + c.Mode}
	}

	switch {
	case c.Secret == "":
		return AuthResult{Reason: "server " + c.Mode + " not configured"}
	case given == "":
		return AuthResult{Reason: c.Mode + " required"}
	case !secretEqual(given, c.Secret):
		return AuthResult{Reason: c.Mode + "_mismatch"}
	}
	return AuthResult{OK: true, Method: c.Mode}
}

// secretEqual compares digests so neither content nor length leaks via timing.
func secretEqual(a, b string) bool {
	da, db := sha256.Sum256([]byte(a)), sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(da[:], db[:]) == 1
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
