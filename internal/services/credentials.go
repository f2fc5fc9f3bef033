package services

import (
	"encoding/base64"

	"github.com/huangang/deployguide/internal/config"
)

// AuthToken is the credential sent to the upstream model service. It lives
// for a single call and is never persisted.
type AuthToken struct {
	Scheme string // "Basic" or "Bearer"
	Value  string
}

// Header renders the Authorization header value.
func (t AuthToken) Header() string {
	return t.Scheme + " " + t.Value
}

// String keeps the secret out of logs.
func (t AuthToken) String() string {
	return t.Scheme + " ***"
}

// EncodeCredentials builds the upstream authorization from configuration.
// Basic mode encodes "username:password"; bearer mode wraps a pre-issued token.
func EncodeCredentials(cfg config.UpstreamConfig) (AuthToken, error) {
	switch cfg.AuthMode {
	case config.AuthModeBasic, "":
		var missing []string
		if cfg.Username == "" {
			missing = append(missing, "GPT_USERNAME")
		}
		if cfg.Password == "" {
			missing = append(missing, "GPT_PASSWORD")
		}
		if len(missing) > 0 {
			return AuthToken{}, &ConfigurationError{Msg: "missing upstream credentials", Fields: missing}
		}
		return AuthToken{Scheme: "Basic", Value: basicToken(cfg.Username, cfg.Password)}, nil
	case config.AuthModeBearer:
		if cfg.Token == "" {
			return AuthToken{}, &ConfigurationError{Msg: "missing upstream token", Fields: []string{"GPT_TOKEN"}}
		}
		return AuthToken{Scheme: "Bearer", Value: cfg.Token}, nil
	default:
		return AuthToken{}, &ConfigurationError{Msg: "unsupported auth mode " + cfg.AuthMode}
	}
}

func basicToken(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
