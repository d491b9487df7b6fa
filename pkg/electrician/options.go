package electrician

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
)

// RelayOptions configures the forward relay that carries SDUs written to
// shim-relay IPC processes.
type RelayOptions struct {
	Targets []string

	TLSEnable    bool
	TLSClientCrt string
	TLSClientKey string
	TLSCA        string
	InsecureTLS  bool // dev only, OAuth token fetch

	CompressSnappy bool
	EncryptAESGCM  bool
	AESKey         string // raw 32 bytes

	OAuthIssuer   string
	OAuthJWKS     string
	OAuthClientID string
	OAuthSecret   string
	OAuthScopes   []string
	OAuthLeeway   time.Duration

	StaticHeaders map[string]string

	// PublishTimeout bounds a single SDU submit.
	PublishTimeout time.Duration
}

func (o RelayOptions) oauthEnabled() bool {
	return o.OAuthIssuer != "" && o.OAuthClientID != "" && o.OAuthSecret != ""
}

// RelayOptionsFromEnv reads:
//
//	ELECTRICIAN_TARGET          = "host:port[,host2:port2]"
//	ELECTRICIAN_TLS_ENABLE, ELECTRICIAN_TLS_CLIENT_CRT, ELECTRICIAN_TLS_CLIENT_KEY, ELECTRICIAN_TLS_CA
//	ELECTRICIAN_TLS_INSECURE
//	ELECTRICIAN_COMPRESS        = "snappy" | ""
//	ELECTRICIAN_ENCRYPT         = "aesgcm" | ""
//	ELECTRICIAN_AES256_KEY_HEX  = 64 hex chars
//	ELECTRICIAN_STATIC_HEADERS  = "k=v,k2=v2"
//	ELECTRICIAN_PUBLISH_TIMEOUT = "250ms"
//	OAUTH_ISSUER_BASE, OAUTH_JWKS_URL, OAUTH_CLIENT_ID, OAUTH_CLIENT_SECRET, OAUTH_SCOPES, OAUTH_REFRESH_LEEWAY
func RelayOptionsFromEnv() (RelayOptions, error) {
	o := RelayOptions{
		Targets:        splitCSV(os.Getenv("ELECTRICIAN_TARGET")),
		TLSEnable:      strings.EqualFold(os.Getenv("ELECTRICIAN_TLS_ENABLE"), "true"),
		TLSClientCrt:   getenv("ELECTRICIAN_TLS_CLIENT_CRT", "keys/tls/client.crt"),
		TLSClientKey:   getenv("ELECTRICIAN_TLS_CLIENT_KEY", "keys/tls/client.key"),
		TLSCA:          getenv("ELECTRICIAN_TLS_CA", "keys/tls/ca.crt"),
		InsecureTLS:    strings.EqualFold(os.Getenv("ELECTRICIAN_TLS_INSECURE"), "true"),
		CompressSnappy: strings.EqualFold(os.Getenv("ELECTRICIAN_COMPRESS"), "snappy"),
		EncryptAESGCM:  strings.EqualFold(os.Getenv("ELECTRICIAN_ENCRYPT"), "aesgcm"),

		OAuthIssuer:   strings.TrimSpace(os.Getenv("OAUTH_ISSUER_BASE")),
		OAuthJWKS:     strings.TrimSpace(os.Getenv("OAUTH_JWKS_URL")),
		OAuthClientID: strings.TrimSpace(os.Getenv("OAUTH_CLIENT_ID")),
		OAuthSecret:   strings.TrimSpace(os.Getenv("OAUTH_CLIENT_SECRET")),
		OAuthScopes:   splitCSV(os.Getenv("OAUTH_SCOPES")),
		OAuthLeeway:   parseDur(os.Getenv("OAUTH_REFRESH_LEEWAY"), 20*time.Second),

		StaticHeaders:  parseKV(os.Getenv("ELECTRICIAN_STATIC_HEADERS")),
		PublishTimeout: parseDur(os.Getenv("ELECTRICIAN_PUBLISH_TIMEOUT"), 250*time.Millisecond),
	}

	if o.EncryptAESGCM {
		k := strings.TrimSpace(os.Getenv("ELECTRICIAN_AES256_KEY_HEX"))
		raw, err := hex.DecodeString(k)
		if err != nil || len(raw) != 32 {
			return RelayOptions{}, fmt.Errorf("ELECTRICIAN_AES256_KEY_HEX must be 64 hex chars (32 bytes): %v", err)
		}
		o.AESKey = string(raw)
	}
	return o, nil
}
