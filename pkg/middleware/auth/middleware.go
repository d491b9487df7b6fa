package auth

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Middleware authenticates admin API callers with HS256 bearer assertions.
type Middleware struct {
	secret    []byte
	adminRole string
	devBypass bool

	assertCookieName string
	assertIssuer     string
	assertAudience   string
	assertLeeway     time.Duration
}

// Options configure a Middleware. Zero values fall back to defaults.
type Options struct {
	Secret     string
	AdminRole  string
	DevBypass  bool
	CookieName string
	Issuer     string
	Audience   string
	Leeway     time.Duration
}

func New(o Options) *Middleware {
	if o.AdminRole == "" {
		o.AdminRole = "admin"
	}
	if o.CookieName == "" {
		o.CookieName = "assert"
	}
	if o.Leeway <= 0 {
		o.Leeway = 60 * time.Second
	}
	return &Middleware{
		secret:           []byte(o.Secret),
		adminRole:        o.AdminRole,
		devBypass:        o.DevBypass,
		assertCookieName: o.CookieName,
		assertIssuer:     o.Issuer,
		assertAudience:   o.Audience,
		assertLeeway:     o.Leeway,
	}
}

// ProvideAuthentication wires the middleware from the environment.
func ProvideAuthentication() *Middleware {
	leeway := 60 * time.Second
	if v := strings.TrimSpace(os.Getenv("ASSERTION_LEEWAY_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			leeway = time.Duration(n) * time.Second
		}
	}
	return New(Options{
		Secret:     os.Getenv("IPCM_ADMIN_SECRET"),
		AdminRole:  os.Getenv("ADMIN_ROLE_NAME"),
		DevBypass:  os.Getenv("AUTH_DEV_BYPASS") == "true",
		CookieName: strings.TrimSpace(os.Getenv("ASSERTION_COOKIE_NAME")),
		Issuer:     strings.TrimSpace(os.Getenv("ASSERTION_ISSUER")),
		Audience:   strings.TrimSpace(os.Getenv("ASSERTION_AUDIENCE")),
		Leeway:     leeway,
	})
}
