package auth

import (
	"net/http"
	"strings"
)

// Middleware attaches the caller's identity to the request context. A
// request without credentials continues unauthenticated; a request with
// bad credentials is rejected.
func (m *Middleware) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u, ok := m.devUser(r); ok {
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
				return
			}

			raw := bearer(r)
			if raw == "" {
				if c, _ := r.Cookie(m.assertCookieName); c != nil {
					raw = c.Value
				}
			}
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			u, err := m.validateAssertion(raw)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// RequireAdmin rejects callers without the admin role.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.IsAuthenticated(r.Context()) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !m.IsAdmin(r.Context()) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// devUser trusts X-Dev-User / X-Dev-Role verbatim. Lab use only.
func (m *Middleware) devUser(r *http.Request) (User, bool) {
	if !m.devBypass {
		return User{}, false
	}
	name := r.Header.Get("X-Dev-User")
	if name == "" {
		return User{}, false
	}
	return User{
		Username:             name,
		AuthenticationSource: AuthenticationSource{Provider: first(r.Header.Get("X-Dev-Provider"), "dev")},
		Role:                 Role{Name: r.Header.Get("X-Dev-Role")},
	}, true
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
