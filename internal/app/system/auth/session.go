package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session constants                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

// DefaultCookieName is the cookie that carries the signed session token.
const DefaultCookieName = "session"

const unauthorizedMsg = "Unauthorized: Session invalid or expired."

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is what we inject into r.Context() after a session verifies.
// Only the subject travels in the token; profile data is loaded on demand.
type SessionUser struct {
	ID        string
	ExpiresAt time.Time
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & “found?” flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil && u.ID != ""
}

// WithTestUser injects u into the request context, bypassing the cookie.
// Used by handler tests.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| SessionManager                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionManager issues, verifies, refreshes and clears the session cookie.
type SessionManager struct {
	codec   *Codec
	name    string
	domain  string
	ttl     time.Duration
	secure  bool
	sliding bool
	log     *zap.Logger
}

// NewSessionManager builds a SessionManager.
//
// In production (secure=true) cookies are Secure + SameSite=None; over
// http://localhost use secure=false so the browser accepts them (SameSite=Lax).
// A zero ttl falls back to DefaultTTL. Sliding refresh is on by default.
func NewSessionManager(secret, name, domain string, ttl time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	codec, err := NewCodec(secret)
	if err != nil {
		return nil, err
	}
	if len(secret) < 32 {
		logger.Warn("session secret is short; 32+ chars recommended",
			zap.Int("length", len(secret)))
	}
	if name == "" {
		name = DefaultCookieName
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	logger.Info("session manager initialized",
		zap.String("cookie", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("ttl", ttl))

	return &SessionManager{
		codec:   codec,
		name:    name,
		domain:  domain,
		ttl:     ttl,
		secure:  secure,
		sliding: true,
		log:     logger,
	}, nil
}

// SetSliding turns extend-on-touch on or off.
func (m *SessionManager) SetSliding(enabled bool) {
	m.sliding = enabled
}

// Codec exposes the token codec.
func (m *SessionManager) Codec() *Codec {
	return m.codec
}

// CookieName returns the session cookie name.
func (m *SessionManager) CookieName() string {
	return m.name
}

// Issue signs a new session for userID and writes it as an HTTP-only cookie.
func (m *SessionManager) Issue(w http.ResponseWriter, userID string) error {
	expires := m.codec.now().Add(m.ttl)
	token, err := m.codec.Create(userID, expires)
	if err != nil {
		return err
	}
	m.setCookie(w, m.cookie(token, expires))
	return nil
}

// Clear writes a deletion cookie. The token itself stays valid until its
// natural expiry; there is no server-side revocation.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	c := m.cookie("", time.Unix(0, 0))
	c.MaxAge = -1
	m.setCookie(w, c)
}

// Verify reads and verifies the session cookie on r.
func (m *SessionManager) Verify(r *http.Request) (*Claims, bool) {
	c, err := r.Cookie(m.name)
	if err != nil {
		return nil, false
	}
	return m.codec.Verify(c.Value)
}

// LoadSessionUser injects the user into context when the session cookie
// verifies. With sliding sessions the cookie is reissued for the same subject
// with a fresh expiry. Invalid cookies are ignored, not rejected.
func (m *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(m.name)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, ok := m.codec.Verify(c.Value)
		if !ok {
			m.log.Debug("session cookie rejected", zap.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
			return
		}

		u := &SessionUser{ID: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}
		if m.sliding {
			if err := m.Issue(w, claims.Subject); err != nil {
				m.log.Warn("session refresh failed", zap.Error(err), zap.String("user_id", claims.Subject))
			} else {
				u.ExpiresAt = m.codec.now().Add(m.ttl)
			}
		}

		next.ServeHTTP(w, withUser(r, u))
	})
}

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser)
// and otherwise answers 401 with the JSON error body.
func (m *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		WriteUnauthorized(w)
	})
}

// WriteUnauthorized writes the standard 401 JSON body.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": unauthorizedMsg})
}

// helpers

func (m *SessionManager) cookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		Domain:   m.domain,
		Expires:  expires,
		Secure:   m.secure,
		HttpOnly: true,
	}
	if m.secure {
		c.SameSite = http.SameSiteNoneMode
	} else {
		c.SameSite = http.SameSiteLaxMode
	}
	return c
}

// setCookie replaces any session cookie already queued on w, so a response
// never carries both a refreshed token and a later deletion or reissue.
func (m *SessionManager) setCookie(w http.ResponseWriter, c *http.Cookie) {
	h := w.Header()
	prefix := m.name + "="
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	http.SetCookie(w, c)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}
