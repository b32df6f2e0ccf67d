package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/321david123/spotify-feature/internal/models"
	"github.com/321david123/spotify-feature/internal/shared"
)

// Cookie names.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
	StateCookie   = "oauth_state"
)

// sealedValue is the payload inside every sealed cookie. Typ is the cookie name the value was sealed for.
// Exp is a unix timestamp, zero when unbounded.
type sealedValue struct {
	Typ string `json:"typ"`
	Tok string `json:"tok"`
	Exp int64  `json:"exp,omitempty"`
}

// Session is what the token cookies of a request hold.
type Session struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// ExpiresWithin reports whether the access token expires within d of now.
func (s Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !s.Expiry.IsZero() && s.Expiry.Sub(now) <= d
}

// CookieManager reads and writes the sealed session and state cookies.
type CookieManager struct {
	sealer   *Sealer
	secure   bool
	stateTTL time.Duration
	now      func() time.Time
}

// NewCookieManager creates a [CookieManager]. secure sets the Secure attribute on every cookie.
func NewCookieManager(sealer *Sealer, secure bool, stateTTL time.Duration) *CookieManager {
	return &CookieManager{sealer: sealer, secure: secure, stateTTL: stateTTL, now: time.Now}
}

func (m *CookieManager) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *CookieManager) set(w http.ResponseWriter, name string, v sealedValue, maxAge int) error {
	v.Typ = name
	value, err := m.sealer.Seal(v)
	if err != nil {
		return fmt.Errorf("failed to seal %s cookie: %w", name, err)
	}
	http.SetCookie(w, m.cookie(name, value, maxAge))
	return nil
}

func (m *CookieManager) open(r *http.Request, name string) (sealedValue, error) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return sealedValue{}, fmt.Errorf("%w: no %s cookie", shared.ErrNotAuthenticated, name)
	}

	var v sealedValue
	if err := m.sealer.Open(c.Value, &v); err != nil {
		return sealedValue{}, fmt.Errorf("%w: %s cookie: %w", shared.ErrNotAuthenticated, name, err)
	}
	if v.Typ != name {
		return sealedValue{}, fmt.Errorf("%w: %s cookie holds a %q value", shared.ErrNotAuthenticated, name, v.Typ)
	}
	if v.Tok == "" {
		return sealedValue{}, fmt.Errorf("%w: empty %s cookie", shared.ErrNotAuthenticated, name)
	}
	return v, nil
}

// SetTokens writes the access cookie with Max-Age equal to the token lifetime and the refresh cookie
// as a session cookie. A zero lifetime expires the access cookie at once instead of leaving it
// session-scoped. An empty refresh token leaves the existing refresh cookie untouched.
func (m *CookieManager) SetTokens(w http.ResponseWriter, pair models.TokenPair) error {
	if err := pair.Validate(); err != nil {
		return err
	}

	if pair.IssuedAt.IsZero() {
		pair.IssuedAt = m.now()
	}
	maxAge := pair.ExpiresIn
	if maxAge == 0 {
		maxAge = -1
	}
	access := sealedValue{Tok: pair.AccessToken, Exp: pair.Expiry().Unix()}
	if err := m.set(w, AccessCookie, access, maxAge); err != nil {
		return err
	}

	if pair.RefreshToken == "" {
		return nil
	}
	return m.set(w, RefreshCookie, sealedValue{Tok: pair.RefreshToken}, 0)
}

// Tokens opens the session cookies. A missing or unopenable access cookie is [shared.ErrNotAuthenticated];
// a bad refresh cookie only leaves RefreshToken empty.
func (m *CookieManager) Tokens(r *http.Request) (Session, error) {
	access, err := m.open(r, AccessCookie)
	if err != nil {
		return Session{}, err
	}

	s := Session{AccessToken: access.Tok}
	if access.Exp > 0 {
		s.Expiry = time.Unix(access.Exp, 0)
	}
	if refresh, err := m.open(r, RefreshCookie); err == nil {
		s.RefreshToken = refresh.Tok
	}
	return s, nil
}

// SetState writes the login state nonce cookie, expiring with the stored state.
func (m *CookieManager) SetState(w http.ResponseWriter, nonce string) error {
	exp := m.now().Add(m.stateTTL).Unix()
	return m.set(w, StateCookie, sealedValue{Tok: nonce, Exp: exp}, int(m.stateTTL.Seconds()))
}

// State returns the nonce from the state cookie.
func (m *CookieManager) State(r *http.Request) (string, error) {
	v, err := m.open(r, StateCookie)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrInvalidState, err)
	}
	if v.Exp > 0 && m.now().Unix() > v.Exp {
		return "", fmt.Errorf("%w: state cookie expired", shared.ErrInvalidState)
	}
	return v.Tok, nil
}

// ClearState expires the state cookie.
func (m *CookieManager) ClearState(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(StateCookie, "", -1))
}

// Clear expires both token cookies.
func (m *CookieManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(AccessCookie, "", -1))
	http.SetCookie(w, m.cookie(RefreshCookie, "", -1))
}
