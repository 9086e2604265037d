package api

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Checker-Finance/qbo-connector/pkg/model"
)

// CookieMaxAge is how long the browser keeps the token cookie.
const CookieMaxAge = 30 * 24 * time.Hour

// TokenCookie is the credential payload carried in the HTTP-only cookie.
type TokenCookie struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	RealmID      string `json:"realmId"`
}

func cookieFromBundle(b model.CredentialBundle, now time.Time) TokenCookie {
	expiresIn := int64(b.ExpiresAt.Sub(now).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return TokenCookie{
		AccessToken:  b.AccessToken,
		RefreshToken: b.RefreshToken,
		ExpiresIn:    expiresIn,
		RealmID:      b.RealmID,
	}
}

// bundle rebuilds a credential bundle from the cookie. The cookie does not
// record when it was issued, so the expiry is left unknown and the first API
// call refreshes.
func (tc TokenCookie) bundle() model.CredentialBundle {
	return model.CredentialBundle{
		AccessToken:  tc.AccessToken,
		RefreshToken: tc.RefreshToken,
		RealmID:      tc.RealmID,
	}
}

// encode produces a cookie-safe value: base64url of the JSON payload.
func (tc TokenCookie) encode() (string, error) {
	raw, err := json.Marshal(tc)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeTokenCookie(v string) (TokenCookie, error) {
	var tc TokenCookie
	if v == "" {
		return tc, errors.New("empty token cookie")
	}
	raw, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil {
		return tc, err
	}
	if err := json.Unmarshal(raw, &tc); err != nil {
		return tc, err
	}
	if tc.RealmID == "" {
		return tc, errors.New("token cookie without realm")
	}
	if tc.RefreshToken == "" {
		return tc, errors.New("token cookie without refresh token")
	}
	return tc, nil
}

// matches reports whether the cookie holds the same token pair as the stored
// bundle. A single matching token is enough: the stored bundle may have been
// refreshed by a request whose response never reached this browser.
func (tc TokenCookie) matches(b model.CredentialBundle) bool {
	return tokenEqual(tc.RefreshToken, b.RefreshToken) || tokenEqual(tc.AccessToken, b.AccessToken)
}

func tokenEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (h *QuickBooksHandler) setTokenCookie(c *fiber.Ctx, b model.CredentialBundle) error {
	value, err := cookieFromBundle(b, h.now()).encode()
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(CookieMaxAge.Seconds()),
		Expires:  h.now().Add(CookieMaxAge),
		HTTPOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

func (h *QuickBooksHandler) setStateCookie(c *fiber.Ctx, state string) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(h.cfg.StateTTL.Seconds()),
		Expires:  h.now().Add(h.cfg.StateTTL),
		HTTPOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// stateMatches reports whether the callback state is the one issued to this browser.
func (h *QuickBooksHandler) stateMatches(c *fiber.Ctx, state string) bool {
	return tokenEqual(c.Cookies(h.cfg.StateCookieName), state)
}

func (h *QuickBooksHandler) clearTokenCookie(c *fiber.Ctx) {
	h.clearCookie(c, h.cfg.CookieName)
}

func (h *QuickBooksHandler) clearCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
