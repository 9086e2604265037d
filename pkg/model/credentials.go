package model

import (
	"errors"
	"time"
)

// RefreshMargin is how long before expiry an access token stops being usable.
const RefreshMargin = 5 * time.Minute

// CredentialBundle is one QuickBooks company's token pair.
type CredentialBundle struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	RealmID          string    `json:"realm_id"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewCredentialBundle builds a bundle from a token response issued at issuedAt.
// Lifetimes are in seconds; a zero refresh lifetime leaves RefreshExpiresAt unset.
func NewCredentialBundle(accessToken, refreshToken, realmID string, expiresIn, refreshExpiresIn int64, issuedAt time.Time) CredentialBundle {
	b := CredentialBundle{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		RealmID:      realmID,
		ExpiresAt:    issuedAt.Add(time.Duration(expiresIn) * time.Second),
		UpdatedAt:    issuedAt,
	}
	if refreshExpiresIn > 0 {
		b.RefreshExpiresAt = issuedAt.Add(time.Duration(refreshExpiresIn) * time.Second)
	}
	return b
}

// NeedsRefresh reports whether the access token is within RefreshMargin of expiry.
func (b CredentialBundle) NeedsRefresh(now time.Time) bool {
	return b.ExpiresAt.Sub(now) < RefreshMargin
}

// Validate checks the bundle carries everything needed to call the API.
func (b CredentialBundle) Validate() error {
	switch {
	case b.RealmID == "":
		return errors.New("credential bundle: missing realm id")
	case b.AccessToken == "":
		return errors.New("credential bundle: missing access token")
	case b.RefreshToken == "":
		return errors.New("credential bundle: missing refresh token")
	}
	return nil
}

// ConnectionStatus describes a stored connection without exposing its tokens.
type ConnectionStatus struct {
	Connected        bool       `json:"connected"`
	RealmID          string     `json:"realmId,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	RefreshExpiresAt *time.Time `json:"refreshExpiresAt,omitempty"`
	NeedsRefresh     bool       `json:"needsRefresh"`
}

// StatusOf summarises b at now.
func StatusOf(b *CredentialBundle, now time.Time) ConnectionStatus {
	if b == nil {
		return ConnectionStatus{}
	}
	st := ConnectionStatus{
		Connected:    true,
		RealmID:      b.RealmID,
		NeedsRefresh: b.NeedsRefresh(now),
	}
	if !b.ExpiresAt.IsZero() {
		exp := b.ExpiresAt
		st.ExpiresAt = &exp
	}
	if !b.RefreshExpiresAt.IsZero() {
		rexp := b.RefreshExpiresAt
		st.RefreshExpiresAt = &rexp
		if !now.Before(rexp) {
			st.Connected = false
		}
	}
	return st
}
