package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/qbo-connector/pkg/model"
)

// ─── SyncRequest.Validate ─────────────────────────────────────────────────────

func TestSyncRequest_Validate_NoDates(t *testing.T) {
	req := SyncRequest{SyncAccounts: true}
	assert.NoError(t, req.Validate())
}

func TestSyncRequest_Validate_Window(t *testing.T) {
	req := SyncRequest{SyncInvoices: true, StartDate: "2024-01-01", EndDate: "2024-03-31"}
	assert.NoError(t, req.Validate())
}

func TestSyncRequest_Validate_BadStart(t *testing.T) {
	req := SyncRequest{StartDate: "2024-13-01"}
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid date "2024-13-01"`)
}

func TestSyncRequest_Validate_InjectionRejected(t *testing.T) {
	req := SyncRequest{EndDate: "2024-01-01' OR '1'='1"}
	assert.Error(t, req.Validate())
}

func TestSyncRequest_Validate_StartAfterEnd(t *testing.T) {
	req := SyncRequest{StartDate: "2024-02-01", EndDate: "2024-01-01"}
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is after end date")
}

func TestSyncRequest_ToConfig(t *testing.T) {
	req := SyncRequest{SyncBills: true, SyncReports: true, StartDate: "2024-01-01", EndDate: "2024-01-31"}
	cfg := req.toConfig()
	assert.True(t, cfg.SyncBills)
	assert.True(t, cfg.WantsReports())
	assert.False(t, cfg.SyncAccounts)
}

// ─── callbackParams.Validate ──────────────────────────────────────────────────

func TestCallbackParams_Validate(t *testing.T) {
	assert.NoError(t, callbackParams{Code: "c", State: "s", RealmID: "r"}.Validate())

	err := callbackParams{Code: "c"}.Validate()
	require.Error(t, err)
	assert.Equal(t, "missing required parameter(s): state, realmId", err.Error())
}

// ─── TokenCookie ──────────────────────────────────────────────────────────────

func TestTokenCookie_RoundTrip(t *testing.T) {
	in := TokenCookie{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600, RealmID: "123"}
	v, err := in.encode()
	require.NoError(t, err)
	assert.NotContains(t, v, "=")

	out, err := decodeTokenCookie(v)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestTokenCookie_DecodeRejects(t *testing.T) {
	_, err := decodeTokenCookie("")
	assert.Error(t, err)

	_, err = decodeTokenCookie("!!!not-base64")
	assert.Error(t, err)

	noRealm, _ := TokenCookie{AccessToken: "at"}.encode()
	_, err = decodeTokenCookie(noRealm)
	assert.Error(t, err)
}

func TestTokenCookie_DecodeRejectsRealmOnly(t *testing.T) {
	realmOnly, _ := TokenCookie{RealmID: "123"}.encode()
	_, err := decodeTokenCookie(realmOnly)
	assert.Error(t, err)
}

func TestTokenCookie_Matches(t *testing.T) {
	stored := model.CredentialBundle{AccessToken: "at-2", RefreshToken: "rt-1", RealmID: "123"}

	assert.True(t, TokenCookie{AccessToken: "at-1", RefreshToken: "rt-1", RealmID: "123"}.matches(stored))
	assert.True(t, TokenCookie{AccessToken: "at-2", RefreshToken: "rt-0", RealmID: "123"}.matches(stored))
	assert.False(t, TokenCookie{AccessToken: "at-x", RefreshToken: "rt-x", RealmID: "123"}.matches(stored))
	assert.False(t, TokenCookie{RealmID: "123"}.matches(model.CredentialBundle{RealmID: "123"}))
}
