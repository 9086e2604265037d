package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSyncConfig(t *testing.T) {
	cfg, err := parseSyncConfig("accounts, Invoices,reports", "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.True(t, cfg.SyncAccounts)
	assert.True(t, cfg.SyncInvoices)
	assert.True(t, cfg.SyncReports)
	assert.False(t, cfg.SyncBills)
	assert.True(t, cfg.WantsReports())
}

func TestParseSyncConfig_UnknownCategory(t *testing.T) {
	_, err := parseSyncConfig("accounts,journal", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal")
}

func TestParseSyncConfig_BadDate(t *testing.T) {
	_, err := parseSyncConfig("invoices", "2024/01/01", "")
	assert.Error(t, err)
}
