package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestInvoiceStatus(t *testing.T) {
	tests := []struct {
		balance, total string
		want           string
	}{
		{"100", "100", StatusUnpaid},
		{"0", "100", StatusPaid},
		{"40", "100", StatusPartial},
		{"0.00", "0", StatusPaid},
		{"100.00", "100", StatusUnpaid},
		{"120", "100", StatusPartial},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InvoiceStatus(d(tt.balance), d(tt.total)), "balance=%s total=%s", tt.balance, tt.total)
	}
}

func TestBillStatus_NeverPartial(t *testing.T) {
	assert.Equal(t, StatusPaid, BillStatus(d("0")))
	assert.Equal(t, StatusUnpaid, BillStatus(d("40")))
	assert.Equal(t, StatusUnpaid, BillStatus(d("100")))
}

func TestSyncConfig_WantsReports(t *testing.T) {
	assert.True(t, SyncConfig{SyncReports: true, StartDate: "2024-01-01", EndDate: "2024-06-01"}.WantsReports())
	assert.False(t, SyncConfig{SyncReports: true, StartDate: "2024-01-01"}.WantsReports())
	assert.False(t, SyncConfig{SyncReports: true, EndDate: "2024-06-01"}.WantsReports())
	assert.False(t, SyncConfig{StartDate: "2024-01-01", EndDate: "2024-06-01"}.WantsReports())
}
