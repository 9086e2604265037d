package model

import (
	"encoding/json"
	"time"
)

// Category keys used in SyncResult.Data.
const (
	CategoryAccounts  = "accounts"
	CategoryCustomers = "customers"
	CategoryInvoices  = "invoices"
	CategoryBills     = "bills"
	CategoryPayments  = "payments"
	CategoryReports   = "reports"
)

// SyncConfig selects which categories one sync pulls and the transaction window.
// Dates are YYYY-MM-DD; either may be empty.
type SyncConfig struct {
	SyncAccounts  bool   `json:"syncAccounts"`
	SyncCustomers bool   `json:"syncCustomers"`
	SyncInvoices  bool   `json:"syncInvoices"`
	SyncBills     bool   `json:"syncBills"`
	SyncPayments  bool   `json:"syncPayments"`
	SyncReports   bool   `json:"syncReports"`
	StartDate     string `json:"startDate,omitempty"`
	EndDate       string `json:"endDate,omitempty"`
}

// WantsReports reports whether report fetches will run: the flag alone is not enough.
func (c SyncConfig) WantsReports() bool {
	return c.SyncReports && c.StartDate != "" && c.EndDate != ""
}

// SyncResult is the outcome of one sync. On failure Data is nil.
type SyncResult struct {
	Success    bool           `json:"success"`
	RealmID    string         `json:"realmId,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  string         `json:"errorKind,omitempty"`
	Category   string         `json:"category,omitempty"`
	CapturedAt time.Time      `json:"capturedAt"`
}

// Snapshot is the persisted copy of the latest successful sync for a realm.
type Snapshot struct {
	RealmID    string         `json:"realmId"`
	Data       map[string]any `json:"data"`
	CapturedAt time.Time      `json:"capturedAt"`
}

// Reports holds vendor report bodies exactly as returned.
type Reports struct {
	ProfitAndLoss json.RawMessage `json:"profitAndLoss"`
	BalanceSheet  json.RawMessage `json:"balanceSheet"`
	CashFlow      json.RawMessage `json:"cashFlow"`
}
