package api

import "github.com/Checker-Finance/qbo-connector/pkg/model"

// SyncRequest is the body of POST /sync.
type SyncRequest struct {
	SyncAccounts  bool   `json:"syncAccounts"`
	SyncCustomers bool   `json:"syncCustomers"`
	SyncInvoices  bool   `json:"syncInvoices"`
	SyncBills     bool   `json:"syncBills"`
	SyncPayments  bool   `json:"syncPayments"`
	SyncReports   bool   `json:"syncReports"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
}

func (r SyncRequest) toConfig() model.SyncConfig {
	return model.SyncConfig{
		SyncAccounts:  r.SyncAccounts,
		SyncCustomers: r.SyncCustomers,
		SyncInvoices:  r.SyncInvoices,
		SyncBills:     r.SyncBills,
		SyncPayments:  r.SyncPayments,
		SyncReports:   r.SyncReports,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
	}
}

// callbackParams are the query parameters Intuit sends to the redirect URI.
type callbackParams struct {
	Code    string
	State   string
	RealmID string
}
