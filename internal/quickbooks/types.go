package quickbooks

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/qbo-connector/pkg/model"
)

//
// ────────────────────────────────────────────────
//   OAuth
// ────────────────────────────────────────────────
//

// TokenResponse is returned by the bearer token endpoint for both the
// authorization-code and refresh-token grants.
type TokenResponse struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	TokenType             string `json:"token_type"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshTokenExpiresIn int64  `json:"x_refresh_token_expires_in"`
	IDToken               string `json:"id_token,omitempty"`
}

// Bundle converts the response into a credential bundle issued at issuedAt.
func (t TokenResponse) Bundle(realmID string, issuedAt time.Time) model.CredentialBundle {
	return model.NewCredentialBundle(t.AccessToken, t.RefreshToken, realmID, t.ExpiresIn, t.RefreshTokenExpiresIn, issuedAt)
}

//
// ────────────────────────────────────────────────
//   Accounting API entities
// ────────────────────────────────────────────────
//
// Only the fields the connector reads are declared. Absent fields decode to
// zero values and absent collections to nil slices.

// Ref is a QBO entity reference such as CustomerRef or VendorRef.
type Ref struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

type EmailAddress struct {
	Address string `json:"Address"`
}

type PhoneNumber struct {
	FreeFormNumber string `json:"FreeFormNumber"`
}

type CompanyInfo struct {
	ID          string        `json:"Id"`
	CompanyName string        `json:"CompanyName"`
	LegalName   string        `json:"LegalName"`
	Country     string        `json:"Country"`
	Email       *EmailAddress `json:"Email,omitempty"`
	FiscalYear  string        `json:"FiscalYearStartMonth"`
}

type companyInfoResponse struct {
	CompanyInfo CompanyInfo `json:"CompanyInfo"`
}

type Account struct {
	ID             string          `json:"Id"`
	Name           string          `json:"Name"`
	AccountType    string          `json:"AccountType"`
	AccountSubType string          `json:"AccountSubType"`
	CurrentBalance decimal.Decimal `json:"CurrentBalance"`
	Active         bool            `json:"Active"`
}

type Customer struct {
	ID               string          `json:"Id"`
	DisplayName      string          `json:"DisplayName"`
	CompanyName      string          `json:"CompanyName"`
	PrimaryEmailAddr *EmailAddress   `json:"PrimaryEmailAddr,omitempty"`
	PrimaryPhone     *PhoneNumber    `json:"PrimaryPhone,omitempty"`
	Balance          decimal.Decimal `json:"Balance"`
	Active           bool            `json:"Active"`
}

// SalesItemLineDetail carries quantity and unit price on invoice lines.
type SalesItemLineDetail struct {
	ItemRef   *Ref             `json:"ItemRef,omitempty"`
	Qty       *decimal.Decimal `json:"Qty,omitempty"`
	UnitPrice *decimal.Decimal `json:"UnitPrice,omitempty"`
}

// Line is an invoice or bill line.
type Line struct {
	ID                  string               `json:"Id"`
	Description         string               `json:"Description"`
	Amount              decimal.Decimal      `json:"Amount"`
	DetailType          string               `json:"DetailType"`
	SalesItemLineDetail *SalesItemLineDetail `json:"SalesItemLineDetail,omitempty"`
}

type Invoice struct {
	ID          string          `json:"Id"`
	DocNumber   string          `json:"DocNumber"`
	CustomerRef Ref             `json:"CustomerRef"`
	TxnDate     string          `json:"TxnDate"`
	DueDate     string          `json:"DueDate"`
	TotalAmt    decimal.Decimal `json:"TotalAmt"`
	Balance     decimal.Decimal `json:"Balance"`
	Line        []Line          `json:"Line"`
}

type Bill struct {
	ID        string          `json:"Id"`
	VendorRef Ref             `json:"VendorRef"`
	TxnDate   string          `json:"TxnDate"`
	DueDate   string          `json:"DueDate"`
	TotalAmt  decimal.Decimal `json:"TotalAmt"`
	Balance   decimal.Decimal `json:"Balance"`
	Line      []Line          `json:"Line"`
}

type Payment struct {
	ID               string          `json:"Id"`
	CustomerRef      Ref             `json:"CustomerRef"`
	TxnDate          string          `json:"TxnDate"`
	TotalAmt         decimal.Decimal `json:"TotalAmt"`
	PaymentMethodRef *Ref            `json:"PaymentMethodRef,omitempty"`
}

// queryResponse is the envelope of GET /query. Only the collection matching
// the queried entity is populated.
type queryResponse struct {
	QueryResponse struct {
		Account       []Account  `json:"Account"`
		Customer      []Customer `json:"Customer"`
		Invoice       []Invoice  `json:"Invoice"`
		Bill          []Bill     `json:"Bill"`
		Payment       []Payment  `json:"Payment"`
		StartPosition int        `json:"startPosition"`
		MaxResults    int        `json:"maxResults"`
	} `json:"QueryResponse"`
	Time string `json:"time"`
}
