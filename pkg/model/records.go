package model

import "github.com/shopspring/decimal"

// Invoice and bill statuses derived from balance and total.
const (
	StatusPaid    = "Paid"
	StatusUnpaid  = "Unpaid"
	StatusPartial = "Partial"
)

type Account struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	AccountType    string          `json:"accountType"`
	AccountSubType string          `json:"accountSubType"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	Active         bool            `json:"active"`
}

type Customer struct {
	ID           string          `json:"id"`
	DisplayName  string          `json:"displayName"`
	CompanyName  string          `json:"companyName"`
	PrimaryEmail *string         `json:"primaryEmail,omitempty"`
	PrimaryPhone *string         `json:"primaryPhone,omitempty"`
	Balance      decimal.Decimal `json:"balance"`
	Active       bool            `json:"active"`
}

// LineItem is a flattened invoice or bill line. Bills carry no quantity or unit price.
type LineItem struct {
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unitPrice,omitempty"`
}

type Invoice struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customerId"`
	CustomerName string          `json:"customerName"`
	TxnDate      string          `json:"txnDate"`
	DueDate      string          `json:"dueDate"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Balance      decimal.Decimal `json:"balance"`
	Status       string          `json:"status"`
	LineItems    []LineItem      `json:"lineItems"`
}

type Bill struct {
	ID          string          `json:"id"`
	VendorID    string          `json:"vendorId"`
	VendorName  string          `json:"vendorName"`
	TxnDate     string          `json:"txnDate"`
	DueDate     string          `json:"dueDate"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Balance     decimal.Decimal `json:"balance"`
	Status      string          `json:"status"`
	LineItems   []LineItem      `json:"lineItems"`
}

type Payment struct {
	ID                string          `json:"id"`
	CustomerID        string          `json:"customerId"`
	CustomerName      string          `json:"customerName"`
	TxnDate           string          `json:"txnDate"`
	Amount            decimal.Decimal `json:"amount"`
	PaymentMethodName string          `json:"paymentMethodName"`
}

// InvoiceStatus is Paid at zero balance, Unpaid when nothing has been paid,
// Partial otherwise.
func InvoiceStatus(balance, total decimal.Decimal) string {
	switch {
	case balance.IsZero():
		return StatusPaid
	case balance.Equal(total):
		return StatusUnpaid
	default:
		return StatusPartial
	}
}

// BillStatus has no partial state.
func BillStatus(balance decimal.Decimal) string {
	if balance.IsZero() {
		return StatusPaid
	}
	return StatusUnpaid
}
