package syncer

import (
	"github.com/Checker-Finance/qbo-connector/internal/quickbooks"
	"github.com/Checker-Finance/qbo-connector/pkg/model"
)

// subtotal lines repeat the document total and are not real line items.
const subTotalLineDetail = "SubTotalLineDetail"

// Every normalizer returns a non-nil slice so an absent vendor collection
// serializes as [] rather than null.

func NormalizeAccounts(in []quickbooks.Account) []model.Account {
	out := make([]model.Account, 0, len(in))
	for _, a := range in {
		out = append(out, model.Account{
			ID:             a.ID,
			Name:           a.Name,
			AccountType:    a.AccountType,
			AccountSubType: a.AccountSubType,
			CurrentBalance: a.CurrentBalance,
			Active:         a.Active,
		})
	}
	return out
}

func NormalizeCustomers(in []quickbooks.Customer) []model.Customer {
	out := make([]model.Customer, 0, len(in))
	for _, c := range in {
		rec := model.Customer{
			ID:          c.ID,
			DisplayName: c.DisplayName,
			CompanyName: c.CompanyName,
			Balance:     c.Balance,
			Active:      c.Active,
		}
		if c.PrimaryEmailAddr != nil && c.PrimaryEmailAddr.Address != "" {
			email := c.PrimaryEmailAddr.Address
			rec.PrimaryEmail = &email
		}
		if c.PrimaryPhone != nil && c.PrimaryPhone.FreeFormNumber != "" {
			phone := c.PrimaryPhone.FreeFormNumber
			rec.PrimaryPhone = &phone
		}
		out = append(out, rec)
	}
	return out
}

func NormalizeInvoices(in []quickbooks.Invoice) []model.Invoice {
	out := make([]model.Invoice, 0, len(in))
	for _, inv := range in {
		out = append(out, model.Invoice{
			ID:           inv.ID,
			CustomerID:   inv.CustomerRef.Value,
			CustomerName: inv.CustomerRef.Name,
			TxnDate:      inv.TxnDate,
			DueDate:      inv.DueDate,
			TotalAmount:  inv.TotalAmt,
			Balance:      inv.Balance,
			Status:       model.InvoiceStatus(inv.Balance, inv.TotalAmt),
			LineItems:    invoiceLines(inv.Line),
		})
	}
	return out
}

func invoiceLines(lines []quickbooks.Line) []model.LineItem {
	out := make([]model.LineItem, 0, len(lines))
	for _, l := range lines {
		if l.DetailType == subTotalLineDetail {
			continue
		}
		item := model.LineItem{Description: l.Description, Amount: l.Amount}
		if d := l.SalesItemLineDetail; d != nil {
			item.Quantity = d.Qty
			item.UnitPrice = d.UnitPrice
		}
		out = append(out, item)
	}
	return out
}

func NormalizeBills(in []quickbooks.Bill) []model.Bill {
	out := make([]model.Bill, 0, len(in))
	for _, b := range in {
		lines := make([]model.LineItem, 0, len(b.Line))
		for _, l := range b.Line {
			lines = append(lines, model.LineItem{Description: l.Description, Amount: l.Amount})
		}
		out = append(out, model.Bill{
			ID:          b.ID,
			VendorID:    b.VendorRef.Value,
			VendorName:  b.VendorRef.Name,
			TxnDate:     b.TxnDate,
			DueDate:     b.DueDate,
			TotalAmount: b.TotalAmt,
			Balance:     b.Balance,
			Status:      model.BillStatus(b.Balance),
			LineItems:   lines,
		})
	}
	return out
}

func NormalizePayments(in []quickbooks.Payment) []model.Payment {
	out := make([]model.Payment, 0, len(in))
	for _, p := range in {
		rec := model.Payment{
			ID:           p.ID,
			CustomerID:   p.CustomerRef.Value,
			CustomerName: p.CustomerRef.Name,
			TxnDate:      p.TxnDate,
			Amount:       p.TotalAmt,
		}
		if p.PaymentMethodRef != nil {
			rec.PaymentMethodName = p.PaymentMethodRef.Name
		}
		out = append(out, rec)
	}
	return out
}
