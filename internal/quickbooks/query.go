package quickbooks

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the only date format accepted for filters and report windows.
const DateLayout = "2006-01-02"

// ValidateDate returns an InvalidRequest error unless s is a YYYY-MM-DD date.
// An empty string is valid and means "no bound".
func ValidateDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return &Error{
			Kind:    KindInvalidRequest,
			Message: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s),
			Err:     err,
		}
	}
	return nil
}

// ValidateRange checks both bounds and that start is not after end.
func ValidateRange(start, end string) error {
	if err := ValidateDate(start); err != nil {
		return err
	}
	if err := ValidateDate(end); err != nil {
		return err
	}
	if start != "" && end != "" && start > end {
		return &Error{
			Kind:    KindInvalidRequest,
			Message: fmt.Sprintf("start date %s is after end date %s", start, end),
		}
	}
	return nil
}

// SelectAll builds an unfiltered query for entity.
func SelectAll(entity string) string {
	return "SELECT * FROM " + entity
}

// BuildTxnQuery builds a query for entity filtered on TxnDate. Each empty
// bound drops its clause; with neither bound there is no WHERE clause.
func BuildTxnQuery(entity, start, end string) (string, error) {
	if err := ValidateRange(start, end); err != nil {
		return "", err
	}

	var clauses []string
	if start != "" {
		clauses = append(clauses, fmt.Sprintf("TxnDate >= '%s'", start))
	}
	if end != "" {
		clauses = append(clauses, fmt.Sprintf("TxnDate <= '%s'", end))
	}

	q := SelectAll(entity)
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	return q, nil
}
