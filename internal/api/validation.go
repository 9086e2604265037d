package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Checker-Finance/qbo-connector/internal/quickbooks"
)

// Validate checks the date window of a sync request.
func (r *SyncRequest) Validate() error {
	if err := quickbooks.ValidateRange(r.StartDate, r.EndDate); err != nil {
		if qe := quickbooks.Classify(err); qe.Message != "" {
			return errors.New(qe.Message)
		}
		return err
	}
	return nil
}

// Validate reports every missing callback parameter at once.
func (p callbackParams) Validate() error {
	var missing []string
	if p.Code == "" {
		missing = append(missing, "code")
	}
	if p.State == "" {
		missing = append(missing, "state")
	}
	if p.RealmID == "" {
		missing = append(missing, "realmId")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required parameter(s): %s", strings.Join(missing, ", "))
	}
	return nil
}
