package api

import (
	"time"

	"github.com/Checker-Finance/qbo-connector/pkg/model"
)

// ErrorResponse is the JSON body of every non-redirect failure.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// DisconnectResponse reports a disconnect. Warning is set when Intuit could
// not be told to revoke the token but local state was still cleared.
type DisconnectResponse struct {
	Disconnected bool   `json:"disconnected"`
	RealmID      string `json:"realmId"`
	Warning      string `json:"warning,omitempty"`
}

// SnapshotResponse is the body of GET /sync/latest.
type SnapshotResponse struct {
	RealmID    string         `json:"realmId"`
	CapturedAt time.Time      `json:"capturedAt"`
	Data       map[string]any `json:"data"`
}

func toSnapshotResponse(s *model.Snapshot) SnapshotResponse {
	return SnapshotResponse{RealmID: s.RealmID, CapturedAt: s.CapturedAt, Data: s.Data}
}
