package quickbooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ErrorKind is the fixed taxonomy every failing QuickBooks call is mapped to.
type ErrorKind string

const (
	KindAuthentication ErrorKind = "Authentication"
	KindConnection     ErrorKind = "Connection"
	KindRateLimit      ErrorKind = "RateLimit"
	KindServerError    ErrorKind = "ServerError"
	KindInvalidRequest ErrorKind = "InvalidRequest"
	KindUnknown        ErrorKind = "Unknown"
)

// Guidance is the user-facing hint shown when a connectivity check fails.
func (k ErrorKind) Guidance() string {
	switch k {
	case KindAuthentication:
		return "Your QuickBooks authorization has expired or was revoked. Reconnect your QuickBooks account."
	case KindConnection:
		return "Could not reach QuickBooks. Check your network connection and try again."
	case KindRateLimit:
		return "QuickBooks is throttling requests. Wait a minute before trying again."
	case KindServerError:
		return "QuickBooks is having problems on their side. Try again later."
	case KindInvalidRequest:
		return "The request to QuickBooks was rejected. Check the selected dates and settings."
	default:
		return "An unexpected error occurred while talking to QuickBooks."
	}
}

// Error is a classified QuickBooks failure.
type Error struct {
	Kind    ErrorKind
	Status  int    // HTTP status, 0 for transport failures
	Code    string // vendor fault or OAuth error code
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("quickbooks ")
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil && e.Message == "" {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindForStatus maps an HTTP status to an error kind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuthentication
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindServerError
	case status >= 400:
		return KindInvalidRequest
	default:
		return KindUnknown
	}
}

// Classify returns err as a *Error, mapping unclassified errors by type.
// It returns nil for a nil err.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var qe *Error
	if errors.As(err, &qe) {
		return qe
	}
	return &Error{Kind: kindForTransport(err), Message: err.Error(), Err: err}
}

// KindOf returns the kind of err, or KindUnknown if err is unclassified.
func KindOf(err error) ErrorKind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindUnknown
}

func kindForTransport(err error) ErrorKind {
	var netErr net.Error
	var urlErr *url.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindConnection
	case errors.As(err, &urlErr), errors.As(err, &opErr), errors.As(err, &dnsErr), errors.As(err, &netErr):
		return KindConnection
	default:
		return KindUnknown
	}
}

// transportError wraps a network-level failure.
func transportError(err error) error {
	return &Error{Kind: KindConnection, Message: err.Error(), Err: err}
}

// fault is the error body returned by the accounting API.
type fault struct {
	Fault struct {
		Error []struct {
			Message string `json:"Message"`
			Detail  string `json:"Detail"`
			Code    string `json:"code"`
		} `json:"Error"`
		Type string `json:"type"`
	} `json:"Fault"`
}

// oauthError is the error body returned by the OAuth token endpoints.
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// apiError classifies a non-2xx accounting API response.
func apiError(status int, body []byte) error {
	e := &Error{Kind: KindForStatus(status), Status: status}

	var f fault
	if json.Unmarshal(body, &f) == nil && len(f.Fault.Error) > 0 {
		first := f.Fault.Error[0]
		e.Code = first.Code
		e.Message = first.Message
		if first.Detail != "" && first.Detail != first.Message {
			e.Message = strings.TrimSpace(e.Message + ": " + first.Detail)
		}
		return e
	}

	e.Message = fallbackMessage(status, body)
	return e
}

// oauthAPIError classifies a non-2xx token endpoint response. Grant and client
// errors mean the user must re-authorize, whatever the status code.
func oauthAPIError(status int, body []byte) error {
	e := &Error{Kind: KindForStatus(status), Status: status}

	var oe oauthError
	if json.Unmarshal(body, &oe) == nil && oe.Error != "" {
		e.Code = oe.Error
		e.Message = oe.ErrorDescription
		if e.Message == "" {
			e.Message = oe.Error
		}
		switch oe.Error {
		case "invalid_grant", "invalid_client", "unauthorized_client":
			e.Kind = KindAuthentication
		}
		return e
	}

	e.Message = fallbackMessage(status, body)
	return e
}

// maxFallbackMessage caps raw response text copied into an error message.
const maxFallbackMessage = 256

func fallbackMessage(status int, body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxFallbackMessage {
		cut := maxFallbackMessage
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return msg
}
