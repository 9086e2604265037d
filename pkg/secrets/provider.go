package secrets

import "context"

// Provider fetches secret material for the connector, such as the Intuit
// OAuth app's client id and secret.
type Provider interface {
	// GetSecret retrieves a secret by name and returns its JSON fields as a map.
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}
