package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsManager struct {
	value *string
	err   error
	asked string
}

func (f *fakeSecretsManager) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = aws.ToString(in.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

func TestAWSProvider_GetSecret_DecodesJSON(t *testing.T) {
	fake := &fakeSecretsManager{value: aws.String(`{"client_id":"id-1","client_secret":"sec-1"}`)}
	p := NewAWSProviderWithClient(fake)

	got, err := p.GetSecret(context.Background(), "prod/quickbooks/oauth")
	require.NoError(t, err)
	assert.Equal(t, "prod/quickbooks/oauth", fake.asked)
	assert.Equal(t, "id-1", got["client_id"])
	assert.Equal(t, "sec-1", got["client_secret"])
}

func TestAWSProvider_GetSecret_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeSecretsManager
		wantErr string
	}{
		{"api failure", &fakeSecretsManager{err: errors.New("access denied")}, "failed to fetch secret"},
		{"binary secret", &fakeSecretsManager{}, "has no string value"},
		{"not json", &fakeSecretsManager{value: aws.String("plain")}, "invalid secret format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAWSProviderWithClient(tt.fake).GetSecret(context.Background(), "x")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
