package upload

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "character-companion/backend/pkg/errors"
)

type fakeSigner struct {
	calls []string
	err   error
}

func (f *fakeSigner) Mint(_ context.Context, key string) (string, error) {
	f.calls = append(f.calls, key)
	if f.err != nil {
		return "", f.err
	}
	return "https://content.s3.us-west-1.amazonaws.com/" + key + "?signature=abc", nil
}

func TestRequestTicketMintsFreshKey(t *testing.T) {
	signer := &fakeSigner{}
	coord := NewCoordinator(signer)

	ticket, err := coord.RequestTicket(context.Background(), 42)
	require.NoError(t, err)
	require.NotEmpty(t, ticket.Key)
	assert.Contains(t, ticket.URL, ticket.Key)
	require.Len(t, signer.calls, 1)
	assert.Equal(t, ticket.Key, signer.calls[0])
}

func TestRequestTicketNeverReusesKeys(t *testing.T) {
	signer := &fakeSigner{}
	coord := NewCoordinator(signer)

	first, err := coord.RequestTicket(context.Background(), 42)
	require.NoError(t, err)
	second, err := coord.RequestTicket(context.Background(), 42)
	require.NoError(t, err)

	assert.NotEqual(t, first.Key, second.Key)
	assert.NotEqual(t, first.URL, second.URL)
}

func TestRequestTicketUnauthenticated(t *testing.T) {
	signer := &fakeSigner{}
	coord := NewCoordinator(signer)

	_, err := coord.RequestTicket(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthenticated))
	assert.Empty(t, signer.calls, "unauthenticated request must not reach the signer")
}

func TestRequestTicketSigningFailure(t *testing.T) {
	signer := &fakeSigner{err: errors.New("provider unavailable")}
	coord := NewCoordinator(signer)

	_, err := coord.RequestTicket(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSigningFailed))
	assert.True(t, apperrors.FromError(err).Retryable())
	assert.False(t, apperrors.HasCode(err, apperrors.CodeUnauthenticated))
}
