// Package upload coordinates direct-to-storage image uploads. The server
// never touches file bytes: callers receive a single-use signed PUT URL and
// upload straight to the bucket. The resize pipeline later derives the sized
// variants the asset locator resolves.
package upload

import (
	"context"

	"github.com/google/uuid"

	apperrors "character-companion/backend/pkg/errors"
)

// SigningService mints a time-limited, single-use PUT URL scoped to one
// object key. Implementations talk to the storage provider; tests use fakes.
type SigningService interface {
	Mint(ctx context.Context, key string) (string, error)
}

// Ticket is a one-shot write credential. It is consumed by exactly one
// upload attempt; a failed PUT requires a brand-new ticket.
type Ticket struct {
	Key string `json:"imageId"`
	URL string `json:"fileUploadUrl"`
}

// Coordinator requests upload tickets on behalf of authenticated callers.
type Coordinator struct {
	signer SigningService
}

// NewCoordinator creates a coordinator backed by the given signer.
func NewCoordinator(signer SigningService) *Coordinator {
	return &Coordinator{signer: signer}
}

// RequestTicket allocates a fresh key and asks the signer for a PUT URL.
// userID zero means no authenticated identity: the call fails before any
// storage interaction. Signing failures are retryable and distinct from
// authentication failures.
func (c *Coordinator) RequestTicket(ctx context.Context, userID uint) (*Ticket, error) {
	if userID == 0 {
		return nil, apperrors.NewUnauthenticatedError("an authenticated identity is required to upload")
	}

	key := uuid.NewString()
	url, err := c.signer.Mint(ctx, key)
	if err != nil {
		return nil, apperrors.NewSigningFailedError("could not mint an upload URL").WithDetails(err.Error())
	}

	return &Ticket{Key: key, URL: url}, nil
}
