package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/passpanel/internal/domain/model"
)

// Sentinel errors returned by CredentialStore implementations.
var (
	// ErrCredentialNotFound indicates no credential exists with the given ID.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrPersistence wraps an underlying write failure (constraint violation,
	// lost connection). The in-flight transaction has been rolled back.
	ErrPersistence = errors.New("persistence failure")
)

// CredentialStore defines the driven port for credential persistence. It is
// the only sanctioned access path to stored credentials.
//
// Create and Update return a *model.ValidationError without writing when a
// required field is empty. Update and Delete return ErrCredentialNotFound
// when no row matches the ID.
type CredentialStore interface {
	Create(ctx context.Context, cred model.Credential) (model.Credential, error)
	Get(ctx context.Context, id int64) (model.Credential, error)
	Search(ctx context.Context, criteria model.SearchCriteria) ([]model.Credential, error)
	Update(ctx context.Context, id int64, changes model.Changes) error
	Delete(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]model.Credential, error)
}
