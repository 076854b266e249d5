package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/passpanel/internal/domain/model"
	"github.com/ericfisherdev/passpanel/internal/domain/port/driven"
)

// GridRow is one row of the bulk-edit table as submitted by the client. ID is
// zero for the blank row used to enter a new credential. Values holds only the
// cells present in the submission.
type GridRow struct {
	ID     int64
	Values map[model.Field]string
}

// IsBlank reports whether every submitted cell is empty.
func (r GridRow) IsBlank() bool {
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// GridResult counts the rows SaveGrid wrote.
type GridResult struct {
	Updated int
	Created int
}

// CredentialService is the use-case layer the driving adapters call. It
// depends only on the CredentialStore port.
type CredentialService struct {
	store  driven.CredentialStore
	logger *slog.Logger
}

// NewCredentialService creates a new CredentialService.
func NewCredentialService(store driven.CredentialStore) *CredentialService {
	return &CredentialService{
		store:  store,
		logger: slog.Default(),
	}
}

// Create stores a new credential and returns it with its ID assigned.
func (s *CredentialService) Create(ctx context.Context, cred model.Credential) (model.Credential, error) {
	cred.ID = 0
	cred.Normalize()
	if err := cred.Validate(); err != nil {
		return model.Credential{}, err
	}
	return s.store.Create(ctx, cred)
}

// Get returns the credential with the given ID.
func (s *CredentialService) Get(ctx context.Context, id int64) (model.Credential, error) {
	return s.store.Get(ctx, id)
}

// Search returns the credentials matching criteria. Empty criteria match nothing.
func (s *CredentialService) Search(ctx context.Context, criteria model.SearchCriteria) ([]model.Credential, error) {
	if criteria.IsEmpty() {
		return nil, nil
	}
	return s.store.Search(ctx, criteria)
}

// Update applies changes to the credential with the given ID.
func (s *CredentialService) Update(ctx context.Context, id int64, changes model.Changes) error {
	if err := changes.Validate(); err != nil {
		return err
	}
	return s.store.Update(ctx, id, changes)
}

// Delete removes the credential with the given ID.
func (s *CredentialService) Delete(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}

// ListAll returns every credential ordered by ID.
func (s *CredentialService) ListAll(ctx context.Context) ([]model.Credential, error) {
	return s.store.ListAll(ctx)
}

// SaveGrid reconciles an edited table against the snapshot it was rendered
// from. Rows are matched by ID, and each changed row gets one Update carrying
// only its changed cells. Rows without an ID that have any non-empty cell are
// created. Processing stops at the first failing row; rows before it stay written.
func (s *CredentialService) SaveGrid(ctx context.Context, snapshot []model.Credential, edited []GridRow) (GridResult, error) {
	byID := make(map[int64]model.Credential, len(snapshot))
	for _, c := range snapshot {
		byID[c.ID] = c
	}

	var result GridResult
	for _, row := range edited {
		if row.ID == 0 {
			if row.IsBlank() {
				continue
			}
			cred, err := credentialFromGrid(row)
			if err != nil {
				return result, fmt.Errorf("new row: %w", err)
			}
			created, err := s.Create(ctx, cred)
			if err != nil {
				return result, fmt.Errorf("new row: %w", err)
			}
			s.logger.Info("credential created from grid", "id", created.ID)
			result.Created++
			continue
		}

		before, ok := byID[row.ID]
		if !ok {
			return result, fmt.Errorf("row %d: %w", row.ID, driven.ErrCredentialNotFound)
		}

		changes := gridChanges(before, row)
		if len(changes) == 0 {
			continue
		}
		if err := s.Update(ctx, row.ID, changes); err != nil {
			return result, fmt.Errorf("row %d: %w", row.ID, err)
		}
		result.Updated++
	}

	return result, nil
}

// Export writes every credential to w in the CSV export format.
func (s *CredentialService) Export(ctx context.Context, w io.Writer) error {
	creds, err := s.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("export credentials: %w", err)
	}
	return WriteCSV(w, creds)
}

// gridChanges returns the cells of row whose canonical value differs from before.
// Status values are compared in canonical form so "active" does not count as
// an edit of "Active".
func gridChanges(before model.Credential, row GridRow) model.Changes {
	changes := model.Changes{}
	for f, v := range row.Values {
		if !f.Valid() || f.Canonical(v) != f.Canonical(f.Get(before)) {
			changes[f] = v
		}
	}
	return changes
}

func credentialFromGrid(row GridRow) (model.Credential, error) {
	changes := model.Changes{}
	for f, v := range row.Values {
		if strings.TrimSpace(v) != "" {
			changes[f] = v
		}
	}
	var cred model.Credential
	if err := changes.Apply(&cred); err != nil {
		return model.Credential{}, err
	}
	return cred, nil
}
