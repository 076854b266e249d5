package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/passpanel/internal/domain/model"
	"github.com/ericfisherdev/passpanel/internal/domain/port/driven"
)

func makeCredential(name, username string) model.Credential {
	return model.Credential{
		WebsiteName:     name,
		WebsiteLink:     "https://" + name + ".example",
		Username:        username,
		Password:        "pw-" + username,
		SupervisedEmail: username + "@mail.example",
		SupervisedPhone: "+1 555 0100",
		AuthReference:   "totp",
		Status:          model.StatusActive,
		Description:     "notes for " + name,
	}
}

func countRows(t *testing.T, repo *CredentialRepo) int {
	t.Helper()
	all, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	return len(all)
}

func TestCredentialRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, makeCredential("Google", "alice"))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, "Google", got.WebsiteName)
	assert.Equal(t, "pw-alice", got.Password)
	assert.Equal(t, model.StatusActive, got.Status)
}

func TestCredentialRepo_CreateDefaultsStatusAndTrims(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	cred := makeCredential("GitHub", "bob")
	cred.WebsiteName = "  GitHub  "
	cred.Status = ""

	created, err := repo.Create(ctx, cred)
	require.NoError(t, err)
	assert.Equal(t, "GitHub", created.WebsiteName)
	assert.Equal(t, model.StatusActive, created.Status)
}

func TestCredentialRepo_CreateRejectsEmptyRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		field model.Field
	}{
		{"website name", model.FieldWebsiteName},
		{"website link", model.FieldWebsiteLink},
		{"username", model.FieldUsername},
		{"password", model.FieldPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			repo := NewCredentialRepo(db)
			ctx := context.Background()

			_, err := repo.Create(ctx, makeCredential("Seed", "seed"))
			require.NoError(t, err)

			cred := makeCredential("Broken", "carol")
			switch tt.field {
			case model.FieldWebsiteName:
				cred.WebsiteName = ""
			case model.FieldWebsiteLink:
				cred.WebsiteLink = ""
			case model.FieldUsername:
				cred.Username = ""
			case model.FieldPassword:
				cred.Password = ""
			}

			_, err = repo.Create(ctx, cred)
			var verr *model.ValidationError
			require.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
			assert.Equal(t, []model.Field{tt.field}, verr.Fields())
			assert.Equal(t, 1, countRows(t, repo), "no row may be written")
		})
	}
}

func TestCredentialRepo_GetNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	_, err := repo.Get(context.Background(), 404)
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_SearchByWebsiteName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	want, err := repo.Create(ctx, makeCredential("Google", "alice"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, makeCredential("Amazon", "bob"))
	require.NoError(t, err)

	got, err := repo.Search(ctx, model.SearchCriteria{WebsiteName: "Google"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func TestCredentialRepo_SearchTermIsCaseInsensitiveSubstring(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, makeCredential("Google", "alice"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, makeCredential("Amazon", "bob"))
	require.NoError(t, err)

	got, err := repo.Search(ctx, model.SearchCriteria{Term: "goog"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Google", got[0].WebsiteName)

	// Term also matches username, supervised email and phone.
	got, err = repo.Search(ctx, model.SearchCriteria{Term: "BOB@MAIL"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Amazon", got[0].WebsiteName)

	got, err = repo.Search(ctx, model.SearchCriteria{Term: "555 0100"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCredentialRepo_SearchFoldsNonASCIICase(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, makeCredential("Übersetzer", "ünal"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, makeCredential("Amazon", "bob"))
	require.NoError(t, err)

	got, err := repo.Search(ctx, model.SearchCriteria{Term: "übers"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Übersetzer", got[0].WebsiteName)

	got, err = repo.Search(ctx, model.SearchCriteria{Username: "ÜNAL"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ünal", got[0].Username)
}

func TestCredentialRepo_SearchCombinesFiltersWithAnd(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, makeCredential("Google", "alice"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, makeCredential("Google", "bob"))
	require.NoError(t, err)
	onHold := makeCredential("Gmail", "alice")
	onHold.Status = model.StatusOnHold
	_, err = repo.Create(ctx, onHold)
	require.NoError(t, err)

	got, err := repo.Search(ctx, model.SearchCriteria{WebsiteName: "goo", Username: "alice"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Username)
	assert.Equal(t, "Google", got[0].WebsiteName)

	got, err = repo.Search(ctx, model.SearchCriteria{Username: "alice", Status: model.StatusOnHold})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Gmail", got[0].WebsiteName)

	got, err = repo.Search(ctx, model.SearchCriteria{Term: "g", Username: "bob"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].Username)
}

func TestCredentialRepo_SearchOrderedByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	for _, name := range []string{"Zeta", "Alpha", "Mid"} {
		_, err := repo.Create(ctx, makeCredential(name, "user"))
		require.NoError(t, err)
	}

	got, err := repo.Search(ctx, model.SearchCriteria{Username: "user"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Zeta", got[0].WebsiteName)
	assert.Equal(t, "Alpha", got[1].WebsiteName)
	assert.Equal(t, "Mid", got[2].WebsiteName)
}

func TestCredentialRepo_SearchEmptyCriteriaReturnsNothing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, makeCredential("Google", "alice"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := repo.Search(ctx, model.SearchCriteria{Term: "  "})
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestCredentialRepo_SearchEscapesWildcards(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, makeCredential("100% Pure", "alice"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, makeCredential("1000 Words", "bob"))
	require.NoError(t, err)

	got, err := repo.Search(ctx, model.SearchCriteria{Term: "100%"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "100% Pure", got[0].WebsiteName)

	got, err = repo.Search(ctx, model.SearchCriteria{Term: "_"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCredentialRepo_UpdateChangesOnlyGivenFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, makeCredential("Google", "alice"))
	require.NoError(t, err)

	err = repo.Update(ctx, created.ID, model.Changes{model.FieldPassword: "rotated"})
	require.NoError(t, err)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)

	want := created
	want.Password = "rotated"
	assert.Equal(t, want, got)
}

func TestCredentialRepo_UpdateCanonicalizesStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, makeCredential("Google", "alice"))
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, created.ID, model.Changes{model.FieldStatus: "on hold"}))

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnHold, got.Status)
}

func TestCredentialRepo_UpdateRejectsEmptyRequired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, makeCredential("Google", "alice"))
	require.NoError(t, err)

	err = repo.Update(ctx, created.ID, model.Changes{model.FieldUsername: "", model.FieldDescription: "x"})
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got, "row must be unchanged")
}

func TestCredentialRepo_UpdateNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	err := repo.Update(ctx, 99, model.Changes{model.FieldPassword: "x"})
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)

	err = repo.Update(ctx, 99, model.Changes{})
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_UpdateFailureRollsBack(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, makeCredential("Google", "alice"))
	require.NoError(t, err)

	// Make the UPDATE statement itself fail inside the transaction.
	_, err = db.Writer.ExecContext(ctx, `CREATE TRIGGER reject_update BEFORE UPDATE ON credentials
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	err = repo.Update(ctx, created.ID, model.Changes{model.FieldPassword: "new"})
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrPersistence)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "pw-alice", got.Password)
}

func TestCredentialRepo_DeleteThenSearch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, makeCredential("Google", "alice"))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))

	got, err := repo.Search(ctx, model.SearchCriteria{WebsiteName: "Google"})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = repo.Get(ctx, created.ID)
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_DeleteNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	err := repo.Delete(context.Background(), 12345)
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_ListAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = repo.Create(ctx, makeCredential("Google", "alice"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, makeCredential("Google", "alice"))
	require.NoError(t, err, "duplicate website names are allowed; identity is the ID")

	all, err = repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Less(t, all[0].ID, all[1].ID)
}

func TestCredentialRepo_ExampleScenario(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, model.Credential{
		WebsiteName: "Example",
		WebsiteLink: "https://example.com",
		Username:    "u1",
		Password:    "p1",
		Status:      model.StatusActive,
	})
	require.NoError(t, err)

	got, err := repo.Search(ctx, model.SearchCriteria{Term: "example"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].Username)

	require.NoError(t, repo.Delete(ctx, got[0].ID))

	got, err = repo.Search(ctx, model.SearchCriteria{Term: "example"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, RunMigrations(db))
	require.NoError(t, RunMigrations(db))
}
