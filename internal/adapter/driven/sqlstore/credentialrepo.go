package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ericfisherdev/passpanel/internal/domain/model"
	"github.com/ericfisherdev/passpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

const selectCredentials = `SELECT id, website_name, website_link, username, password, supervised_email,
	supervised_phone, auth_reference, status, description, created_at FROM credentials`

// credentialRow mirrors a credentials table row for sqlx struct scanning.
// created_at is scanned as text because SQLite stores it as TEXT while
// PostgreSQL returns a timestamp; parseTime accepts both renderings.
type credentialRow struct {
	ID              int64  `db:"id"`
	WebsiteName     string `db:"website_name"`
	WebsiteLink     string `db:"website_link"`
	Username        string `db:"username"`
	Password        string `db:"password"`
	SupervisedEmail string `db:"supervised_email"`
	SupervisedPhone string `db:"supervised_phone"`
	AuthReference   string `db:"auth_reference"`
	Status          string `db:"status"`
	Description     string `db:"description"`
	CreatedAt       string `db:"created_at"`
}

func (row credentialRow) toModel() (model.Credential, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return model.Credential{}, fmt.Errorf("parse created_at for credential %d: %w", row.ID, err)
	}
	return model.Credential{
		ID:              row.ID,
		WebsiteName:     row.WebsiteName,
		WebsiteLink:     row.WebsiteLink,
		Username:        row.Username,
		Password:        row.Password,
		SupervisedEmail: row.SupervisedEmail,
		SupervisedPhone: row.SupervisedPhone,
		AuthReference:   row.AuthReference,
		Status:          model.Status(row.Status),
		Description:     row.Description,
		CreatedAt:       createdAt,
	}, nil
}

// CredentialRepo is the SQL implementation of the CredentialStore port interface.
// Every mutation runs in its own transaction and commits before returning.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// Create validates and inserts a credential, returning it with ID and
// CreatedAt populated. Nothing is written when validation fails.
func (r *CredentialRepo) Create(ctx context.Context, cred model.Credential) (model.Credential, error) {
	cred.Normalize()
	if err := cred.Validate(); err != nil {
		return model.Credential{}, err
	}

	fields := model.Fields()
	columns := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		columns = append(columns, f.Column())
		args = append(args, f.Get(cred))
	}

	query := r.db.Writer.Rebind(fmt.Sprintf(
		`INSERT INTO credentials (%s) VALUES (%s) RETURNING id, created_at`,
		strings.Join(columns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
	))

	tx, err := r.db.Writer.BeginTxx(ctx, nil)
	if err != nil {
		return model.Credential{}, fmt.Errorf("begin transaction: %w: %w", driven.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	var createdAt string
	if err := tx.QueryRowxContext(ctx, query, args...).Scan(&cred.ID, &createdAt); err != nil {
		return model.Credential{}, fmt.Errorf("create credential %q: %w: %w", cred.WebsiteName, driven.ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Credential{}, fmt.Errorf("commit credential %q: %w: %w", cred.WebsiteName, driven.ErrPersistence, err)
	}

	cred.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return model.Credential{}, fmt.Errorf("parse created_at for credential %d: %w", cred.ID, err)
	}
	return cred, nil
}

// Get retrieves a credential by ID. Returns driven.ErrCredentialNotFound if no
// row matches.
func (r *CredentialRepo) Get(ctx context.Context, id int64) (model.Credential, error) {
	query := r.db.Reader.Rebind(selectCredentials + ` WHERE id = ?`)

	var row credentialRow
	err := r.db.Reader.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Credential{}, fmt.Errorf("get credential %d: %w", id, driven.ErrCredentialNotFound)
	}
	if err != nil {
		return model.Credential{}, fmt.Errorf("get credential %d: %w", id, err)
	}

	return row.toModel()
}

// Search returns credentials matching every non-empty filter in criteria,
// ordered by ID. Text filters are case-insensitive substring matches; Term
// matches website name, username, supervised email or supervised phone.
// Empty criteria match nothing.
func (r *CredentialRepo) Search(ctx context.Context, criteria model.SearchCriteria) ([]model.Credential, error) {
	if criteria.IsEmpty() {
		return nil, nil
	}

	var where []string
	var args []any

	if term := strings.TrimSpace(criteria.Term); term != "" {
		termColumns := []model.Field{
			model.FieldWebsiteName,
			model.FieldUsername,
			model.FieldSupervisedEmail,
			model.FieldSupervisedPhone,
		}
		ors := make([]string, 0, len(termColumns))
		for _, f := range termColumns {
			ors = append(ors, r.db.likeMatch(f.Column()))
			args = append(args, likePattern(term))
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	filters := []struct {
		field model.Field
		value string
	}{
		{model.FieldWebsiteName, criteria.WebsiteName},
		{model.FieldUsername, criteria.Username},
		{model.FieldSupervisedEmail, criteria.SupervisedEmail},
		{model.FieldSupervisedPhone, criteria.SupervisedPhone},
	}
	for _, flt := range filters {
		if v := strings.TrimSpace(flt.value); v != "" {
			where = append(where, r.db.likeMatch(flt.field.Column()))
			args = append(args, likePattern(v))
		}
	}

	if criteria.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(criteria.Status))
	}

	query := r.db.Reader.Rebind(selectCredentials + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`)
	return r.selectAll(ctx, "search credentials", query, args...)
}

// Update applies a partial update to the credential with the given ID. On any
// failure the transaction is rolled back and the row is left unchanged.
func (r *CredentialRepo) Update(ctx context.Context, id int64, changes model.Changes) error {
	if err := changes.Validate(); err != nil {
		return err
	}
	if len(changes) == 0 {
		_, err := r.Get(ctx, id)
		return err
	}

	// Setting onto a scratch credential canonicalizes values (trimmed, Status casing).
	var scratch model.Credential
	fields := changes.Fields()
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for _, f := range fields {
		if err := f.Set(&scratch, changes[f]); err != nil {
			return err
		}
		sets = append(sets, f.Column()+" = ?")
		args = append(args, f.Get(scratch))
	}
	args = append(args, id)

	query := r.db.Writer.Rebind(`UPDATE credentials SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)

	tx, err := r.db.Writer.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %w", driven.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update credential %d: %w: %w", id, driven.ErrPersistence, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w: %w", driven.ErrPersistence, err)
	}
	if rows == 0 {
		return fmt.Errorf("update credential %d: %w", id, driven.ErrCredentialNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credential %d: %w: %w", id, driven.ErrPersistence, err)
	}
	return nil
}

// Delete removes the credential with the given ID. Returns
// driven.ErrCredentialNotFound if no row matches.
func (r *CredentialRepo) Delete(ctx context.Context, id int64) error {
	query := r.db.Writer.Rebind(`DELETE FROM credentials WHERE id = ?`)

	tx, err := r.db.Writer.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %w", driven.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete credential %d: %w: %w", id, driven.ErrPersistence, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w: %w", driven.ErrPersistence, err)
	}
	if rows == 0 {
		return fmt.Errorf("delete credential %d: %w", id, driven.ErrCredentialNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete %d: %w: %w", id, driven.ErrPersistence, err)
	}
	return nil
}

// ListAll returns every credential ordered by ID.
func (r *CredentialRepo) ListAll(ctx context.Context) ([]model.Credential, error) {
	return r.selectAll(ctx, "list credentials", selectCredentials+` ORDER BY id`)
}

func (r *CredentialRepo) selectAll(ctx context.Context, op, query string, args ...any) ([]model.Credential, error) {
	var rows []credentialRow
	if err := r.db.Reader.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	creds := make([]model.Credential, 0, len(rows))
	for _, row := range rows {
		cred, err := row.toModel()
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

// likePattern escapes LIKE metacharacters in s and wraps it for substring matching.
func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}
