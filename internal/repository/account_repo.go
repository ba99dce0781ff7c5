package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tutormula/internal/database"
	"tutormula/internal/models"
)

// AccountRepository handles database operations for accounts and their roles
type AccountRepository struct {
	db database.DBTX
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db database.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = "id, external_id, full_name, phone, created_at, updated_at"

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	var phone sql.NullString
	if err := row.Scan(&a.ID, &a.ExternalID, &a.FullName, &phone, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Phone = phone.String
	return &a, nil
}

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, externalID int64, fullName, phone string) (*models.Account, error) {
	ts := now()
	query := `
		INSERT INTO accounts (external_id, full_name, phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningIDContext(ctx, query, externalID, fullName, nullIfEmpty(phone), ts, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return &models.Account{
		ID:         id,
		ExternalID: externalID,
		FullName:   fullName,
		Phone:      phone,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}, nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

// GetByExternalID retrieves an account by its chat identity
func (r *AccountRepository) GetByExternalID(ctx context.Context, externalID int64) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE external_id = ?", externalID)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by external id: %w", err)
	}
	return a, nil
}

// UpdateContact overwrites name and phone
func (r *AccountRepository) UpdateContact(ctx context.Context, id int64, fullName, phone string) error {
	query := "UPDATE accounts SET full_name = ?, phone = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, fullName, nullIfEmpty(phone), now(), id); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

// InsertRole assigns role to the account; an existing pair is left untouched
func (r *AccountRepository) InsertRole(ctx context.Context, accountID int64, role models.RoleKind) error {
	query := r.db.GetDialect().InsertRoleIgnore()
	if _, err := r.db.ExecContext(ctx, query, accountID, string(role), now()); err != nil {
		return fmt.Errorf("failed to insert role: %w", err)
	}
	return nil
}

// GetRole retrieves one role assignment
func (r *AccountRepository) GetRole(ctx context.Context, accountID int64, role models.RoleKind) (*models.Role, error) {
	query := "SELECT id, account_id, role, created_at FROM roles WHERE account_id = ? AND role = ?"
	var out models.Role
	var kind string
	err := r.db.QueryRowContext(ctx, query, accountID, string(role)).Scan(&out.ID, &out.AccountID, &kind, &out.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	out.Role = models.RoleKind(kind)
	return &out, nil
}

// RolesFor returns every role held by the account
func (r *AccountRepository) RolesFor(ctx context.Context, accountID int64) (models.RoleSet, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT role FROM roles WHERE account_id = ?", accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	set := models.NewRoleSet()
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		set[models.RoleKind(role)] = struct{}{}
	}
	return set, rows.Err()
}

// CountRoles counts rows for (account, role); anything above one is a broken invariant
func (r *AccountRepository) CountRoles(ctx context.Context, accountID int64, role models.RoleKind) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles WHERE account_id = ? AND role = ?", accountID, string(role)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count roles: %w", err)
	}
	return count, nil
}

// ListByRole returns accounts holding role, oldest first
func (r *AccountRepository) ListByRole(ctx context.Context, role models.RoleKind) ([]models.Account, error) {
	query := `
		SELECT a.id, a.external_id, a.full_name, a.phone, a.created_at, a.updated_at
		FROM accounts a
		INNER JOIN roles r ON r.account_id = a.id
		WHERE r.role = ?
		ORDER BY a.created_at ASC, a.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts by role: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// ListAll returns every account by ID
func (r *AccountRepository) ListAll(ctx context.Context) ([]models.Account, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// ListRoles returns every role assignment by ID
func (r *AccountRepository) ListRoles(ctx context.Context) ([]models.Role, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, account_id, role, created_at FROM roles ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		var kind string
		if err := rows.Scan(&role.ID, &role.AccountID, &kind, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		role.Role = models.RoleKind(kind)
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
