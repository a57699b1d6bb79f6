package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/civicworks/volunteerhub/internal/models"
)

type sqliteOrgRepo struct {
	db dbtx
}

const orgColumns = `id, name, description, website, created_at, updated_at`

func (r *sqliteOrgRepo) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (` + orgColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		org.ID, org.Name, org.Description, org.Website,
		org.CreatedAt, org.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert organization: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func scanOrg(row interface{ Scan(...any) error }) (*models.Organization, error) {
	org := &models.Organization{}
	var description, website sql.NullString
	err := row.Scan(
		&org.ID, &org.Name, &description, &website,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	org.Description = description.String
	org.Website = website.String
	return org, nil
}

func (r *sqliteOrgRepo) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE id = ?`
	org, err := scanOrg(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization by id: %w", err)
	}
	return org, nil
}

func (r *sqliteOrgRepo) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE name = ?`
	org, err := scanOrg(r.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization by name: %w", err)
	}
	return org, nil
}

func (r *sqliteOrgRepo) Update(ctx context.Context, org *models.Organization) error {
	query := `
		UPDATE organizations SET name = ?, description = ?, website = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		org.Name, org.Description, org.Website, org.UpdatedAt, org.ID,
	)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("organization not found: %s", org.ID)
	}
	return nil
}

func (r *sqliteOrgRepo) List(ctx context.Context) ([]*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (r *sqliteOrgRepo) AddMember(ctx context.Context, orgID, userID string, role models.OrgRole) error {
	query := `
		INSERT INTO organization_members (organization_id, user_id, role)
		VALUES (?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, orgID, userID, role)
	if isUniqueViolation(err) {
		return fmt.Errorf("add organization member: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("add organization member: %w", err)
	}
	return nil
}

func (r *sqliteOrgRepo) RemoveMember(ctx context.Context, orgID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM organization_members WHERE organization_id = ? AND user_id = ?",
		orgID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove organization member: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user not in organization")
	}
	return nil
}

func (r *sqliteOrgRepo) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM organization_members WHERE organization_id = ? AND user_id = ?",
		orgID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check organization membership: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteOrgRepo) ListMemberIDs(ctx context.Context, orgID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id FROM organization_members WHERE organization_id = ?",
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list organization members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
