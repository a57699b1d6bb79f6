package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/civicworks/volunteerhub/internal/models"
)

type sqliteProjectRepo struct {
	db dbtx
}

const projectColumns = `id, organization_id, name, short_summary, description, status,
	project_impact, scoping_process, available_staff, available_data,
	estimated_start_date, estimated_end_date, actual_start_date, actual_end_date,
	created_at, updated_at`

func (r *sqliteProjectRepo) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		project.ID, project.OrganizationID, project.Name, project.ShortSummary,
		project.Description, project.Status,
		project.ProjectImpact, project.ScopingProcess, project.AvailableStaff, project.AvailableData,
		project.EstimatedStartDate, project.EstimatedEndDate,
		project.ActualStartDate, project.ActualEndDate,
		project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	project := &models.Project{}
	var shortSummary, description, impact, scoping, staff, data sql.NullString
	var estStart, estEnd, actStart, actEnd sql.NullTime
	err := row.Scan(
		&project.ID, &project.OrganizationID, &project.Name, &shortSummary,
		&description, &project.Status,
		&impact, &scoping, &staff, &data,
		&estStart, &estEnd, &actStart, &actEnd,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	project.ShortSummary = shortSummary.String
	project.Description = description.String
	project.ProjectImpact = impact.String
	project.ScopingProcess = scoping.String
	project.AvailableStaff = staff.String
	project.AvailableData = data.String
	if estStart.Valid {
		project.EstimatedStartDate = &estStart.Time
	}
	if estEnd.Valid {
		project.EstimatedEndDate = &estEnd.Time
	}
	if actStart.Valid {
		project.ActualStartDate = &actStart.Time
	}
	if actEnd.Valid {
		project.ActualEndDate = &actEnd.Time
	}
	return project, nil
}

func (r *sqliteProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	project, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by id: %w", err)
	}
	return project, nil
}

func (r *sqliteProjectRepo) Update(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects
		SET name = ?, short_summary = ?, description = ?, status = ?,
		    project_impact = ?, scoping_process = ?, available_staff = ?, available_data = ?,
		    estimated_start_date = ?, estimated_end_date = ?,
		    actual_start_date = ?, actual_end_date = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		project.Name, project.ShortSummary, project.Description, project.Status,
		project.ProjectImpact, project.ScopingProcess, project.AvailableStaff, project.AvailableData,
		project.EstimatedStartDate, project.EstimatedEndDate,
		project.ActualStartDate, project.ActualEndDate, project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project not found: %s", project.ID)
	}
	return nil
}

func (r *sqliteProjectRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project not found: %s", id)
	}
	return nil
}

func (r *sqliteProjectRepo) list(ctx context.Context, where string, args ...any) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ` + where + ` ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// ListPublic returns projects visible in public listings. Draft, expired
// and deleted projects are excluded.
func (r *sqliteProjectRepo) ListPublic(ctx context.Context) ([]*models.Project, error) {
	return r.list(ctx, "WHERE status NOT IN (?, ?, ?)",
		models.ProjectDraft, models.ProjectExpired, models.ProjectDeleted)
}

func (r *sqliteProjectRepo) ListByOrganization(ctx context.Context, orgID string) ([]*models.Project, error) {
	return r.list(ctx, "WHERE organization_id = ?", orgID)
}

func (r *sqliteProjectRepo) ListDraftsOwnedBy(ctx context.Context, userID string) ([]*models.Project, error) {
	query := `
		SELECT ` + projectColumns + ` FROM projects
		WHERE status = ? AND id IN (
			SELECT project_id FROM project_roles WHERE user_id = ? AND role = ?
		)
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query, models.ProjectDraft, userID, models.ProjRoleOwner)
	if err != nil {
		return nil, fmt.Errorf("list draft projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (r *sqliteProjectRepo) AddRole(ctx context.Context, role *models.ProjectRole) error {
	query := `
		INSERT INTO project_roles (id, project_id, user_id, role)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, role.ID, role.ProjectID, role.UserID, role.Role)
	if isUniqueViolation(err) {
		return fmt.Errorf("add project role: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("add project role: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) GetRole(ctx context.Context, projectID, roleID string) (*models.ProjectRole, error) {
	role := &models.ProjectRole{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, project_id, user_id, role FROM project_roles WHERE id = ? AND project_id = ?",
		roleID, projectID,
	).Scan(&role.ID, &role.ProjectID, &role.UserID, &role.Role)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project role: %w", err)
	}
	return role, nil
}

func (r *sqliteProjectRepo) GetRoleByUser(ctx context.Context, projectID, userID string) (*models.ProjectRole, error) {
	role := &models.ProjectRole{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, project_id, user_id, role FROM project_roles WHERE project_id = ? AND user_id = ?",
		projectID, userID,
	).Scan(&role.ID, &role.ProjectID, &role.UserID, &role.Role)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project role by user: %w", err)
	}
	return role, nil
}

func (r *sqliteProjectRepo) UpdateRole(ctx context.Context, role *models.ProjectRole) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE project_roles SET role = ? WHERE id = ? AND project_id = ?",
		role.Role, role.ID, role.ProjectID,
	)
	if err != nil {
		return fmt.Errorf("update project role: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project role not found: %s", role.ID)
	}
	return nil
}

func (r *sqliteProjectRepo) DeleteRole(ctx context.Context, projectID, roleID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM project_roles WHERE id = ? AND project_id = ?",
		roleID, projectID,
	)
	if err != nil {
		return fmt.Errorf("delete project role: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project role not found: %s", roleID)
	}
	return nil
}

func (r *sqliteProjectRepo) ListRoles(ctx context.Context, projectID string) ([]*models.ProjectRole, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, project_id, user_id, role FROM project_roles WHERE project_id = ? ORDER BY role",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list project roles: %w", err)
	}
	defer rows.Close()

	var roles []*models.ProjectRole
	for rows.Next() {
		role := &models.ProjectRole{}
		if err := rows.Scan(&role.ID, &role.ProjectID, &role.UserID, &role.Role); err != nil {
			return nil, fmt.Errorf("scan project role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *sqliteProjectRepo) CountOwners(ctx context.Context, projectID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM project_roles WHERE project_id = ? AND role = ?",
		projectID, models.ProjRoleOwner,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count project owners: %w", err)
	}
	return count, nil
}

func (r *sqliteProjectRepo) listUserIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *sqliteProjectRepo) ListRoleUserIDs(ctx context.Context, projectID string) ([]string, error) {
	return r.listUserIDs(ctx,
		"SELECT user_id FROM project_roles WHERE project_id = ?", projectID)
}

func (r *sqliteProjectRepo) ListOwnerUserIDs(ctx context.Context, projectID string) ([]string, error) {
	return r.listUserIDs(ctx,
		"SELECT user_id FROM project_roles WHERE project_id = ? AND role = ?",
		projectID, models.ProjRoleOwner)
}

func (r *sqliteProjectRepo) AddFollower(ctx context.Context, projectID, userID string) error {
	query := `
		INSERT INTO project_followers (project_id, user_id, created_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
	`
	_, err := r.db.ExecContext(ctx, query, projectID, userID)
	if isUniqueViolation(err) {
		return fmt.Errorf("add project follower: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("add project follower: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) RemoveFollower(ctx context.Context, projectID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM project_followers WHERE project_id = ? AND user_id = ?",
		projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove project follower: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) IsFollower(ctx context.Context, projectID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM project_followers WHERE project_id = ? AND user_id = ?",
		projectID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check project follower: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteProjectRepo) ListFollowerUserIDs(ctx context.Context, projectID string) ([]string, error) {
	return r.listUserIDs(ctx,
		"SELECT user_id FROM project_followers WHERE project_id = ?", projectID)
}

func (r *sqliteProjectRepo) CreateChannel(ctx context.Context, channel *models.DiscussionChannel) error {
	query := `
		INSERT INTO discussion_channels (id, project_id, name, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		channel.ID, channel.ProjectID, channel.Name, channel.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert discussion channel: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert discussion channel: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) ListChannels(ctx context.Context, projectID string) ([]*models.DiscussionChannel, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, project_id, name, created_at FROM discussion_channels WHERE project_id = ? ORDER BY created_at",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list discussion channels: %w", err)
	}
	defer rows.Close()

	var channels []*models.DiscussionChannel
	for rows.Next() {
		channel := &models.DiscussionChannel{}
		if err := rows.Scan(&channel.ID, &channel.ProjectID, &channel.Name, &channel.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan discussion channel: %w", err)
		}
		channels = append(channels, channel)
	}
	return channels, rows.Err()
}

func (r *sqliteProjectRepo) CreateScope(ctx context.Context, scope *models.ProjectScope) error {
	query := `
		INSERT INTO project_scopes (id, project_id, author_id, project_impact,
			scoping_process, available_staff, available_data, version_notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		scope.ID, scope.ProjectID, scope.AuthorID, scope.ProjectImpact,
		scope.ScopingProcess, scope.AvailableStaff, scope.AvailableData,
		scope.VersionNotes, scope.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project scope: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) ListScopes(ctx context.Context, projectID string) ([]*models.ProjectScope, error) {
	query := `
		SELECT id, project_id, author_id, project_impact, scoping_process,
		       available_staff, available_data, version_notes, created_at
		FROM project_scopes WHERE project_id = ? ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project scopes: %w", err)
	}
	defer rows.Close()

	var scopes []*models.ProjectScope
	for rows.Next() {
		scope := &models.ProjectScope{}
		var impact, scoping, staff, data, notes sql.NullString
		err := rows.Scan(&scope.ID, &scope.ProjectID, &scope.AuthorID,
			&impact, &scoping, &staff, &data, &notes, &scope.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan project scope: %w", err)
		}
		scope.ProjectImpact = impact.String
		scope.ScopingProcess = scoping.String
		scope.AvailableStaff = staff.String
		scope.AvailableData = data.String
		scope.VersionNotes = notes.String
		scopes = append(scopes, scope)
	}
	return scopes, rows.Err()
}
