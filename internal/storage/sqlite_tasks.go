package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/civicworks/volunteerhub/internal/models"
)

type sqliteTaskRepo struct {
	db dbtx
}

const taskColumns = `id, project_id, name, short_summary, description, onboarding_instructions,
	type, stage, accepting_volunteers, percentage_complete,
	estimated_effort_hours, actual_effort_hours,
	estimated_start_date, estimated_end_date, actual_start_date, actual_end_date,
	created_at, updated_at`

func (r *sqliteTaskRepo) Create(ctx context.Context, task *models.ProjectTask) error {
	query := `
		INSERT INTO project_tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		task.ID, task.ProjectID, task.Name, task.ShortSummary,
		task.Description, task.OnboardingInstructions,
		task.Type, task.Stage, boolToInt(task.AcceptingVolunteers), task.PercentageComplete,
		task.EstimatedEffortHours, task.ActualEffortHours,
		task.EstimatedStartDate, task.EstimatedEndDate,
		task.ActualStartDate, task.ActualEndDate,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func scanTask(row interface{ Scan(...any) error }) (*models.ProjectTask, error) {
	task := &models.ProjectTask{}
	var shortSummary, description, onboarding sql.NullString
	var accepting int
	var estStart, estEnd, actStart, actEnd sql.NullTime
	err := row.Scan(
		&task.ID, &task.ProjectID, &task.Name, &shortSummary,
		&description, &onboarding,
		&task.Type, &task.Stage, &accepting, &task.PercentageComplete,
		&task.EstimatedEffortHours, &task.ActualEffortHours,
		&estStart, &estEnd, &actStart, &actEnd,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.ShortSummary = shortSummary.String
	task.Description = description.String
	task.OnboardingInstructions = onboarding.String
	task.AcceptingVolunteers = accepting != 0
	if estStart.Valid {
		task.EstimatedStartDate = &estStart.Time
	}
	if estEnd.Valid {
		task.EstimatedEndDate = &estEnd.Time
	}
	if actStart.Valid {
		task.ActualStartDate = &actStart.Time
	}
	if actEnd.Valid {
		task.ActualEndDate = &actEnd.Time
	}
	return task, nil
}

func (r *sqliteTaskRepo) GetByID(ctx context.Context, id string) (*models.ProjectTask, error) {
	query := `SELECT ` + taskColumns + ` FROM project_tasks WHERE id = ?`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task by id: %w", err)
	}
	return task, nil
}

func (r *sqliteTaskRepo) Update(ctx context.Context, task *models.ProjectTask) error {
	query := `
		UPDATE project_tasks
		SET name = ?, short_summary = ?, description = ?, onboarding_instructions = ?,
		    type = ?, stage = ?, accepting_volunteers = ?, percentage_complete = ?,
		    estimated_effort_hours = ?, actual_effort_hours = ?,
		    estimated_start_date = ?, estimated_end_date = ?,
		    actual_start_date = ?, actual_end_date = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		task.Name, task.ShortSummary, task.Description, task.OnboardingInstructions,
		task.Type, task.Stage, boolToInt(task.AcceptingVolunteers), task.PercentageComplete,
		task.EstimatedEffortHours, task.ActualEffortHours,
		task.EstimatedStartDate, task.EstimatedEndDate,
		task.ActualStartDate, task.ActualEndDate, task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task not found: %s", task.ID)
	}
	return nil
}

func (r *sqliteTaskRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM project_tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

func (r *sqliteTaskRepo) queryTasks(ctx context.Context, query string, args ...any) ([]*models.ProjectTask, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.ProjectTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (r *sqliteTaskRepo) ListByProject(ctx context.Context, projectID string) ([]*models.ProjectTask, error) {
	query := `SELECT ` + taskColumns + ` FROM project_tasks WHERE project_id = ? ORDER BY created_at`
	return r.queryTasks(ctx, query, projectID)
}

func (r *sqliteTaskRepo) ListByTypeAndStage(ctx context.Context, projectID string, taskType models.TaskType, stage models.TaskStatus) ([]*models.ProjectTask, error) {
	query := `SELECT ` + taskColumns + ` FROM project_tasks
		WHERE project_id = ? AND type = ? AND stage = ? ORDER BY created_at`
	return r.queryTasks(ctx, query, projectID, taskType, stage)
}

func (r *sqliteTaskRepo) ExistsNonCompleted(ctx context.Context, projectID string, taskType models.TaskType) (bool, error) {
	query := "SELECT COUNT(*) FROM project_tasks WHERE project_id = ? AND stage NOT IN (?, ?)"
	args := []any{projectID, models.TaskCompleted, models.TaskDeleted}
	if taskType != "" {
		query += " AND type = ?"
		args = append(args, taskType)
	}
	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("count non-completed tasks: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteTaskRepo) AddRole(ctx context.Context, role *models.ProjectTaskRole) error {
	query := `
		INSERT INTO project_task_roles (id, task_id, user_id, role)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, role.ID, role.TaskID, role.UserID, role.Role)
	if isUniqueViolation(err) {
		return fmt.Errorf("add task role: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("add task role: %w", err)
	}
	return nil
}

func (r *sqliteTaskRepo) GetRole(ctx context.Context, taskID, roleID string) (*models.ProjectTaskRole, error) {
	role := &models.ProjectTaskRole{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, task_id, user_id, role FROM project_task_roles WHERE id = ? AND task_id = ?",
		roleID, taskID,
	).Scan(&role.ID, &role.TaskID, &role.UserID, &role.Role)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task role: %w", err)
	}
	return role, nil
}

func (r *sqliteTaskRepo) GetRoleByUser(ctx context.Context, taskID, userID string) (*models.ProjectTaskRole, error) {
	role := &models.ProjectTaskRole{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, task_id, user_id, role FROM project_task_roles WHERE task_id = ? AND user_id = ?",
		taskID, userID,
	).Scan(&role.ID, &role.TaskID, &role.UserID, &role.Role)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task role by user: %w", err)
	}
	return role, nil
}

func (r *sqliteTaskRepo) UpdateRole(ctx context.Context, role *models.ProjectTaskRole) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE project_task_roles SET task_id = ?, role = ? WHERE id = ?",
		role.TaskID, role.Role, role.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("update task role: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update task role: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task role not found: %s", role.ID)
	}
	return nil
}

func (r *sqliteTaskRepo) DeleteRole(ctx context.Context, roleID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM project_task_roles WHERE id = ?", roleID)
	if err != nil {
		return fmt.Errorf("delete task role: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task role not found: %s", roleID)
	}
	return nil
}

func (r *sqliteTaskRepo) HasVolunteers(ctx context.Context, taskID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM project_task_roles WHERE task_id = ?", taskID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count task volunteers: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteTaskRepo) ListVolunteerUserIDsByTask(ctx context.Context, taskID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id FROM project_task_roles WHERE task_id = ?", taskID)
	if err != nil {
		return nil, fmt.Errorf("list task volunteers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan volunteer id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *sqliteTaskRepo) ListVolunteerUserIDs(ctx context.Context, projectID string, types []models.TaskType, stages []models.TaskStatus) ([]string, error) {
	query := `
		SELECT DISTINCT tr.user_id
		FROM project_task_roles tr
		JOIN project_tasks t ON t.id = tr.task_id
		WHERE t.project_id = ?
	`
	args := []any{projectID}
	if len(types) > 0 {
		query += " AND t.type IN (" + placeholders(len(types)) + ")"
		for _, tt := range types {
			args = append(args, tt)
		}
	}
	if len(stages) > 0 {
		query += " AND t.stage IN (" + placeholders(len(stages)) + ")"
		for _, s := range stages {
			args = append(args, s)
		}
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list project volunteers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan volunteer id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// placeholders returns n comma-separated SQL placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (r *sqliteTaskRepo) AddRequirement(ctx context.Context, req *models.ProjectTaskRequirement) error {
	query := `
		INSERT INTO project_task_requirements (id, task_id, skill, level, importance)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, req.ID, req.TaskID, req.Skill, req.Level, req.Importance)
	if isUniqueViolation(err) {
		return fmt.Errorf("add task requirement: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("add task requirement: %w", err)
	}
	return nil
}

func (r *sqliteTaskRepo) DeleteRequirement(ctx context.Context, taskID, reqID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM project_task_requirements WHERE id = ? AND task_id = ?",
		reqID, taskID,
	)
	if err != nil {
		return fmt.Errorf("delete task requirement: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task requirement not found: %s", reqID)
	}
	return nil
}

func (r *sqliteTaskRepo) ListRequirements(ctx context.Context, taskID string) ([]*models.ProjectTaskRequirement, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, task_id, skill, level, importance FROM project_task_requirements WHERE task_id = ? ORDER BY skill",
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list task requirements: %w", err)
	}
	defer rows.Close()

	var reqs []*models.ProjectTaskRequirement
	for rows.Next() {
		req := &models.ProjectTaskRequirement{}
		if err := rows.Scan(&req.ID, &req.TaskID, &req.Skill, &req.Level, &req.Importance); err != nil {
			return nil, fmt.Errorf("scan task requirement: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}
