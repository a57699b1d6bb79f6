package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/civicworks/volunteerhub/internal/models"
)

type sqliteApplicationRepo struct {
	db dbtx
}

const applicationColumns = `id, task_id, volunteer_id, status, volunteer_comments,
	reviewer_comments, reviewer_id, application_date, resolution_date`

func (r *sqliteApplicationRepo) Create(ctx context.Context, app *models.VolunteerApplication) error {
	query := `
		INSERT INTO volunteer_applications (` + applicationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		app.ID, app.TaskID, app.VolunteerID, app.Status, app.VolunteerComments,
		app.ReviewerComments, nullString(app.ReviewerID),
		app.ApplicationDate, app.ResolutionDate,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func scanApplication(row interface{ Scan(...any) error }) (*models.VolunteerApplication, error) {
	app := &models.VolunteerApplication{}
	var volunteerComments, reviewerComments, reviewerID sql.NullString
	var resolutionDate sql.NullTime
	err := row.Scan(
		&app.ID, &app.TaskID, &app.VolunteerID, &app.Status, &volunteerComments,
		&reviewerComments, &reviewerID, &app.ApplicationDate, &resolutionDate,
	)
	if err != nil {
		return nil, err
	}
	app.VolunteerComments = volunteerComments.String
	app.ReviewerComments = reviewerComments.String
	app.ReviewerID = reviewerID.String
	if resolutionDate.Valid {
		app.ResolutionDate = &resolutionDate.Time
	}
	return app, nil
}

func (r *sqliteApplicationRepo) GetByID(ctx context.Context, id string) (*models.VolunteerApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM volunteer_applications WHERE id = ?`
	app, err := scanApplication(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get application by id: %w", err)
	}
	return app, nil
}

func (r *sqliteApplicationRepo) Update(ctx context.Context, app *models.VolunteerApplication) error {
	query := `
		UPDATE volunteer_applications
		SET status = ?, volunteer_comments = ?, reviewer_comments = ?,
		    reviewer_id = ?, resolution_date = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		app.Status, app.VolunteerComments, app.ReviewerComments,
		nullString(app.ReviewerID), app.ResolutionDate,
		app.ID,
	)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("application not found: %s", app.ID)
	}
	return nil
}

func (r *sqliteApplicationRepo) list(ctx context.Context, query string, args ...any) ([]*models.VolunteerApplication, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.VolunteerApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (r *sqliteApplicationRepo) ListByTask(ctx context.Context, taskID string) ([]*models.VolunteerApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM volunteer_applications
		WHERE task_id = ? ORDER BY application_date DESC`
	return r.list(ctx, query, taskID)
}

func (r *sqliteApplicationRepo) ListByProject(ctx context.Context, projectID string) ([]*models.VolunteerApplication, error) {
	query := `
		SELECT a.id, a.task_id, a.volunteer_id, a.status, a.volunteer_comments,
		       a.reviewer_comments, a.reviewer_id, a.application_date, a.resolution_date
		FROM volunteer_applications a
		JOIN project_tasks t ON t.id = a.task_id
		WHERE t.project_id = ?
		ORDER BY a.application_date DESC
	`
	return r.list(ctx, query, projectID)
}

// HasPendingForVolunteer reports whether the volunteer already has an
// unresolved application for the task.
func (r *sqliteApplicationRepo) HasPendingForVolunteer(ctx context.Context, taskID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM volunteer_applications WHERE task_id = ? AND volunteer_id = ? AND status = ?",
		taskID, userID, models.ReviewNew,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count pending applications: %w", err)
	}
	return count > 0, nil
}
