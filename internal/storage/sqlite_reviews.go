package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/civicworks/volunteerhub/internal/models"
)

type sqliteReviewRepo struct {
	db dbtx
}

const reviewColumns = `id, task_id, volunteer_id, result, volunteer_comments,
	reviewer_comments, effort_hours, reviewer_id, review_date, created_at`

func (r *sqliteReviewRepo) Create(ctx context.Context, review *models.ProjectTaskReview) error {
	query := `
		INSERT INTO project_task_reviews (` + reviewColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		review.ID, review.TaskID, review.VolunteerID, review.Result,
		review.VolunteerComments, review.ReviewerComments, review.EffortHours,
		nullString(review.ReviewerID), review.ReviewDate, review.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task review: %w", err)
	}
	return nil
}

func scanReview(row interface{ Scan(...any) error }) (*models.ProjectTaskReview, error) {
	review := &models.ProjectTaskReview{}
	var volunteerComments, reviewerComments, reviewerID sql.NullString
	var reviewDate sql.NullTime
	err := row.Scan(
		&review.ID, &review.TaskID, &review.VolunteerID, &review.Result,
		&volunteerComments, &reviewerComments, &review.EffortHours,
		&reviewerID, &reviewDate, &review.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	review.VolunteerComments = volunteerComments.String
	review.ReviewerComments = reviewerComments.String
	review.ReviewerID = reviewerID.String
	if reviewDate.Valid {
		review.ReviewDate = &reviewDate.Time
	}
	return review, nil
}

func (r *sqliteReviewRepo) GetByID(ctx context.Context, id string) (*models.ProjectTaskReview, error) {
	query := `SELECT ` + reviewColumns + ` FROM project_task_reviews WHERE id = ?`
	review, err := scanReview(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task review by id: %w", err)
	}
	return review, nil
}

func (r *sqliteReviewRepo) Update(ctx context.Context, review *models.ProjectTaskReview) error {
	query := `
		UPDATE project_task_reviews
		SET result = ?, volunteer_comments = ?, reviewer_comments = ?,
		    effort_hours = ?, reviewer_id = ?, review_date = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		review.Result, review.VolunteerComments, review.ReviewerComments,
		review.EffortHours, nullString(review.ReviewerID), review.ReviewDate,
		review.ID,
	)
	if err != nil {
		return fmt.Errorf("update task review: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task review not found: %s", review.ID)
	}
	return nil
}

func (r *sqliteReviewRepo) list(ctx context.Context, query string, args ...any) ([]*models.ProjectTaskReview, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list task reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*models.ProjectTaskReview
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task review: %w", err)
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func (r *sqliteReviewRepo) ListByTask(ctx context.Context, taskID string) ([]*models.ProjectTaskReview, error) {
	query := `SELECT ` + reviewColumns + ` FROM project_task_reviews
		WHERE task_id = ? ORDER BY created_at DESC`
	return r.list(ctx, query, taskID)
}

func (r *sqliteReviewRepo) ListPendingByProject(ctx context.Context, projectID string) ([]*models.ProjectTaskReview, error) {
	query := `
		SELECT rv.id, rv.task_id, rv.volunteer_id, rv.result, rv.volunteer_comments,
		       rv.reviewer_comments, rv.effort_hours, rv.reviewer_id, rv.review_date, rv.created_at
		FROM project_task_reviews rv
		JOIN project_tasks t ON t.id = rv.task_id
		WHERE t.project_id = ? AND rv.result = ?
		ORDER BY rv.created_at
	`
	return r.list(ctx, query, projectID, models.ReviewNew)
}
