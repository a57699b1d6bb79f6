package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/civicworks/volunteerhub/internal/models"
)

// sqliteLogRepo stores the append-only project change log. There are no
// update or delete operations on purpose.
type sqliteLogRepo struct {
	db dbtx
}

func (r *sqliteLogRepo) Append(ctx context.Context, entry *models.ProjectLog) error {
	query := `
		INSERT INTO project_logs (id, project_id, author_id, change_type, source, target_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.ProjectID, entry.AuthorID, entry.ChangeType,
		entry.Source, nullString(entry.TargetID), entry.Description, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append project log: %w", err)
	}
	return nil
}

func (r *sqliteLogRepo) ListByProject(ctx context.Context, projectID string) ([]*models.ProjectLog, error) {
	query := `
		SELECT id, project_id, author_id, change_type, source, target_id, description, created_at
		FROM project_logs WHERE project_id = ? ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.ProjectLog
	for rows.Next() {
		entry := &models.ProjectLog{}
		var targetID sql.NullString
		err := rows.Scan(&entry.ID, &entry.ProjectID, &entry.AuthorID, &entry.ChangeType,
			&entry.Source, &targetID, &entry.Description, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan project log: %w", err)
		}
		entry.TargetID = targetID.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
