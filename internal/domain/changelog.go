package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/civicworks/volunteerhub/internal/models"
	"github.com/civicworks/volunteerhub/internal/storage"
)

// ChangeLogger appends immutable audit records of project mutations.
// Writes go through the store argument so they share the caller's
// transaction.
type ChangeLogger interface {
	AppendLog(ctx context.Context, store storage.Storage, projectID, authorID string,
		changeType models.LogChangeType, source models.LogSource, targetID, description string) error
}

// StorageChangeLog writes log entries as project_logs rows.
type StorageChangeLog struct{}

// NewStorageChangeLog creates a storage-backed change log writer.
func NewStorageChangeLog() *StorageChangeLog {
	return &StorageChangeLog{}
}

// AppendLog appends one audit entry. Entries are never updated or
// deleted.
func (l *StorageChangeLog) AppendLog(ctx context.Context, store storage.Storage, projectID, authorID string,
	changeType models.LogChangeType, source models.LogSource, targetID, description string) error {
	entry := &models.ProjectLog{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		AuthorID:    authorID,
		ChangeType:  changeType,
		Source:      source,
		TargetID:    targetID,
		Description: description,
		CreatedAt:   time.Now(),
	}
	return store.Logs().Append(ctx, entry)
}
