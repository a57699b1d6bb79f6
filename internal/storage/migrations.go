package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Users table
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				username TEXT UNIQUE NOT NULL,
				email TEXT UNIQUE NOT NULL,
				first_name TEXT,
				last_name TEXT,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'user',
				has_volunteer_profile INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Organizations table
			CREATE TABLE IF NOT EXISTS organizations (
				id TEXT PRIMARY KEY,
				name TEXT UNIQUE NOT NULL,
				description TEXT,
				website TEXT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Organization membership junction table
			CREATE TABLE IF NOT EXISTS organization_members (
				organization_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'staff',
				PRIMARY KEY (organization_id, user_id),
				FOREIGN KEY (organization_id) REFERENCES organizations(id) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Projects table
			CREATE TABLE IF NOT EXISTS projects (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				name TEXT NOT NULL,
				short_summary TEXT,
				description TEXT,
				status TEXT NOT NULL DEFAULT 'draft',
				project_impact TEXT,
				scoping_process TEXT,
				available_staff TEXT,
				available_data TEXT,
				estimated_start_date DATETIME,
				estimated_end_date DATETIME,
				actual_start_date DATETIME,
				actual_end_date DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (organization_id) REFERENCES organizations(id) ON DELETE CASCADE
			);

			-- Project staff roles; one role per (project, user)
			CREATE TABLE IF NOT EXISTS project_roles (
				id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				role TEXT NOT NULL,
				UNIQUE (project_id, user_id),
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Project followers
			CREATE TABLE IF NOT EXISTS project_followers (
				project_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (project_id, user_id),
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Project discussion channels
			CREATE TABLE IF NOT EXISTS discussion_channels (
				id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				name TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				UNIQUE (project_id, name),
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
			);

			-- Project scope versions, append-only
			CREATE TABLE IF NOT EXISTS project_scopes (
				id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				author_id TEXT NOT NULL,
				project_impact TEXT,
				scoping_process TEXT,
				available_staff TEXT,
				available_data TEXT,
				version_notes TEXT,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
				FOREIGN KEY (author_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Project tasks table
			CREATE TABLE IF NOT EXISTS project_tasks (
				id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				name TEXT NOT NULL,
				short_summary TEXT,
				description TEXT,
				onboarding_instructions TEXT,
				type TEXT NOT NULL,
				stage TEXT NOT NULL DEFAULT 'not_started',
				accepting_volunteers INTEGER NOT NULL DEFAULT 0,
				percentage_complete REAL NOT NULL DEFAULT 0,
				estimated_effort_hours REAL NOT NULL DEFAULT 0,
				actual_effort_hours REAL NOT NULL DEFAULT 0,
				estimated_start_date DATETIME,
				estimated_end_date DATETIME,
				actual_start_date DATETIME,
				actual_end_date DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
			);

			-- Task volunteer roles; one role per (task, user)
			CREATE TABLE IF NOT EXISTS project_task_roles (
				id TEXT PRIMARY KEY,
				task_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'volunteer',
				UNIQUE (task_id, user_id),
				FOREIGN KEY (task_id) REFERENCES project_tasks(id) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Task skill requirements; one row per (task, skill)
			CREATE TABLE IF NOT EXISTS project_task_requirements (
				id TEXT PRIMARY KEY,
				task_id TEXT NOT NULL,
				skill TEXT NOT NULL,
				level INTEGER NOT NULL DEFAULT 0,
				importance INTEGER NOT NULL DEFAULT 0,
				UNIQUE (task_id, skill),
				FOREIGN KEY (task_id) REFERENCES project_tasks(id) ON DELETE CASCADE
			);

			-- Volunteer applications
			CREATE TABLE IF NOT EXISTS volunteer_applications (
				id TEXT PRIMARY KEY,
				task_id TEXT NOT NULL,
				volunteer_id TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'new',
				volunteer_comments TEXT,
				reviewer_comments TEXT,
				reviewer_id TEXT,
				application_date DATETIME NOT NULL,
				resolution_date DATETIME,
				FOREIGN KEY (task_id) REFERENCES project_tasks(id) ON DELETE CASCADE,
				FOREIGN KEY (volunteer_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Task QA reviews
			CREATE TABLE IF NOT EXISTS project_task_reviews (
				id TEXT PRIMARY KEY,
				task_id TEXT NOT NULL,
				volunteer_id TEXT NOT NULL,
				result TEXT NOT NULL DEFAULT 'new',
				volunteer_comments TEXT,
				reviewer_comments TEXT,
				effort_hours REAL NOT NULL DEFAULT 0,
				reviewer_id TEXT,
				review_date DATETIME,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (task_id) REFERENCES project_tasks(id) ON DELETE CASCADE,
				FOREIGN KEY (volunteer_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Append-only project change log
			CREATE TABLE IF NOT EXISTS project_logs (
				id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				author_id TEXT NOT NULL,
				change_type TEXT NOT NULL,
				source TEXT NOT NULL,
				target_id TEXT,
				description TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
			);

			-- User notifications
			CREATE TABLE IF NOT EXISTS notifications (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				message TEXT NOT NULL,
				severity TEXT NOT NULL,
				source TEXT NOT NULL,
				target_id TEXT,
				is_read INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Refresh tokens
			CREATE TABLE IF NOT EXISTS refresh_tokens (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				token_hash TEXT UNIQUE NOT NULL,
				expires_at DATETIME NOT NULL,
				created_at DATETIME NOT NULL,
				revoked INTEGER NOT NULL DEFAULT 0,
				revoked_at DATETIME,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
			CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
			CREATE INDEX IF NOT EXISTS idx_projects_org ON projects(organization_id);
			CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
			CREATE INDEX IF NOT EXISTS idx_project_roles_project ON project_roles(project_id);
			CREATE INDEX IF NOT EXISTS idx_project_roles_user ON project_roles(user_id);
			CREATE INDEX IF NOT EXISTS idx_tasks_project ON project_tasks(project_id);
			CREATE INDEX IF NOT EXISTS idx_tasks_stage ON project_tasks(stage);
			CREATE INDEX IF NOT EXISTS idx_task_roles_task ON project_task_roles(task_id);
			CREATE INDEX IF NOT EXISTS idx_task_roles_user ON project_task_roles(user_id);
			CREATE INDEX IF NOT EXISTS idx_applications_task ON volunteer_applications(task_id);
			CREATE INDEX IF NOT EXISTS idx_applications_volunteer ON volunteer_applications(volunteer_id);
			CREATE INDEX IF NOT EXISTS idx_reviews_task ON project_task_reviews(task_id);
			CREATE INDEX IF NOT EXISTS idx_logs_project ON project_logs(project_id);
			CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, is_read);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		_, err = tx.Exec(m.Up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
