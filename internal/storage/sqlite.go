package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	// CGo-free SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/civicworks/volunteerhub/internal/models"
)

// dbtx is the subset of *sql.DB and *sql.Tx the repositories use, so the
// same repository code runs inside and outside transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	path string
	db   *sql.DB
	// q is what repositories execute against: the database itself, or a
	// transaction for storages produced by InTransaction.
	q    dbtx
	inTx bool

	users         *sqliteUserRepo
	organizations *sqliteOrgRepo
	projects      *sqliteProjectRepo
	tasks         *sqliteTaskRepo
	applications  *sqliteApplicationRepo
	reviews       *sqliteReviewRepo
	logs          *sqliteLogRepo
	notifications *sqliteNotificationRepo
	tokens        *sqliteTokenRepo
}

// NewSQLiteStorage creates a new SQLite storage.
func NewSQLiteStorage(path string) *SQLiteStorage {
	return &SQLiteStorage{path: path}
}

// Open initializes the database connection.
func (s *SQLiteStorage) Open() error {
	ctx := context.Background()

	db, err := sql.Open("sqlite", "file:"+s.path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	s.db = db
	s.q = db
	s.initRepos(db)

	return nil
}

func (s *SQLiteStorage) initRepos(q dbtx) {
	s.users = &sqliteUserRepo{db: q}
	s.organizations = &sqliteOrgRepo{db: q}
	s.projects = &sqliteProjectRepo{db: q}
	s.tasks = &sqliteTaskRepo{db: q}
	s.applications = &sqliteApplicationRepo{db: q}
	s.reviews = &sqliteReviewRepo{db: q}
	s.logs = &sqliteLogRepo{db: q}
	s.notifications = &sqliteNotificationRepo{db: q}
	s.tokens = &sqliteTokenRepo{db: q}
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.db == nil || s.inTx {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database connection for health checks.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

// Migrate runs database migrations.
func (s *SQLiteStorage) Migrate() error {
	return runMigrations(s.db)
}

// InTransaction runs fn with a Storage bound to one transaction.
func (s *SQLiteStorage) InTransaction(ctx context.Context, fn func(tx Storage) error) error {
	if s.inTx {
		// Already inside a transaction scope; join it.
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txStore := &SQLiteStorage{path: s.path, db: s.db, q: tx, inTx: true}
	txStore.initRepos(tx)

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// EnsureAdminUser creates a default admin if no users exist.
func (s *SQLiteStorage) EnsureAdminUser() error {
	count, err := s.Users().Count(context.Background())
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	password := generateRandomPassword(16)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	admin := &models.User{
		ID:           uuid.New().String(),
		Username:     "admin",
		Email:        "admin@localhost",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.Users().Create(context.Background(), admin); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	fmt.Printf("\n")
	fmt.Printf("===========================================\n")
	fmt.Printf("  DEFAULT ADMIN USER CREATED\n")
	fmt.Printf("  Username: admin\n")
	fmt.Printf("  Password: %s\n", password)
	fmt.Printf("  CHANGE THIS PASSWORD IMMEDIATELY!\n")
	fmt.Printf("===========================================\n")
	fmt.Printf("\n")

	return nil
}

// Users returns the user repository.
func (s *SQLiteStorage) Users() UserRepository { return s.users }

// Organizations returns the organization repository.
func (s *SQLiteStorage) Organizations() OrganizationRepository { return s.organizations }

// Projects returns the project repository.
func (s *SQLiteStorage) Projects() ProjectRepository { return s.projects }

// Tasks returns the task repository.
func (s *SQLiteStorage) Tasks() TaskRepository { return s.tasks }

// Applications returns the volunteer application repository.
func (s *SQLiteStorage) Applications() ApplicationRepository { return s.applications }

// Reviews returns the task review repository.
func (s *SQLiteStorage) Reviews() ReviewRepository { return s.reviews }

// Logs returns the project change log repository.
func (s *SQLiteStorage) Logs() ProjectLogRepository { return s.logs }

// Notifications returns the notification repository.
func (s *SQLiteStorage) Notifications() NotificationRepository { return s.notifications }

// Tokens returns the refresh token repository.
func (s *SQLiteStorage) Tokens() TokenRepository { return s.tokens }

// generateRandomPassword generates a random password of the specified length.
func generateRandomPassword(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)[:length]
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
