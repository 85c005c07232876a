package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sumgit/sumgit/internal/domain"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// --- Users ---

// UpsertUser inserts or updates a user by provider + provider_id.
func (s *PostgresStore) UpsertUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (email, name, avatar_url, provider, provider_id, role, access_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider, provider_id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			avatar_url = EXCLUDED.avatar_url,
			access_token = EXCLUDED.access_token,
			updated_at = NOW()
		RETURNING id, email, name, avatar_url, provider, provider_id, role, created_at, updated_at`

	row := s.db.QueryRowContext(ctx, query,
		u.Email, u.Name, u.AvatarURL, u.Provider, u.ProviderID, "user", u.AccessToken,
	)

	var user domain.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.AvatarURL,
		&user.Provider, &user.ProviderID, &user.Role,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, email, name, avatar_url, provider, provider_id, role, access_token, created_at, updated_at
	          FROM users WHERE id = $1`

	var user domain.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.AvatarURL,
		&user.Provider, &user.ProviderID, &user.Role, &user.AccessToken,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// --- Repos ---

// CreateRepo registers a repository for a user, idempotent on owner/name.
func (s *PostgresStore) CreateRepo(ctx context.Context, r *domain.Repo) (*domain.Repo, error) {
	query := `INSERT INTO repos (user_id, owner, name, site_url, status)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (user_id, owner, name) DO UPDATE SET
	              site_url = EXCLUDED.site_url,
	              updated_at = NOW()
	          RETURNING id, user_id, owner, name, site_url, status, last_run_at, created_at, updated_at`

	var repo domain.Repo
	var lastRun sql.NullTime
	err := s.db.QueryRowContext(ctx, query,
		r.UserID, r.Owner, r.Name, r.SiteURL, domain.RepoStatusConnected,
	).Scan(
		&repo.ID, &repo.UserID, &repo.Owner, &repo.Name, &repo.SiteURL,
		&repo.Status, &lastRun, &repo.CreatedAt, &repo.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create repo: %w", err)
	}
	repo.LastRunAt = timeOrZero(lastRun)
	return &repo, nil
}

// GetRepoByID returns a repo by its ID.
func (s *PostgresStore) GetRepoByID(ctx context.Context, repoID string) (*domain.Repo, error) {
	query := `SELECT id, user_id, owner, name, site_url, status, last_run_at, created_at, updated_at
	          FROM repos WHERE id = $1`

	var r domain.Repo
	var lastRun sql.NullTime
	err := s.db.QueryRowContext(ctx, query, repoID).Scan(
		&r.ID, &r.UserID, &r.Owner, &r.Name, &r.SiteURL,
		&r.Status, &lastRun, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get repo: %w", err)
	}
	r.LastRunAt = timeOrZero(lastRun)
	return &r, nil
}

// ListReposByUser returns all repos for a user.
func (s *PostgresStore) ListReposByUser(ctx context.Context, userID string) ([]domain.Repo, error) {
	query := `SELECT id, user_id, owner, name, site_url, status, last_run_at, created_at, updated_at
	          FROM repos WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	defer rows.Close()

	var repos []domain.Repo
	for rows.Next() {
		var r domain.Repo
		var lastRun sql.NullTime
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.Owner, &r.Name, &r.SiteURL,
			&r.Status, &lastRun, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan repo: %w", err)
		}
		r.LastRunAt = timeOrZero(lastRun)
		repos = append(repos, r)
	}
	return repos, nil
}

// timeOrZero maps a nullable timestamp column to its zero value. A repo
// that never ran has a NULL last_run_at.
func timeOrZero(t sql.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}

// UpdateRepoStatus updates the status and last run time of a repo.
func (s *PostgresStore) UpdateRepoStatus(ctx context.Context, id, status string) error {
	query := `UPDATE repos SET status = $1, last_run_at = NOW(), updated_at = NOW() WHERE id = $2`
	_, err := s.db.ExecContext(ctx, query, status, id)
	return err
}

// --- Milestones ---

// ReplaceMilestones deletes all milestones carrying the given source tag
// for the repository and inserts the new batch, inside one transaction so
// a crash can never leave the repo's milestone set empty.
func (s *PostgresStore) ReplaceMilestones(ctx context.Context, repoID, source string, milestones []domain.Milestone) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace milestones: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM milestones WHERE repo_id = $1 AND source = $2`, repoID, source); err != nil {
		return fmt.Errorf("delete milestones: %w", err)
	}

	insert := `INSERT INTO milestones (id, repo_id, title, description, commit_sha, milestone_date, x_post_suggestion, source)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, m := range milestones {
		id := m.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx, insert,
			id, repoID, m.Title, m.Description, m.CommitSHA, m.MilestoneDate, m.XPostSuggestion, source,
		); err != nil {
			return fmt.Errorf("insert milestone: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace milestones: %w", err)
	}
	return nil
}

// ListMilestones returns a repo's milestones, optionally filtered by source.
func (s *PostgresStore) ListMilestones(ctx context.Context, repoID, source string) ([]domain.Milestone, error) {
	query := `SELECT id, repo_id, title, description, commit_sha, milestone_date, x_post_suggestion, source, created_at
	          FROM milestones WHERE repo_id = $1`
	args := []interface{}{repoID}
	if source != "" {
		query += ` AND source = $2`
		args = append(args, source)
	}
	query += ` ORDER BY milestone_date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()

	var milestones []domain.Milestone
	for rows.Next() {
		var m domain.Milestone
		if err := rows.Scan(
			&m.ID, &m.RepoID, &m.Title, &m.Description, &m.CommitSHA,
			&m.MilestoneDate, &m.XPostSuggestion, &m.Source, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		milestones = append(milestones, m)
	}
	return milestones, nil
}

// --- Credits ---

// DeductCredits atomically checks and decrements the user's balance. The
// balance-guarded UPDATE is what keeps concurrent deductions from
// driving the balance negative. Returns ok=false with the unchanged
// balance on insufficient funds.
func (s *PostgresStore) DeductCredits(ctx context.Context, userID string, amount int, opRef, description string) (bool, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("begin deduct: %w", err)
	}
	defer tx.Rollback()

	var newBalance int
	err = tx.QueryRowContext(ctx,
		`UPDATE credit_balances
		 SET balance = balance - $2, lifetime_used = lifetime_used + $2, updated_at = NOW()
		 WHERE user_id = $1 AND balance >= $2
		 RETURNING balance`,
		userID, amount,
	).Scan(&newBalance)
	if errors.Is(err, sql.ErrNoRows) {
		// Insufficient funds or no balance row yet — report current state.
		current := 0
		_ = s.db.QueryRowContext(ctx,
			`SELECT balance FROM credit_balances WHERE user_id = $1`, userID).Scan(&current)
		return false, current, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("deduct credits: %w", err)
	}

	if err := insertCreditTx(ctx, tx, userID, -amount, domain.CreditTxDeduct, opRef, description); err != nil {
		return false, 0, err
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("commit deduct: %w", err)
	}
	return true, newBalance, nil
}

// RefundCredits atomically credits back a prior deduction, recording the
// reason. Used only after a successful deduct whose operation failed.
func (s *PostgresStore) RefundCredits(ctx context.Context, userID string, amount int, opRef, reason string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin refund: %w", err)
	}
	defer tx.Rollback()

	var newBalance int
	err = tx.QueryRowContext(ctx,
		`UPDATE credit_balances
		 SET balance = balance + $2, lifetime_used = lifetime_used - $2, updated_at = NOW()
		 WHERE user_id = $1
		 RETURNING balance`,
		userID, amount,
	).Scan(&newBalance)
	if err != nil {
		return 0, fmt.Errorf("refund credits: %w", err)
	}

	if err := insertCreditTx(ctx, tx, userID, amount, domain.CreditTxRefund, opRef, reason); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit refund: %w", err)
	}
	return newBalance, nil
}

// AddCredits atomically increments the balance for purchases, bonuses,
// or admin adjustments, creating the balance row lazily on first grant.
// Idempotency for duplicate payment-provider events is the provider's
// responsibility.
func (s *PostgresStore) AddCredits(ctx context.Context, userID string, amount int, txType, opRef, description string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin add credits: %w", err)
	}
	defer tx.Rollback()

	purchased := 0
	if txType == domain.CreditTxPurchase {
		purchased = amount
	}

	var newBalance int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO credit_balances (user_id, balance, lifetime_purchased, lifetime_used)
		 VALUES ($1, $2, $3, 0)
		 ON CONFLICT (user_id) DO UPDATE SET
		     balance = credit_balances.balance + EXCLUDED.balance,
		     lifetime_purchased = credit_balances.lifetime_purchased + EXCLUDED.lifetime_purchased,
		     updated_at = NOW()
		 RETURNING balance`,
		userID, amount, purchased,
	).Scan(&newBalance)
	if err != nil {
		return 0, fmt.Errorf("add credits: %w", err)
	}

	if err := insertCreditTx(ctx, tx, userID, amount, txType, opRef, description); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit add credits: %w", err)
	}
	return newBalance, nil
}

// GetCreditBalance returns the user's balance, zero-valued if no row exists yet.
func (s *PostgresStore) GetCreditBalance(ctx context.Context, userID string) (*domain.CreditBalance, error) {
	query := `SELECT user_id, balance, lifetime_purchased, lifetime_used, updated_at
	          FROM credit_balances WHERE user_id = $1`

	var b domain.CreditBalance
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&b.UserID, &b.Balance, &b.LifetimePurchased, &b.LifetimeUsed, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.CreditBalance{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credit balance: %w", err)
	}
	return &b, nil
}

// ListCreditTransactions returns the user's most recent journal rows.
func (s *PostgresStore) ListCreditTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, user_id, amount, type, operation_ref, description, created_at
	          FROM credit_transactions WHERE user_id = $1
	          ORDER BY created_at DESC LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list credit transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.CreditTransaction
	for rows.Next() {
		var t domain.CreditTransaction
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.Amount, &t.Type, &t.OperationRef, &t.Description, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan credit transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, nil
}

func insertCreditTx(ctx context.Context, tx *sql.Tx, userID string, amount int, txType, opRef, description string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO credit_transactions (id, user_id, amount, type, operation_ref, description)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), userID, amount, txType, opRef, description,
	)
	if err != nil {
		return fmt.Errorf("insert credit transaction: %w", err)
	}
	return nil
}

// --- Audit Logs ---

// WriteAudit implements middleware.AuditWriter.
func (s *PostgresStore) WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error {
	query := `INSERT INTO audit_logs (user_id, action, resource, resource_id, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)`
	_, err := s.db.ExecContext(context.Background(), query,
		userID, action, resource, resourceID, details, ip, userAgent,
	)
	return err
}

// ListAuditLogs returns recent audit logs with an optional action filter.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, user_id, action, resource, resource_id, details, ip, user_agent, created_at
	          FROM audit_logs`
	args := []interface{}{}
	if action != "" {
		query += ` WHERE action = $1`
		args = append(args, action)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.Action, &l.Resource, &l.ResourceID,
			&l.Details, &l.IP, &l.UserAgent, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}
