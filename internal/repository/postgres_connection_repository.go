package repository

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"finlink/internal/domain"
)

// postgresConnectionRepository is the production ConnectionRepository on a
// transactional relational store.
type postgresConnectionRepository struct {
	db *sql.DB
}

// OpenPostgres opens a Postgres pool using the pgx driver. Caller owns
// Close.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewPostgresConnectionRepository creates a Postgres-backed connection
// repository.
func NewPostgresConnectionRepository(db *sql.DB) ConnectionRepository {
	return &postgresConnectionRepository{db: db}
}

func (r *postgresConnectionRepository) CountUsage(ctx context.Context, userID string) (domain.TierUsage, error) {
	return countUsage(ctx, r.db, userID)
}

// queryer lets the usage count run against the pool or an open transaction.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func countUsage(ctx context.Context, q queryer, userID string) (domain.TierUsage, error) {
	const usageQuery = `
		SELECT
			COUNT(DISTINCT c.id),
			COUNT(a.id)
		FROM linked_connections c
		LEFT JOIN linked_accounts a ON a.connection_id = c.id
		WHERE c.user_id = $1 AND c.status = 'active'`

	var usage domain.TierUsage
	if err := q.QueryRowContext(ctx, usageQuery, userID).Scan(&usage.Connections, &usage.Accounts); err != nil {
		return domain.TierUsage{}, domain.NewInternalError("USAGE_QUERY_FAILED", "Failed to count usage", err)
	}
	return usage, nil
}

func (r *postgresConnectionRepository) CreateWithAccounts(
	ctx context.Context,
	connection *domain.LinkedConnection,
	accounts []*domain.LinkedAccount,
	precommit func(usage domain.TierUsage) error,
) error {
	if err := connection.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.NewInternalError("TX_BEGIN_FAILED", "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if precommit != nil {
		usage, err := countUsage(ctx, tx, connection.UserID)
		if err != nil {
			return err
		}
		if err := precommit(usage); err != nil {
			return err
		}
	}

	const insertConnection = `
		INSERT INTO linked_connections
			(id, user_id, institution_id, institution_name, encrypted_credential, status, session_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.ExecContext(ctx, insertConnection,
		connection.ID, connection.UserID, connection.InstitutionID, connection.InstitutionName,
		connection.EncryptedCredential, connection.Status, connection.SessionToken, connection.CreatedAt,
	); err != nil {
		return domain.NewInternalError(domain.CodePersistenceFailed, "Failed to write connection", err)
	}

	const insertAccount = `
		INSERT INTO linked_accounts
			(id, connection_id, user_id, external_id, name, mask, type, subtype, balance_minor, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	for _, account := range accounts {
		if _, err := tx.ExecContext(ctx, insertAccount,
			account.ID, account.ConnectionID, account.UserID, account.ExternalID, account.Name,
			account.Mask, account.Type, account.Subtype, account.BalanceMinor, account.Currency,
			account.CreatedAt,
		); err != nil {
			return domain.NewInternalError(domain.CodePersistenceFailed, "Failed to write account", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewInternalError(domain.CodePersistenceFailed, "Failed to commit connection", err)
	}
	return nil
}

func (r *postgresConnectionRepository) GetConnection(ctx context.Context, id string) (*domain.LinkedConnection, error) {
	const query = `
		SELECT id, user_id, institution_id, institution_name, encrypted_credential, status, session_token, created_at
		FROM linked_connections WHERE id = $1`

	var connection domain.LinkedConnection
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&connection.ID, &connection.UserID, &connection.InstitutionID, &connection.InstitutionName,
		&connection.EncryptedCredential, &connection.Status, &connection.SessionToken, &connection.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("CONNECTION_NOT_FOUND", "Connection not found")
	}
	if err != nil {
		return nil, domain.NewInternalError("CONNECTION_QUERY_FAILED", "Failed to load connection", err)
	}
	return &connection, nil
}

func (r *postgresConnectionRepository) ListAccounts(ctx context.Context, connectionID string) ([]*domain.LinkedAccount, error) {
	const query = `
		SELECT id, connection_id, user_id, external_id, name, mask, type, subtype, balance_minor, currency, created_at
		FROM linked_accounts WHERE connection_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, connectionID)
	if err != nil {
		return nil, domain.NewInternalError("ACCOUNT_QUERY_FAILED", "Failed to load accounts", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []*domain.LinkedAccount
	for rows.Next() {
		var account domain.LinkedAccount
		if err := rows.Scan(
			&account.ID, &account.ConnectionID, &account.UserID, &account.ExternalID, &account.Name,
			&account.Mask, &account.Type, &account.Subtype, &account.BalanceMinor, &account.Currency,
			&account.CreatedAt,
		); err != nil {
			return nil, domain.NewInternalError("ACCOUNT_SCAN_FAILED", "Failed to scan account", err)
		}
		accounts = append(accounts, &account)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewInternalError("ACCOUNT_QUERY_FAILED", "Failed to load accounts", err)
	}
	return accounts, nil
}
