package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/circlenet/backend/internal/db"
	"github.com/circlenet/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, username, password_hash, pending_requests, points, time_limit, date_joined, last_login`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Password, &user.PendingRequests,
		&user.Points, &user.TimeLimit, &user.DateJoined, &user.LastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	pending := user.PendingRequests
	if pending == nil {
		pending = []string{}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, password_hash, pending_requests, points, time_limit, date_joined, last_login)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, user.ID, user.Username, user.Password, pending, user.Points, user.TimeLimit, user.DateJoined, user.LastLogin)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByUserID fetches a user by their identifier.
func (r *PostgresUserRepository) FindByUserID(ctx context.Context, id string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE id = $1
    `, id)

	return scanUser(row)
}

// FindByUsername fetches a user by username, matched case-insensitively.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE LOWER(username) = LOWER(TRIM($1))
    `, username)

	return scanUser(row)
}

// Update modifies an existing user's credentials.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET username = $2, password_hash = $3, last_login = $4
        WHERE id = $1
    `, user.ID, user.Username, user.Password, user.LastLogin)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// AdjustPoints adds delta to the user's points and returns the updated record.
func (r *PostgresUserRepository) AdjustPoints(ctx context.Context, id string, delta int) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE users
        SET points = points + $2
        WHERE id = $1
        RETURNING `+userColumns+`
    `, id, delta)

	return scanUser(row)
}

// SetTimeLimit replaces the user's daily time limit and returns the updated record.
func (r *PostgresUserRepository) SetTimeLimit(ctx context.Context, id string, hours int) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE users
        SET time_limit = $2
        WHERE id = $1
        RETURNING `+userColumns+`
    `, id, hours)

	return scanUser(row)
}

// Delete removes a user account.
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM users
        WHERE id = $1
    `, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// PostgresRelationshipRepository provides PostgreSQL-backed persistence for
// friend requests and friendships. Operations that mutate both a
// relationship record and a pending-request list run inside a single
// transaction so a failure commits neither write.
type PostgresRelationshipRepository struct {
	pool db.Pool
}

// NewPostgresRelationshipRepository constructs a relationship repository backed by PostgreSQL.
func NewPostgresRelationshipRepository(pool db.Pool) *PostgresRelationshipRepository {
	return &PostgresRelationshipRepository{pool: pool}
}

const relationshipColumns = `id, requester, target, state, created_at`

func scanRelationship(row pgx.Row) (models.Relationship, error) {
	var rel models.Relationship
	err := row.Scan(&rel.ID, &rel.Requester, &rel.Target, &rel.State, &rel.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Relationship{}, ErrNotFound
		}
		return models.Relationship{}, fmt.Errorf("scan relationship: %w", err)
	}
	return rel, nil
}

// CreateRequest inserts a sent record and appends the requester to the
// target's pending-request list, atomically.
func (r *PostgresRelationshipRepository) CreateRequest(ctx context.Context, rel models.Relationship) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create request: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
        INSERT INTO relationships (id, requester, target, state, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, rel.ID, rel.Requester, rel.Target, rel.State, rel.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert relationship: %w", err)
	}

	tag, err := tx.Exec(ctx, `
        UPDATE users
        SET pending_requests = array_append(pending_requests, $1)
        WHERE LOWER(username) = LOWER($2)
    `, rel.Requester, rel.Target)
	if err != nil {
		return fmt.Errorf("append pending request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create request: %w", err)
	}

	return nil
}

// AcceptRequest flips the sent record for (requester, target) to accepted in
// place and removes the requester from the target's pending list, atomically.
func (r *PostgresRelationshipRepository) AcceptRequest(ctx context.Context, requester, target string) (models.Relationship, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Relationship{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return models.Relationship{}, fmt.Errorf("begin accept request: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
        UPDATE relationships
        SET state = $3
        WHERE requester = $1 AND target = $2 AND state = $4
        RETURNING `+relationshipColumns+`
    `, requester, target, models.RelationshipAccepted, models.RelationshipSent)

	rel, err := scanRelationship(row)
	if err != nil {
		return models.Relationship{}, err
	}

	// Absent pending entries are tolerated: array_remove is a no-op then.
	if _, err := tx.Exec(ctx, `
        UPDATE users
        SET pending_requests = array_remove(pending_requests, $1)
        WHERE LOWER(username) = LOWER($2)
    `, requester, target); err != nil {
		return models.Relationship{}, fmt.Errorf("remove pending request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Relationship{}, fmt.Errorf("commit accept request: %w", err)
	}

	return rel, nil
}

// DeleteSentRequest removes the sent record for (requester, target) together
// with the pending-list entry, reporting whether a record was deleted.
func (r *PostgresRelationshipRepository) DeleteSentRequest(ctx context.Context, requester, target string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin decline request: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
        DELETE FROM relationships
        WHERE requester = $1 AND target = $2 AND state = $3
    `, requester, target, models.RelationshipSent)
	if err != nil {
		return false, fmt.Errorf("delete sent relationship: %w", err)
	}

	if _, err := tx.Exec(ctx, `
        UPDATE users
        SET pending_requests = array_remove(pending_requests, $1)
        WHERE LOWER(username) = LOWER($2)
    `, requester, target); err != nil {
		return false, fmt.Errorf("remove pending request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit decline request: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// DeleteAcceptedPair deletes the accepted record for the unordered pair in a
// single statement, whichever orientation it was stored in, and returns the
// deleted record.
func (r *PostgresRelationshipRepository) DeleteAcceptedPair(ctx context.Context, a, b string) (models.Relationship, bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Relationship{}, false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        DELETE FROM relationships
        WHERE state = $3
          AND ((requester = $1 AND target = $2) OR (requester = $2 AND target = $1))
        RETURNING `+relationshipColumns+`
    `, a, b, models.RelationshipAccepted)

	rel, err := scanRelationship(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.Relationship{}, false, nil
		}
		return models.Relationship{}, false, err
	}

	return rel, true, nil
}

// FindSent fetches the sent record for the ordered pair (requester, target).
func (r *PostgresRelationshipRepository) FindSent(ctx context.Context, requester, target string) (models.Relationship, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Relationship{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+relationshipColumns+`
        FROM relationships
        WHERE requester = $1 AND target = $2 AND state = $3
    `, requester, target, models.RelationshipSent)

	return scanRelationship(row)
}

// HasAccepted reports whether an accepted record exists in either orientation.
func (r *PostgresRelationshipRepository) HasAccepted(ctx context.Context, a, b string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1
            FROM relationships
            WHERE state = $3
              AND ((requester = $1 AND target = $2) OR (requester = $2 AND target = $1))
        )
    `, a, b, models.RelationshipAccepted)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check accepted relationship: %w", err)
	}

	return exists, nil
}

// ListForUser returns all relationships the user participates in, newest first.
func (r *PostgresRelationshipRepository) ListForUser(ctx context.Context, username string) ([]models.Relationship, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+relationshipColumns+`
        FROM relationships
        WHERE requester = $1 OR target = $1
        ORDER BY created_at DESC
    `, username)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	var rels []models.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relationships: %w", err)
	}

	return rels, nil
}

// ListAcceptedFor returns the usernames the given user is friends with.
func (r *PostgresRelationshipRepository) ListAcceptedFor(ctx context.Context, username string) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT CASE WHEN requester = $1 THEN target ELSE requester END AS friend
        FROM relationships
        WHERE state = $2 AND (requester = $1 OR target = $1)
        ORDER BY created_at DESC
    `, username, models.RelationshipAccepted)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	var friends []string
	for rows.Next() {
		var friend string
		if err := rows.Scan(&friend); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		friends = append(friends, friend)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friends: %w", err)
	}

	return friends, nil
}

// PostgresMessageRepository provides PostgreSQL-backed persistence for direct messages.
type PostgresMessageRepository struct {
	pool db.Pool
}

// NewPostgresMessageRepository constructs a message repository backed by PostgreSQL.
func NewPostgresMessageRepository(pool db.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool}
}

// Create stores a new direct message.
func (r *PostgresMessageRepository) Create(ctx context.Context, message models.Message) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO messages (id, sender, recipient, body, sent_at)
        VALUES ($1, $2, $3, $4, $5)
    `, message.ID, message.Sender, message.Recipient, message.Body, message.SentAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

// ListConversation returns messages exchanged between the two usernames in
// either direction, oldest first.
func (r *PostgresMessageRepository) ListConversation(ctx context.Context, a, b string) ([]models.Message, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, sender, recipient, body, sent_at
        FROM messages
        WHERE (sender = $1 AND recipient = $2) OR (sender = $2 AND recipient = $1)
        ORDER BY sent_at ASC
    `, a, b)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Recipient, &msg.Body, &msg.SentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation: %w", err)
	}

	return messages, nil
}

// PostgresInterestsRepository provides PostgreSQL-backed persistence for interest surveys.
type PostgresInterestsRepository struct {
	pool db.Pool
}

// NewPostgresInterestsRepository constructs an interests repository backed by PostgreSQL.
func NewPostgresInterestsRepository(pool db.Pool) *PostgresInterestsRepository {
	return &PostgresInterestsRepository{pool: pool}
}

// Create stores a user's interest survey.
func (r *PostgresInterestsRepository) Create(ctx context.Context, interests models.Interests) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	topics := interests.Topics
	if topics == nil {
		topics = []string{}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO interests (id, user_id, topics, different, updated_at)
        VALUES ($1, $2, $3, $4, $5)
    `, interests.ID, interests.UserID, topics, interests.Different, interests.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert interests: %w", err)
	}

	return nil
}

// FindByUserID fetches the interest survey for the given user.
func (r *PostgresInterestsRepository) FindByUserID(ctx context.Context, userID string) (models.Interests, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Interests{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, user_id, topics, different, updated_at
        FROM interests
        WHERE user_id = $1
    `, userID)

	var interests models.Interests
	if err := row.Scan(&interests.ID, &interests.UserID, &interests.Topics, &interests.Different, &interests.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Interests{}, ErrNotFound
		}
		return models.Interests{}, fmt.Errorf("select interests: %w", err)
	}

	return interests, nil
}

// Update replaces the topics and flag for the user's survey.
func (r *PostgresInterestsRepository) Update(ctx context.Context, interests models.Interests) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	topics := interests.Topics
	if topics == nil {
		topics = []string{}
	}

	tag, err := conn.Exec(ctx, `
        UPDATE interests
        SET topics = $2, different = $3, updated_at = $4
        WHERE user_id = $1
    `, interests.UserID, topics, interests.Different, interests.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update interests: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes the user's survey, reporting whether one existed.
func (r *PostgresInterestsRepository) Delete(ctx context.Context, userID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM interests
        WHERE user_id = $1
    `, userID)
	if err != nil {
		return false, fmt.Errorf("delete interests: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ RelationshipRepository = (*PostgresRelationshipRepository)(nil)
var _ MessageRepository = (*PostgresMessageRepository)(nil)
var _ InterestsRepository = (*PostgresInterestsRepository)(nil)
