/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. Every state transition is a conditional write guarded on the
 * record's expected pre-transition status; a zero-row update surfaces as a
 * conflict error instead of silently overwriting, so concurrent webhook and
 * reconciliation paths can never commit two transitions for the same payout.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/transfa/payout-service/internal/domain"
)

var (
	ErrMethodNotFound    = errors.New("payout method not found")
	ErrPayoutNotFound    = errors.New("payout request not found")
	ErrAttemptNotFound   = errors.New("payout attempt not found")
	ErrPayoutConflict    = errors.New("payout request already superseded")
	ErrAlreadyDispatched = errors.New("payout request already dispatched")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreatePayoutMethod inserts a withdrawal destination. When the method is
// flagged default, any previous default for the user is unset in the same
// transaction so exactly one default per user ever holds.
func (r *PostgresRepository) CreatePayoutMethod(ctx context.Context, method *domain.PayoutMethod) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if method.IsDefault {
		if _, err := tx.Exec(ctx,
			`UPDATE payout_methods SET is_default = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_default = TRUE`,
			method.UserID,
		); err != nil {
			return err
		}
	}

	details, err := json.Marshal(method.Details)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(method.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payout_methods (id, user_id, type, label, last_four, is_default, details, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	if err := tx.QueryRow(ctx, query,
		method.ID,
		method.UserID,
		string(method.Type),
		method.Label,
		method.LastFour,
		method.IsDefault,
		details,
		metadata,
	).Scan(&method.CreatedAt, &method.UpdatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const payoutMethodColumns = `id, user_id, type, label, last_four, is_default, details, metadata, deleted_at, created_at, updated_at`

func scanPayoutMethod(row pgx.Row) (*domain.PayoutMethod, error) {
	var method domain.PayoutMethod
	var methodType string
	var details, metadata []byte
	err := row.Scan(
		&method.ID,
		&method.UserID,
		&methodType,
		&method.Label,
		&method.LastFour,
		&method.IsDefault,
		&details,
		&metadata,
		&method.DeletedAt,
		&method.CreatedAt,
		&method.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	method.Type = domain.MethodType(methodType)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &method.Details); err != nil {
			return nil, err
		}
	}
	if len(metadata) > 0 && string(metadata) != "null" {
		if err := json.Unmarshal(metadata, &method.Metadata); err != nil {
			return nil, err
		}
	}
	return &method, nil
}

// FindPayoutMethodByID retrieves a non-deleted payout method owned by the user.
func (r *PostgresRepository) FindPayoutMethodByID(ctx context.Context, methodID uuid.UUID, userID uuid.UUID) (*domain.PayoutMethod, error) {
	query := `SELECT ` + payoutMethodColumns + ` FROM payout_methods WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`
	method, err := scanPayoutMethod(r.db.QueryRow(ctx, query, methodID, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrMethodNotFound
		}
		return nil, err
	}
	return method, nil
}

// ListPayoutMethods returns the user's non-deleted methods, default first.
func (r *PostgresRepository) ListPayoutMethods(ctx context.Context, userID uuid.UUID) ([]domain.PayoutMethod, error) {
	query := `
		SELECT ` + payoutMethodColumns + `
		FROM payout_methods
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY is_default DESC, created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []domain.PayoutMethod
	for rows.Next() {
		method, err := scanPayoutMethod(rows)
		if err != nil {
			return nil, err
		}
		methods = append(methods, *method)
	}
	return methods, rows.Err()
}

// SetDefaultPayoutMethod atomically moves the default flag to the given method.
func (r *PostgresRepository) SetDefaultPayoutMethod(ctx context.Context, userID uuid.UUID, methodID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE payout_methods SET is_default = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_default = TRUE`,
		userID,
	); err != nil {
		return err
	}

	result, err := tx.Exec(ctx,
		`UPDATE payout_methods SET is_default = TRUE, updated_at = NOW() WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`,
		methodID, userID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrMethodNotFound
	}

	return tx.Commit(ctx)
}

// SoftDeletePayoutMethod marks the method deleted. Requests that referenced it
// keep their frozen method type and label for audit.
func (r *PostgresRepository) SoftDeletePayoutMethod(ctx context.Context, methodID uuid.UUID, userID uuid.UUID) error {
	result, err := r.db.Exec(ctx,
		`UPDATE payout_methods SET deleted_at = NOW(), is_default = FALSE, updated_at = NOW() WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`,
		methodID, userID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrMethodNotFound
	}
	return nil
}

// CreatePayoutRequest inserts the pending record with its frozen fee. The
// referenced method row is locked and re-validated in the same transaction,
// closing the race between method deletion and fee freezing.
func (r *PostgresRepository) CreatePayoutRequest(ctx context.Context, req *domain.PayoutRequest) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var deletedAt *time.Time
	err = tx.QueryRow(ctx,
		`SELECT deleted_at FROM payout_methods WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		req.MethodID, req.UserID,
	).Scan(&deletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrMethodNotFound
		}
		return err
	}
	if deletedAt != nil {
		return ErrMethodNotFound
	}

	query := `
		INSERT INTO payout_requests (
			id, user_id, method_id, method_type, method_label, amount, currency,
			fee, net_amount, status, reference, note, delivery_speed, pickup_code
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`
	if err := tx.QueryRow(ctx, query,
		req.ID,
		req.UserID,
		req.MethodID,
		string(req.MethodType),
		req.MethodLabel,
		req.Amount,
		req.Currency,
		req.Fee,
		req.NetAmount,
		req.Status,
		req.Reference,
		req.Note,
		req.DeliverySpeed,
		req.PickupCode,
	).Scan(&req.CreatedAt, &req.UpdatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const payoutRequestColumns = `id, user_id, method_id, method_type, method_label, amount, currency, fee, net_amount,
	       status, reference, note, failure_reason, delivery_speed, pickup_code, completed_at, created_at, updated_at`

func scanPayoutRequest(row pgx.Row) (*domain.PayoutRequest, error) {
	var req domain.PayoutRequest
	var methodType string
	err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.MethodID,
		&methodType,
		&req.MethodLabel,
		&req.Amount,
		&req.Currency,
		&req.Fee,
		&req.NetAmount,
		&req.Status,
		&req.Reference,
		&req.Note,
		&req.FailureReason,
		&req.DeliverySpeed,
		&req.PickupCode,
		&req.CompletedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.MethodType = domain.MethodType(methodType)
	return &req, nil
}

// FindPayoutRequestByID retrieves one payout request.
func (r *PostgresRepository) FindPayoutRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutRequestColumns + ` FROM payout_requests WHERE id = $1`
	req, err := scanPayoutRequest(r.db.QueryRow(ctx, query, requestID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	return req, nil
}

// ListPayoutRequests returns the user's payout history, newest first.
func (r *PostgresRepository) ListPayoutRequests(ctx context.Context, userID uuid.UUID, opts domain.PayoutListOptions) ([]domain.PayoutRequest, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + payoutRequestColumns + ` FROM payout_requests WHERE user_id = $1`
	args := []interface{}{userID}
	if opts.Status != "" {
		query += ` AND status = $2`
		args = append(args, opts.Status)
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []domain.PayoutRequest
	for rows.Next() {
		req, err := scanPayoutRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// CancelPayoutRequest cancels a pending request with no recorded dispatch
// attempt. The request row is locked first so a concurrent dispatch cannot
// slip a ledger record in between the check and the update.
func (r *PostgresRepository) CancelPayoutRequest(ctx context.Context, requestID uuid.UUID, userID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM payout_requests WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		requestID, userID,
	).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrPayoutNotFound
		}
		return err
	}

	var attemptCount int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM payout_attempts WHERE payout_request_id = $1`,
		requestID,
	).Scan(&attemptCount); err != nil {
		return err
	}
	if attemptCount > 0 {
		return ErrAlreadyDispatched
	}
	if status != domain.StatusPending {
		return ErrPayoutConflict
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payout_requests SET status = 'cancelled', updated_at = NOW() WHERE id = $1 AND status = 'pending'`,
		requestID,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// BeginDispatch atomically records the ledger attempt and moves the request
// into processing. The ledger row is written before any rail call is made.
// Returns false without error when an attempt already exists for the request;
// the caller must then consult the existing record instead of re-submitting.
func (r *PostgresRepository) BeginDispatch(ctx context.Context, attempt *domain.PayoutAttempt) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM payout_requests WHERE id = $1 FOR UPDATE`,
		attempt.PayoutRequestID,
	).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, ErrPayoutNotFound
		}
		return false, err
	}

	var existing int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM payout_attempts WHERE payout_request_id = $1`,
		attempt.PayoutRequestID,
	).Scan(&existing); err != nil {
		return false, err
	}
	if existing > 0 {
		return false, nil
	}

	if status != domain.StatusPending {
		if domain.IsTerminalStatus(status) {
			return false, ErrPayoutConflict
		}
		// processing with no ledger record should not happen; treat as conflict
		return false, ErrPayoutConflict
	}

	attempt.AttemptNo = existing + 1
	if err := tx.QueryRow(ctx,
		`INSERT INTO payout_attempts (id, payout_request_id, attempt_no, idempotency_key, rail_status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING submitted_at, last_checked_at`,
		attempt.ID,
		attempt.PayoutRequestID,
		attempt.AttemptNo,
		attempt.IdempotencyKey,
		attempt.RailStatus,
	).Scan(&attempt.SubmittedAt, &attempt.LastCheckedAt); err != nil {
		return false, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payout_requests SET status = 'processing', updated_at = NOW() WHERE id = $1 AND status = 'pending'`,
		attempt.PayoutRequestID,
	); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

const payoutAttemptColumns = `id, payout_request_id, attempt_no, idempotency_key, rail_operation_id, rail_status,
	       submitted_at, last_checked_at, resolved_at`

func scanPayoutAttempt(row pgx.Row) (*domain.PayoutAttempt, error) {
	var attempt domain.PayoutAttempt
	err := row.Scan(
		&attempt.ID,
		&attempt.PayoutRequestID,
		&attempt.AttemptNo,
		&attempt.IdempotencyKey,
		&attempt.RailOperationID,
		&attempt.RailStatus,
		&attempt.SubmittedAt,
		&attempt.LastCheckedAt,
		&attempt.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FindLatestPayoutAttempt returns the newest ledger record for a request.
func (r *PostgresRepository) FindLatestPayoutAttempt(ctx context.Context, requestID uuid.UUID) (*domain.PayoutAttempt, error) {
	query := `SELECT ` + payoutAttemptColumns + ` FROM payout_attempts WHERE payout_request_id = $1 ORDER BY attempt_no DESC LIMIT 1`
	attempt, err := scanPayoutAttempt(r.db.QueryRow(ctx, query, requestID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return attempt, nil
}

// FindPayoutAttemptByOperationID resolves a ledger record from the rail's
// operation id, as carried by webhook events.
func (r *PostgresRepository) FindPayoutAttemptByOperationID(ctx context.Context, operationID string) (*domain.PayoutAttempt, error) {
	query := `SELECT ` + payoutAttemptColumns + ` FROM payout_attempts WHERE rail_operation_id = $1`
	attempt, err := scanPayoutAttempt(r.db.QueryRow(ctx, query, operationID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return attempt, nil
}

// RecordRailAcceptance stores the rail-issued operation id on the attempt.
func (r *PostgresRepository) RecordRailAcceptance(ctx context.Context, attemptID uuid.UUID, operationID string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE payout_attempts SET rail_operation_id = $2, rail_status = 'accepted', last_checked_at = NOW() WHERE id = $1 AND resolved_at IS NULL`,
		attemptID, operationID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

// ResolvePayout commits a terminal rail outcome: the request transition and the
// ledger resolution happen in one transaction, so concurrent sweeps observe
// either "already resolved" or "still ambiguous", never a torn state. The
// request update is guarded on status = 'processing'; a zero-row update means
// another path already resolved it and the call reports false.
func (r *PostgresRepository) ResolvePayout(ctx context.Context, requestID uuid.UUID, attemptID uuid.UUID, outcome string, failureReason string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	applied, err := applyTerminalOutcome(ctx, tx, requestID, attemptID, outcome, failureReason)
	if err != nil || !applied {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ResolvePayoutFromWebhook is the webhook settlement path: the dedup record
// and the transition commit or roll back together. A delivery that fails after
// the event insert leaves no dedup row, so the rail's redelivery retries the
// transition instead of being discarded as a replay.
func (r *PostgresRepository) ResolvePayoutFromWebhook(ctx context.Context, eventID string, requestID uuid.UUID, attemptID uuid.UUID, outcome string, failureReason string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx,
		`INSERT INTO webhook_events (event_id) VALUES ($1) ON CONFLICT (event_id) DO NOTHING`,
		eventID,
	)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() == 0 {
		return false, nil
	}

	applied, err := applyTerminalOutcome(ctx, tx, requestID, attemptID, outcome, failureReason)
	if err != nil {
		return false, err
	}
	// Commit even when the transition did not apply: the event id must stay
	// recorded so replays of a late contradictory event short-circuit.
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return applied, nil
}

func applyTerminalOutcome(ctx context.Context, tx pgx.Tx, requestID uuid.UUID, attemptID uuid.UUID, outcome string, failureReason string) (bool, error) {
	if outcome != domain.StatusCompleted && outcome != domain.StatusFailed {
		return false, errors.New("unsupported payout outcome: " + outcome)
	}

	var tag int64
	if outcome == domain.StatusCompleted {
		res, err := tx.Exec(ctx,
			`UPDATE payout_requests SET status = 'completed', completed_at = NOW(), updated_at = NOW() WHERE id = $1 AND status = 'processing'`,
			requestID,
		)
		if err != nil {
			return false, err
		}
		tag = res.RowsAffected()
	} else {
		res, err := tx.Exec(ctx,
			`UPDATE payout_requests SET status = 'failed', failure_reason = $2, completed_at = NOW(), updated_at = NOW() WHERE id = $1 AND status = 'processing'`,
			requestID, failureReason,
		)
		if err != nil {
			return false, err
		}
		tag = res.RowsAffected()
	}

	if tag == 0 {
		return false, nil
	}

	railStatus := domain.AttemptSucceeded
	if outcome == domain.StatusFailed {
		railStatus = domain.AttemptFailed
	}
	if _, err := tx.Exec(ctx,
		`UPDATE payout_attempts SET rail_status = $2, resolved_at = NOW(), last_checked_at = NOW() WHERE id = $1`,
		attemptID, railStatus,
	); err != nil {
		return false, err
	}
	return true, nil
}

// WebhookEventSeen reports whether an event id was already recorded, letting
// the ingestor short-circuit replays without touching any payout state.
func (r *PostgresRepository) WebhookEventSeen(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM webhook_events WHERE event_id = $1)`,
		eventID,
	).Scan(&seen)
	if err != nil {
		return false, err
	}
	return seen, nil
}

// ListAmbiguousPayouts selects processing requests whose ledger attempt is
// unresolved and was last checked before the cutoff.
func (r *PostgresRepository) ListAmbiguousPayouts(ctx context.Context, inFlightSince time.Time, limit int) ([]AmbiguousPayout, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	query := `
		SELECT ` + prefixColumns("r", payoutRequestColumns) + `,
		       ` + prefixColumns("a", payoutAttemptColumns) + `
		FROM payout_requests r
		JOIN payout_attempts a ON a.payout_request_id = r.id
		WHERE r.status = 'processing'
		  AND a.resolved_at IS NULL
		  AND a.last_checked_at < $1
		ORDER BY a.last_checked_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, inFlightSince, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []AmbiguousPayout
	for rows.Next() {
		var item AmbiguousPayout
		var methodType string
		err := rows.Scan(
			&item.Request.ID,
			&item.Request.UserID,
			&item.Request.MethodID,
			&methodType,
			&item.Request.MethodLabel,
			&item.Request.Amount,
			&item.Request.Currency,
			&item.Request.Fee,
			&item.Request.NetAmount,
			&item.Request.Status,
			&item.Request.Reference,
			&item.Request.Note,
			&item.Request.FailureReason,
			&item.Request.DeliverySpeed,
			&item.Request.PickupCode,
			&item.Request.CompletedAt,
			&item.Request.CreatedAt,
			&item.Request.UpdatedAt,
			&item.Attempt.ID,
			&item.Attempt.PayoutRequestID,
			&item.Attempt.AttemptNo,
			&item.Attempt.IdempotencyKey,
			&item.Attempt.RailOperationID,
			&item.Attempt.RailStatus,
			&item.Attempt.SubmittedAt,
			&item.Attempt.LastCheckedAt,
			&item.Attempt.ResolvedAt,
		)
		if err != nil {
			return nil, err
		}
		item.Request.MethodType = domain.MethodType(methodType)
		items = append(items, item)
	}
	return items, rows.Err()
}

// TouchPayoutAttempt extends the ambiguity window after an inconclusive rail answer.
func (r *PostgresRepository) TouchPayoutAttempt(ctx context.Context, attemptID uuid.UUID) error {
	result, err := r.db.Exec(ctx,
		`UPDATE payout_attempts SET last_checked_at = NOW() WHERE id = $1 AND resolved_at IS NULL`,
		attemptID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

// EscalatePayoutToReview parks a payout that exceeded the hard ambiguity
// ceiling. The automated loop has no authority past this point.
func (r *PostgresRepository) EscalatePayoutToReview(ctx context.Context, requestID uuid.UUID, reason string) (bool, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE payout_requests SET status = 'needs_review', failure_reason = $2, updated_at = NOW() WHERE id = $1 AND status = 'processing'`,
		requestID, reason,
	)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// RecordWebhookEvent registers a rail event id; replays of a previously seen
// id return false and must produce no further state change.
func (r *PostgresRepository) RecordWebhookEvent(ctx context.Context, eventID string) (bool, error) {
	result, err := r.db.Exec(ctx,
		`INSERT INTO webhook_events (event_id) VALUES ($1) ON CONFLICT (event_id) DO NOTHING`,
		eventID,
	)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func prefixColumns(alias string, columns string) string {
	fields := strings.Split(columns, ",")
	for i, field := range fields {
		fields[i] = alias + "." + strings.TrimSpace(field)
	}
	return strings.Join(fields, ", ")
}
