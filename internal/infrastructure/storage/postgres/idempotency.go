package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"facturo/internal/core/apperror"
	"facturo/internal/core/id"
)

// IdempotencyStatus represents the state of an idempotent request.
type IdempotencyStatus string

const (
	IdempotencyStatusPending   IdempotencyStatus = "pending"
	IdempotencyStatusCompleted IdempotencyStatus = "completed"
)

// staleAfter is how long a pending key may stay unanswered before a retry
// takes it over (the first request most likely died).
const staleAfter = time.Minute

// IdempotencyRequest identifies one client request.
type IdempotencyRequest struct {
	CompanyID   id.ID
	Key         string
	UserID      string
	Operation   string
	RequestHash string
}

// IdempotencyReplay is a stored response to send again.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore keeps the responses of POST requests carrying an
// Idempotency-Key so a retried create or convert is answered from storage.
// It works outside business transactions.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
	now       func() time.Time
}

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl, now: time.Now}
}

type idempotencyRecord struct {
	UserID      string
	Operation   string
	RequestHash string
	Status      IdempotencyStatus
	Response    []byte
	StatusCode  *int
	ContentType *string
	UpdatedAt   time.Time
	Inserted    bool
}

// Acquire claims the key for req. It returns a replay when the request was
// already answered and nil when the caller should run it.
func (s *IdempotencyStore) Acquire(ctx context.Context, req IdempotencyRequest) (*IdempotencyReplay, error) {
	now := s.now().UTC()

	var rec idempotencyRecord
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO idempotency_keys (company_id, idempotency_key, user_id, operation, request_hash, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8)
		ON CONFLICT (company_id, idempotency_key) DO UPDATE SET expires_at = idempotency_keys.expires_at
		RETURNING user_id, operation, request_hash, status, response, response_status, response_content_type, updated_at, (xmax = 0)
	`, req.CompanyID, req.Key, req.UserID, req.Operation, req.RequestHash, IdempotencyStatusPending, now, now.Add(s.ttl)).Scan(
		&rec.UserID, &rec.Operation, &rec.RequestHash, &rec.Status,
		&rec.Response, &rec.StatusCode, &rec.ContentType, &rec.UpdatedAt, &rec.Inserted,
	)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}

	return s.decide(ctx, req, rec, now)
}

func (s *IdempotencyStore) decide(ctx context.Context, req IdempotencyRequest, rec idempotencyRecord, now time.Time) (*IdempotencyReplay, error) {
	if rec.Inserted {
		return nil, nil
	}

	if rec.UserID != req.UserID || rec.Operation != req.Operation || rec.RequestHash != req.RequestHash {
		return nil, apperror.NewIdempotencyMismatch(req.Key).
			WithDetail("operation", rec.Operation)
	}

	if rec.Status == IdempotencyStatusCompleted {
		replay := &IdempotencyReplay{StatusCode: http.StatusOK, ContentType: "application/json", Body: rec.Response}
		if rec.StatusCode != nil {
			replay.StatusCode = *rec.StatusCode
		}
		if rec.ContentType != nil && *rec.ContentType != "" {
			replay.ContentType = *rec.ContentType
		}
		return replay, nil
	}

	if now.Sub(rec.UpdatedAt) < staleAfter {
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}

	// take over a stale pending key
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE idempotency_keys SET updated_at = $1
		WHERE company_id = $2 AND idempotency_key = $3 AND status = $4 AND updated_at = $5
	`, now, req.CompanyID, req.Key, IdempotencyStatusPending, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("reclaim stale key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}
	return nil, nil
}

// Complete stores the response sent for the key.
func (s *IdempotencyStore) Complete(ctx context.Context, companyID id.ID, key string, statusCode int, contentType string, body []byte) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE idempotency_keys
		SET status = $1, response = $2, response_status = $3, response_content_type = $4, updated_at = $5
		WHERE company_id = $6 AND idempotency_key = $7
	`, IdempotencyStatusCompleted, body, statusCode, contentType, s.now().UTC(), companyID, key)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release forgets a pending key so the client may retry, e.g. after a server error.
func (s *IdempotencyStore) Release(ctx context.Context, companyID id.ID, key string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM idempotency_keys
		WHERE company_id = $1 AND idempotency_key = $2 AND status = $3
	`, companyID, key, IdempotencyStatusPending)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired keys.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
