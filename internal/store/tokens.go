package store

import (
	"context"
	"fmt"
	"time"
)

// Revocations are stored and compared in UTC. expires_at is text, so mixing
// zones would order it wrongly.

// RevokeSession blocks the token with the given ID until expiresAt, then
// drops revocations that have run out.
func RevokeSession(ctx context.Context, q Querier, tokenID string, expiresAt time.Time) error {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?)
		 ON CONFLICT (jti) DO UPDATE SET expires_at = max(expires_at, excluded.expires_at)`,
		tokenID, expiresAt.UTC(),
	); err != nil {
		return fmt.Errorf("revoking session %s: %w", tokenID, err)
	}

	if _, err := PurgeExpiredRevocations(ctx, q, time.Now()); err != nil {
		return err
	}
	return nil
}

// SessionRevoked reports whether the token with the given ID was revoked.
func SessionRevoked(ctx context.Context, q Querier, tokenID string) (bool, error) {
	var revoked bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = ?)`, tokenID,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("checking session %s: %w", tokenID, err)
	}
	return revoked, nil
}

// PurgeExpiredRevocations deletes revocations of tokens that expired before
// now. The token itself is rejected by its expiry from then on.
func PurgeExpiredRevocations(ctx context.Context, q Querier, now time.Time) (int64, error) {
	result, err := q.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purging expired revocations: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
