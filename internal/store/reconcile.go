// ABOUTME: Startup reconciliation of responses and connections left pending
// ABOUTME: Rows still at elapsed 0 after a restart can never complete

package store

import (
	"context"
	"fmt"
)

// CancelledStatusReason marks responses cancelled by reconciliation.
const CancelledStatusReason = "Cancelled"

// CancelPendingHTTPResponses marks every in-flight response as cancelled
// and returns how many were changed. No notifications are sent: this runs
// before any subscriber is attached.
func (s *SQLiteStore) CancelPendingHTTPResponses(ctx context.Context) (int64, error) {
	now := formatTime(s.now())
	res, err := s.exec(ctx,
		`UPDATE http_responses SET elapsed = -1, status_reason = ?, updated_at = ? WHERE elapsed = 0`,
		CancelledStatusReason, now)
	if err != nil {
		return 0, fmt.Errorf("cancelling pending http responses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cancelled http responses: %w", err)
	}
	s.metrics.Reconciled(KindHTTPResponse, n)
	return n, nil
}

// CancelPendingGRPCConnections marks every open connection as cancelled.
func (s *SQLiteStore) CancelPendingGRPCConnections(ctx context.Context) (int64, error) {
	now := formatTime(s.now())
	res, err := s.exec(ctx,
		`UPDATE grpc_connections SET elapsed = -1, updated_at = ? WHERE elapsed = 0`, now)
	if err != nil {
		return 0, fmt.Errorf("cancelling pending grpc connections: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cancelled grpc connections: %w", err)
	}
	s.metrics.Reconciled(KindGRPCConnection, n)
	return n, nil
}

// Reconcile runs every startup reconciliation step and logs the totals.
func (s *SQLiteStore) Reconcile(ctx context.Context) error {
	responses, err := s.CancelPendingHTTPResponses(ctx)
	if err != nil {
		return err
	}
	connections, err := s.CancelPendingGRPCConnections(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("reconciled pending work", "http_responses", responses, "grpc_connections", connections)
	return nil
}
