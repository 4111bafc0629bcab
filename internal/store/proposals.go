package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"order-sync-service/internal/apperrors"
	"order-sync-service/internal/models"
)

// GetProposal retrieves a proposal by ID
func (s *Store) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	var proposal models.Proposal
	err := s.db.GetContext(ctx, &proposal, "SELECT * FROM order_change_proposals WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrProposalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

// GetProposalLines retrieves a proposal's lines in proposed order.
func (s *Store) GetProposalLines(ctx context.Context, proposalID string) ([]models.ProposalLine, error) {
	var lines []models.ProposalLine
	err := s.db.SelectContext(ctx, &lines,
		"SELECT * FROM order_change_proposal_lines WHERE proposal_id = $1 ORDER BY line_number", proposalID)
	return lines, err
}

// AcceptProposal marks a proposal accepted and records reviewer, final order
// association, updated tags and audit metadata. The transition is validated
// against the proposal state machine before any write.
func (s *Store) AcceptProposal(ctx context.Context, proposalID, reviewedBy, orderID string, tags, metadata models.JSONMap) error {
	return s.resolveProposal(ctx, proposalID, models.ProposalStatusAccepted,
		"UPDATE order_change_proposals SET status = $1, reviewed_at = NOW(), reviewed_by = $2, order_id = $3, tags = $4, metadata = $5 WHERE id = $6",
		models.ProposalStatusAccepted, reviewedBy, orderID, tags, metadata, proposalID)
}

// RejectProposal marks a proposal rejected and records reviewer and notes.
func (s *Store) RejectProposal(ctx context.Context, proposalID, reviewedBy string, notes *string) error {
	return s.resolveProposal(ctx, proposalID, models.ProposalStatusRejected,
		"UPDATE order_change_proposals SET status = $1, reviewed_at = NOW(), reviewed_by = $2, notes = $3 WHERE id = $4",
		models.ProposalStatusRejected, reviewedBy, notes, proposalID)
}

func (s *Store) resolveProposal(ctx context.Context, proposalID, to, query string, args ...interface{}) error {
	proposal, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return err
	}
	if !models.CanTransitionProposal(proposal.Status, to) {
		return fmt.Errorf("%w: proposal %s is %s", apperrors.ErrProposalResolved, proposalID, proposal.Status)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update proposal status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrProposalNotFound
	}
	return nil
}

// UpdateProposalSyncStatus records the outcome of a mirror pass in the
// proposal's tags (erp_sync_status).
func (s *Store) UpdateProposalSyncStatus(ctx context.Context, proposalID, syncStatus string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE order_change_proposals SET tags = jsonb_set(COALESCE(tags, '{}'::jsonb), '{erp_sync_status}', to_jsonb($1::text)) WHERE id = $2",
		syncStatus, proposalID)
	return err
}
