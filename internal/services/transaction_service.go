package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/engine"
	"bilancio/internal/storage"
)

// ErrNotPending is returned when a confirmation answer arrives for a
// transaction that has already been settled.
var ErrNotPending = errors.New("transaction is not pending")

// TransactionService runs incoming transactions through the matcher and
// classifier, and resolves pending confirmations.
type TransactionService struct {
	repo       *storage.SQLiteRepository
	budget     *BudgetService
	matcher    *engine.SourceMatcher
	amqpClient *amqp.Client
}

func NewTransactionService(repo *storage.SQLiteRepository, budget *BudgetService, matcher *engine.SourceMatcher, amqpClient *amqp.Client) *TransactionService {
	return &TransactionService{
		repo:       repo,
		budget:     budget,
		matcher:    matcher,
		amqpClient: amqpClient,
	}
}

// Ingest matches one transaction against the amortization sources, stores
// it, and returns it with its initial status: pending when a source cleared
// the threshold, regular otherwise.
func (s *TransactionService) Ingest(ctx context.Context, merchantText string, amountCents int64, date core.Date) (core.Transaction, error) {
	if amountCents <= 0 {
		return core.Transaction{}, fmt.Errorf("ingest transaction: %w", core.ErrInvalidAmount)
	}
	if err := date.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("ingest transaction: %w", err)
	}

	candidate := s.matcher.Match(merchantText, amountCents, s.budget.ListEntries())
	status := engine.Classify(candidate, core.ConfirmNone)

	t := core.Transaction{
		MerchantText:    merchantText,
		AmountCents:     amountCents,
		Date:            date,
		Status:          status,
		MatchedSourceID: candidate.MatchedSourceID,
	}
	id, err := s.repo.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}
	t.ID = id

	if candidate.MatchedSourceID != nil {
		slog.InfoContext(ctx, "Transaction matched amortization source",
			"transaction_id", id,
			"source_id", *candidate.MatchedSourceID,
			"score", candidate.Score,
			"merchant_text", merchantText)
	}
	return t, nil
}

// EnqueueIngest hands the transaction to the broker instead of classifying
// it inline, for callers that must not block on the pipeline.
func (s *TransactionService) EnqueueIngest(ctx context.Context, merchantText string, amountCents int64, date core.Date) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, ingesting inline")
		_, err := s.Ingest(ctx, merchantText, amountCents, date)
		return err
	}
	return s.amqpClient.PublishTransactionIngest(ctx, merchantText, amountCents, date.ISO())
}

// Confirm resolves a pending transaction with the user's answer. Confirming
// or declining a transaction that is not pending is rejected so a double
// submit cannot flip an already-settled classification.
func (s *TransactionService) Confirm(ctx context.Context, id int64, confirmation core.Confirmation) (core.Transaction, error) {
	if confirmation != core.ConfirmYes && confirmation != core.ConfirmNo {
		return core.Transaction{}, fmt.Errorf("confirm transaction %d: answer must be yes or no", id)
	}

	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.Status != core.StatusPending {
		return core.Transaction{}, fmt.Errorf("confirm transaction %d (status %s): %w", id, t.Status, ErrNotPending)
	}

	candidate := core.MatchCandidate{
		MerchantText:    t.MerchantText,
		AmountCents:     t.AmountCents,
		MatchedSourceID: t.MatchedSourceID,
	}
	status := engine.Classify(candidate, confirmation)
	if err := s.repo.UpdateTransactionStatus(ctx, id, status); err != nil {
		return core.Transaction{}, err
	}
	t.Status = status

	slog.InfoContext(ctx, "Transaction confirmed",
		"transaction_id", id,
		"answer", confirmation,
		"status", status)
	return t, nil
}

// ListPending returns the transactions awaiting a confirmation answer.
func (s *TransactionService) ListPending(ctx context.Context) ([]core.Transaction, error) {
	return s.repo.ListPendingTransactions(ctx)
}

// ListRecent returns the most recent transactions, newest first.
func (s *TransactionService) ListRecent(ctx context.Context, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListRecentTransactions(ctx, limit)
}
