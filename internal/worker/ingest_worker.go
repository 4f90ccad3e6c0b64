package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/services"
)

// IngestWorker classifies transactions arriving from the broker.
type IngestWorker struct {
	transactions *services.TransactionService
}

func NewIngestWorker(transactions *services.TransactionService) *IngestWorker {
	return &IngestWorker{transactions: transactions}
}

// HandleIngestMessage runs one queued transaction through the matcher and
// stores it. A malformed date is a permanent failure; returning the parse
// error wrapped keeps the message out of the requeue loop upstream.
func (w *IngestWorker) HandleIngestMessage(ctx context.Context, msg *amqp.TransactionIngestMessage) error {
	date, err := core.ParseDate(msg.Date)
	if err != nil {
		return fmt.Errorf("parse transaction date %q: %w", msg.Date, err)
	}

	t, err := w.transactions.Ingest(ctx, msg.MerchantText, msg.AmountCents, date)
	if err != nil {
		return fmt.Errorf("ingest queued transaction: %w", err)
	}

	slog.InfoContext(ctx, "Queued transaction ingested",
		"transaction_id", t.ID,
		"status", t.Status,
		"merchant_text", msg.MerchantText)
	return nil
}
