package amqp

import (
	"encoding/json"
	"time"
)

// TransactionIngestMessage carries one raw bank transaction into the
// classification pipeline. Dates travel as ISO strings so the payload stays
// readable in the broker UI.
type TransactionIngestMessage struct {
	MerchantText string    `json:"merchant_text"`
	AmountCents  int64     `json:"amount_cents"`
	Date         string    `json:"date"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewTransactionIngestMessage(merchantText string, amountCents int64, date string) *TransactionIngestMessage {
	return &TransactionIngestMessage{
		MerchantText: merchantText,
		AmountCents:  amountCents,
		Date:         date,
		Timestamp:    time.Now(),
	}
}

func (m *TransactionIngestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionIngestMessageFromJSON(data []byte) (*TransactionIngestMessage, error) {
	var msg TransactionIngestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SnapshotExportMessage asks the export worker to append the budget state as
// of the given date to the spreadsheet. The worker reads the full state from
// the service, so the message stays minimal.
type SnapshotExportMessage struct {
	AsOf      string    `json:"as_of"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSnapshotExportMessage(asOf string) *SnapshotExportMessage {
	return &SnapshotExportMessage{
		AsOf:      asOf,
		Timestamp: time.Now(),
	}
}

func (m *SnapshotExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SnapshotExportMessageFromJSON(data []byte) (*SnapshotExportMessage, error) {
	var msg SnapshotExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
