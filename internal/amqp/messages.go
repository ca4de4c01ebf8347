package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransactionRecordedMessage announces a committed ledger row. It carries
// only identifiers; consumers load the row from the ledger.
type TransactionRecordedMessage struct {
	MessageID     string    `json:"message_id"`
	TransactionID int64     `json:"transaction_id"`
	UserID        int64     `json:"user_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(transactionID, userID int64) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		MessageID:     uuid.NewString(),
		TransactionID: transactionID,
		UserID:        userID,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
