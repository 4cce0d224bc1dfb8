package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// TransactionsIngestedMessage announces that new transactions landed for an account.
// The worker reloads what it needs from the store.
type TransactionsIngestedMessage struct {
	AccountID int64     `json:"account_id"`
	Inserted  int       `json:"inserted"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionsIngestedMessage(accountID int64, inserted int) *TransactionsIngestedMessage {
	return &TransactionsIngestedMessage{
		AccountID: accountID,
		Inserted:  inserted,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionsIngestedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionsIngestedMessageFromJSON decodes and checks a message body.
func TransactionsIngestedMessageFromJSON(data []byte) (*TransactionsIngestedMessage, error) {
	var msg TransactionsIngestedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.AccountID <= 0 {
		return nil, errors.New("message has no account id")
	}
	return &msg, nil
}
