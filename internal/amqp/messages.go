package amqp

import (
	"encoding/json"
	"time"

	"splitledger/internal/core"
)

// TransactionsAppendedMessage announces one appended batch. It carries
// identifiers only; consumers read the full records from the ledger.
type TransactionsAppendedMessage struct {
	IDs        []string  `json:"ids"`
	Owners     []string  `json:"owners"`
	Categories []string  `json:"categories"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewTransactionsAppendedMessage builds the message for txs. Owners are
// distinct, in first-seen order; categories is the registry after the append.
func NewTransactionsAppendedMessage(txs []core.Transaction, categories []string) *TransactionsAppendedMessage {
	msg := &TransactionsAppendedMessage{
		IDs:        make([]string, 0, len(txs)),
		Owners:     make([]string, 0, 1),
		Categories: append([]string{}, categories...),
		Timestamp:  time.Now(),
	}
	seen := map[string]struct{}{}
	for _, t := range txs {
		msg.IDs = append(msg.IDs, t.ID)
		if _, ok := seen[t.Owner]; ok {
			continue
		}
		seen[t.Owner] = struct{}{}
		msg.Owners = append(msg.Owners, t.Owner)
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *TransactionsAppendedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionsAppendedMessageFromJSON decodes a message published by Client.
func TransactionsAppendedMessageFromJSON(data []byte) (*TransactionsAppendedMessage, error) {
	var msg TransactionsAppendedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
