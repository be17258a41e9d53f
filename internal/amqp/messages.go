package amqp

import (
	"encoding/json"
	"time"
)

// Message kinds understood by the refresh worker.
const (
	KindRecalc = "recalc"
	KindImport = "import"
)

// RefreshMessage asks the worker to run the post-mutation recalculation
// sequence. It carries member codes only; the worker reads current store
// state, so a stale redelivery converges to the same result.
type RefreshMessage struct {
	Kind        string    `json:"kind"`
	MemberCodes []string  `json:"memberCodes,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewRecalcMessage builds a recalc request for the given member codes.
// Empty codes still means "refresh the global rollup and fund".
func NewRecalcMessage(memberCodes []string) *RefreshMessage {
	return &RefreshMessage{
		Kind:        KindRecalc,
		MemberCodes: memberCodes,
		Timestamp:   time.Now(),
	}
}

// NewImportMessage builds a full sheet import request.
func NewImportMessage() *RefreshMessage {
	return &RefreshMessage{Kind: KindImport, Timestamp: time.Now()}
}

func (m *RefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RefreshMessageFromJSON(data []byte) (*RefreshMessage, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
