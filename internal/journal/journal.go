package journal

import "gridLadder/internal/model"

// Sink defines a sink for executed trade records.
type Sink interface {
	PutTradeBatch(trades []model.TradeRecord) error
}

// Discard drops all records, for setups that don't journal.
type Discard struct{}

func (Discard) PutTradeBatch([]model.TradeRecord) error { return nil }
