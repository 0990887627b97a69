package model

import "encoding/json"

// TradeRecord is the normalized representation of an executed buy or
// sell for journaling. Amounts are decimal strings at token precision.
type TradeRecord struct {
	InstanceID  string `json:"instance_id"`
	Side        string `json:"side"`
	Caller      string `json:"caller"`
	BaseAmount  string `json:"base_amount"`
	QuoteAmount string `json:"quote_amount"`
	Cursor      int    `json:"cursor"`
	LadderReset bool   `json:"ladder_reset"`
	Timestamp   string `json:"timestamp"`
}

// MarshalJSON ensures TradeRecord is encoded with stable field names.
func (tr TradeRecord) MarshalJSON() ([]byte, error) {
	type Alias TradeRecord
	return json.Marshal(Alias(tr))
}

// UnmarshalJSON decodes a TradeRecord from JSON.
func (tr *TradeRecord) UnmarshalJSON(data []byte) error {
	type Alias TradeRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*tr = TradeRecord(a)
	return nil
}

// Trade sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)
