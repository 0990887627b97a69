package model

// Instance is the creation record for a deployed engine, used for
// external instance discovery.
type Instance struct {
	ID         string `json:"id"`
	Owner      string `json:"owner"`
	BaseToken  string `json:"base_token"`
	QuoteToken string `json:"quote_token"`
	CreatedAt  string `json:"created_at"`
}
