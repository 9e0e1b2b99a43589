package quoteModel

import "github.com/shopspring/decimal"

type ChartResponse struct {
	Chart Chart `json:"chart"`
}

type Chart struct {
	Result []ChartResult `json:"result"`
	Error  *ChartError   `json:"error"`
}

type ChartResult struct {
	Meta ChartMeta `json:"meta"`
}

type ChartMeta struct {
	Symbol             string           `json:"symbol"`
	Currency           string           `json:"currency"`
	RegularMarketPrice *decimal.Decimal `json:"regularMarketPrice"`
}

type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
