package binance

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// The account-history endpoints answer in exactly three envelope shapes. Each
// shape has one named decoder here; endpoint methods pick theirs and nothing
// else in the codebase needs to know how a kind nests its records.

// dataEnvelope is the fiat order-history shape: records nested under "data"
// alongside a provider status code.
type dataEnvelope[T any] struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    []T    `json:"data"`
	Total   int    `json:"total"`
	Success bool   `json:"success"`
}

// listEnvelope is the convert trade-flow shape: records nested under "list"
// alongside the echoed query range.
type listEnvelope[T any] struct {
	List      []T   `json:"list"`
	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`
	Limit     int   `json:"limit"`
	MoreData  bool  `json:"moreData"`
}

// unwrapData extracts the record list from a "data" envelope. A null or
// missing list decodes to zero records, which is how the provider reports an
// empty window.
func unwrapData[T any](body []byte) ([]T, error) {
	var envelope dataEnvelope[T]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse data envelope: %w", err)
	}
	return envelope.Data, nil
}

// unwrapList extracts the record list from a "list" envelope. A null or
// missing list decodes to zero records.
func unwrapList[T any](body []byte) ([]T, error) {
	var envelope listEnvelope[T]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse list envelope: %w", err)
	}
	return envelope.List, nil
}

// unwrapArray decodes a bare JSON array of records, the deposit-history
// shape. A null body decodes to zero records.
func unwrapArray[T any](body []byte) ([]T, error) {
	var records []T
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to parse record array: %w", err)
	}
	return records, nil
}
