package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConvertTrade() ConvertTrade {
	return ConvertTrade{
		QuoteID:      "quote1",
		OrderID:      940708407462087195,
		OrderStatus:  "SUCCESS",
		FromAsset:    "USDT",
		FromAmount:   20,
		ToAsset:      "BNB",
		ToAmount:     0.06154036,
		Ratio:        0.00307702,
		InverseRatio: 324.99,
		CreateTime:   testCreateTime,
		OrderType:    "MARKET",
		Side:         "BUY",
	}
}

func TestConvertTrade_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(tr *ConvertTrade)
		expectError bool
		errorField  string
	}{
		{
			name:        "valid_trade",
			mutate:      func(tr *ConvertTrade) {},
			expectError: false,
		},
		{
			name:        "missing_quote_id",
			mutate:      func(tr *ConvertTrade) { tr.QuoteID = "" },
			expectError: true,
			errorField:  "quoteId",
		},
		{
			name:        "missing_from_asset",
			mutate:      func(tr *ConvertTrade) { tr.FromAsset = "" },
			expectError: true,
			errorField:  "fromAsset",
		},
		{
			name:        "missing_to_asset",
			mutate:      func(tr *ConvertTrade) { tr.ToAsset = "" },
			expectError: true,
			errorField:  "toAsset",
		},
		{
			name:        "negative_from_amount",
			mutate:      func(tr *ConvertTrade) { tr.FromAmount = -20 },
			expectError: true,
			errorField:  "fromAmount",
		},
		{
			name:        "negative_ratio",
			mutate:      func(tr *ConvertTrade) { tr.Ratio = -1 },
			expectError: true,
			errorField:  "ratio",
		},
		{
			name:        "zero_create_time",
			mutate:      func(tr *ConvertTrade) { tr.CreateTime = 0 },
			expectError: true,
			errorField:  "createTime",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := validConvertTrade()
			tt.mutate(&tr)

			err := tr.Validate()
			if tt.expectError {
				require.Error(t, err)
				var validationErr *ValidationError
				assert.ErrorAs(t, err, &validationErr)
				assert.Equal(t, tt.errorField, validationErr.Field)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConvertTrade_Key(t *testing.T) {
	tr := validConvertTrade()
	assert.Equal(t, "quote1", tr.Key())
}

func TestConvertTrade_String(t *testing.T) {
	tr := validConvertTrade()
	s := tr.String()
	assert.Contains(t, s, "quote1")
	assert.Contains(t, s, "USDT")
	assert.Contains(t, s, "BNB")
}
