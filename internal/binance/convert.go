package binance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mlukasik/go-binance-export/internal/models"
)

// Wire-to-model conversion. Decimal strings are parsed exactly and only then
// narrowed to float64 for the storage schema; a missing or unparseable field
// fails the whole record rather than producing a partial row.

func convertFiatOrder(order fiatOrder) (*models.FiatWithdrawal, error) {
	indicatedAmount, err := parseAmount("indicatedAmount", order.IndicatedAmount)
	if err != nil {
		return nil, fmt.Errorf("fiat order %q: %w", order.OrderNo, err)
	}

	amount, err := parseAmount("amount", order.Amount)
	if err != nil {
		return nil, fmt.Errorf("fiat order %q: %w", order.OrderNo, err)
	}

	totalFee, err := parseAmount("totalFee", order.TotalFee)
	if err != nil {
		return nil, fmt.Errorf("fiat order %q: %w", order.OrderNo, err)
	}

	withdrawal := &models.FiatWithdrawal{
		OrderNo:         order.OrderNo,
		FiatCurrency:    order.FiatCurrency,
		IndicatedAmount: indicatedAmount,
		Amount:          amount,
		TotalFee:        totalFee,
		Method:          order.Method,
		Status:          order.Status,
		CreateTime:      order.CreateTime,
		UpdateTime:      order.UpdateTime,
	}

	if err := withdrawal.Validate(); err != nil {
		return nil, fmt.Errorf("fiat order %q: %w", order.OrderNo, err)
	}

	return withdrawal, nil
}

func convertConvertTrade(wire convertTrade) (*models.ConvertTrade, error) {
	fromAmount, err := parseAmount("fromAmount", wire.FromAmount)
	if err != nil {
		return nil, fmt.Errorf("convert trade %q: %w", wire.QuoteID, err)
	}

	toAmount, err := parseAmount("toAmount", wire.ToAmount)
	if err != nil {
		return nil, fmt.Errorf("convert trade %q: %w", wire.QuoteID, err)
	}

	ratio, err := parseAmount("ratio", wire.Ratio)
	if err != nil {
		return nil, fmt.Errorf("convert trade %q: %w", wire.QuoteID, err)
	}

	inverseRatio, err := parseAmount("inverseRatio", wire.InverseRatio)
	if err != nil {
		return nil, fmt.Errorf("convert trade %q: %w", wire.QuoteID, err)
	}

	trade := &models.ConvertTrade{
		QuoteID:      wire.QuoteID,
		OrderID:      wire.OrderID,
		OrderStatus:  wire.OrderStatus,
		FromAsset:    wire.FromAsset,
		FromAmount:   fromAmount,
		ToAsset:      wire.ToAsset,
		ToAmount:     toAmount,
		Ratio:        ratio,
		InverseRatio: inverseRatio,
		CreateTime:   wire.CreateTime,
		OrderType:    wire.OrderType,
		Side:         wire.Side,
	}

	if err := trade.Validate(); err != nil {
		return nil, fmt.Errorf("convert trade %q: %w", wire.QuoteID, err)
	}

	return trade, nil
}

func convertDeposit(wire depositRecord) (*models.Deposit, error) {
	amount, err := parseAmount("amount", wire.Amount)
	if err != nil {
		return nil, fmt.Errorf("deposit %q: %w", wire.ID, err)
	}

	deposit := &models.Deposit{
		ID:            wire.ID,
		Amount:        amount,
		Coin:          wire.Coin,
		Network:       wire.Network,
		Status:        wire.Status,
		Address:       wire.Address,
		AddressTag:    wire.AddressTag,
		TxID:          wire.TxID,
		InsertTime:    wire.InsertTime,
		TransferType:  wire.TransferType,
		ConfirmTimes:  wire.ConfirmTimes,
		UnlockConfirm: wire.UnlockConfirm,
		WalletType:    wire.WalletType,
	}

	if err := deposit.Validate(); err != nil {
		return nil, fmt.Errorf("deposit %q: %w", wire.ID, err)
	}

	return deposit, nil
}

// parseAmount parses a decimal string field into a float64, reporting a
// ValidationError naming the field when the value is missing or malformed.
func parseAmount(field, value string) (float64, error) {
	if value == "" {
		return 0, &models.ValidationError{Field: field, Message: "missing numeric value"}
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, &models.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid numeric value %q: %v", value, err),
		}
	}

	return d.InexactFloat64(), nil
}
