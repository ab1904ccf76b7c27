package binance

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mlukasik/go-binance-export/internal/models"
)

const (
	// Maximum page sizes per endpoint. One maximum-size page covers a month
	// window of personal account history, so the exporter never paginates.
	fiatOrdersPageSize    = 500
	convertTradesPageSize = 1000
	depositsPageSize      = 1000

	// transactionTypeWithdraw selects withdrawals from the fiat order history.
	transactionTypeWithdraw = "1-withdraw"
)

// Wire shapes for the history endpoints. Monetary fields arrive as decimal
// strings and are converted in convert.go before records leave this package.

type fiatOrder struct {
	OrderNo         string `json:"orderNo"`
	FiatCurrency    string `json:"fiatCurrency"`
	IndicatedAmount string `json:"indicatedAmount"`
	Amount          string `json:"amount"`
	TotalFee        string `json:"totalFee"`
	Method          string `json:"method"`
	Status          string `json:"status"`
	CreateTime      int64  `json:"createTime"`
	UpdateTime      int64  `json:"updateTime"`
}

type convertTrade struct {
	QuoteID      string `json:"quoteId"`
	OrderID      int64  `json:"orderId"`
	OrderStatus  string `json:"orderStatus"`
	FromAsset    string `json:"fromAsset"`
	FromAmount   string `json:"fromAmount"`
	ToAsset      string `json:"toAsset"`
	ToAmount     string `json:"toAmount"`
	Ratio        string `json:"ratio"`
	InverseRatio string `json:"inverseRatio"`
	CreateTime   int64  `json:"createTime"`
	OrderType    string `json:"orderType"`
	Side         string `json:"side"`
}

type depositRecord struct {
	ID            string `json:"id"`
	Amount        string `json:"amount"`
	Coin          string `json:"coin"`
	Network       string `json:"network"`
	Status        int64  `json:"status"`
	Address       string `json:"address"`
	AddressTag    string `json:"addressTag"`
	TxID          string `json:"txId"`
	InsertTime    int64  `json:"insertTime"`
	TransferType  int64  `json:"transferType"`
	ConfirmTimes  string `json:"confirmTimes"`
	UnlockConfirm int64  `json:"unlockConfirm"`
	WalletType    int64  `json:"walletType"`
}

// FiatWithdrawals returns the fiat withdrawal orders created inside
// [startTime, endTime), both bounds in millisecond epoch. The fiat endpoint
// names its range parameters beginTime/endTime.
func (c *Client) FiatWithdrawals(ctx context.Context, startTime, endTime int64) ([]models.FiatWithdrawal, error) {
	params := url.Values{}
	params.Set("transactionType", transactionTypeWithdraw)
	params.Set("beginTime", strconv.FormatInt(startTime, 10))
	params.Set("endTime", strconv.FormatInt(endTime, 10))
	params.Set("rows", strconv.Itoa(fiatOrdersPageSize))

	body, _, err := c.do(ctx, fiatOrdersEndpoint, params, true)
	if err != nil {
		return nil, err
	}

	orders, err := unwrapData[fiatOrder](body)
	if err != nil {
		return nil, fmt.Errorf("fiat orders: %w", err)
	}

	withdrawals := make([]models.FiatWithdrawal, 0, len(orders))
	for _, order := range orders {
		withdrawal, err := convertFiatOrder(order)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, *withdrawal)
	}

	return withdrawals, nil
}

// ConvertTrades returns the convert trades created inside [startTime,
// endTime), both bounds in millisecond epoch.
func (c *Client) ConvertTrades(ctx context.Context, startTime, endTime int64) ([]models.ConvertTrade, error) {
	params := url.Values{}
	params.Set("startTime", strconv.FormatInt(startTime, 10))
	params.Set("endTime", strconv.FormatInt(endTime, 10))
	params.Set("limit", strconv.Itoa(convertTradesPageSize))

	body, _, err := c.do(ctx, convertTradesEndpoint, params, true)
	if err != nil {
		return nil, err
	}

	wireTrades, err := unwrapList[convertTrade](body)
	if err != nil {
		return nil, fmt.Errorf("convert trades: %w", err)
	}

	trades := make([]models.ConvertTrade, 0, len(wireTrades))
	for _, wire := range wireTrades {
		trade, err := convertConvertTrade(wire)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *trade)
	}

	return trades, nil
}

// Deposits returns the crypto deposits credited inside [startTime, endTime),
// both bounds in millisecond epoch.
func (c *Client) Deposits(ctx context.Context, startTime, endTime int64) ([]models.Deposit, error) {
	params := url.Values{}
	params.Set("startTime", strconv.FormatInt(startTime, 10))
	params.Set("endTime", strconv.FormatInt(endTime, 10))
	params.Set("limit", strconv.Itoa(depositsPageSize))

	body, _, err := c.do(ctx, depositHistoryEndpoint, params, true)
	if err != nil {
		return nil, err
	}

	wireDeposits, err := unwrapArray[depositRecord](body)
	if err != nil {
		return nil, fmt.Errorf("deposit history: %w", err)
	}

	deposits := make([]models.Deposit, 0, len(wireDeposits))
	for _, wire := range wireDeposits {
		deposit, err := convertDeposit(wire)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, *deposit)
	}

	return deposits, nil
}
