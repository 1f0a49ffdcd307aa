package ledger

import (
	"errors"
	"time"
)

// USD is the valuation currency for portfolios and the stoploss guard.
const USD = "USD"

// Kind classifies a transaction record.
type Kind string

const (
	KindTrade      Kind = "trade"
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Transaction is one immutable entry in a user's append-only history.
// Quantity is in base-asset units; Price is quote per base unit.
// The USD snapshot fields capture both assets' USD prices at execution time
// for later analytics; nil when no USD price was observable.
type Transaction struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Kind          Kind      `json:"kind"`
	BaseAsset     string    `json:"base_asset"`
	QuoteAsset    string    `json:"quote_asset"`
	Side          Side      `json:"side"`
	Quantity      float64   `json:"quantity"`
	Price         float64   `json:"price"`
	Timestamp     time.Time `json:"timestamp"`
	BaseUSDPrice  *float64  `json:"base_usd_price,omitempty"`
	QuoteUSDPrice *float64  `json:"quote_usd_price,omitempty"`
	ExecutedByBot string    `json:"executed_by_bot,omitempty"`
}

// Account is an independent snapshot of one user's holdings.
type Account struct {
	UserID       string             `json:"user_id"`
	Username     string             `json:"username"`
	PasswordHash string             `json:"-"`
	Balances     map[string]float64 `json:"balances"`
	History      []Transaction      `json:"history"`
}

// Rejections are recoverable validation failures; they never corrupt state.
var (
	ErrUserNotFound             = errors.New("user not found")
	ErrUserExists               = errors.New("username already exists")
	ErrInvalidQuantity          = errors.New("quantity must be positive")
	ErrInsufficientFunds        = errors.New("insufficient quote balance")
	ErrInsufficientAssets       = errors.New("insufficient base balance")
	ErrDepositTooSmall          = errors.New("deposit below minimum")
	ErrDepositTooLarge          = errors.New("deposit above maximum")
	ErrWithdrawalExceedsBalance = errors.New("withdrawal exceeds balance")
)

// Deposit bounds carried over from the simulator's account rules.
const (
	MinDeposit = 10.0
	MaxDeposit = 100000.0
)
