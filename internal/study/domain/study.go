package domain

import (
	"errors"
	"fmt"
	"time"
)

// TradeAction is the recommendation attached to a study.
type TradeAction string

const (
	TradeActionBuy  TradeAction = "BUY"
	TradeActionSell TradeAction = "SELL"
	TradeActionHold TradeAction = "HOLD"
)

// Study is a stock analysis published by a fully verified Trusted Associate.
type Study struct {
	ID            string
	AccountID     string // authoring TA
	StockExchange string
	StockName     string
	StockIndex    string
	CurrentPrice  float64
	ExpectedPrice float64
	Action        TradeAction
	Analysis      string
	CreatedAt     time.Time
}

// Validate validates the study for persistence.
func (s *Study) Validate() error {
	if s.AccountID == "" {
		return errors.New("author account is required")
	}
	if s.StockExchange == "" {
		return errors.New("stock exchange is required")
	}
	if s.StockName == "" {
		return errors.New("stock name is required")
	}
	if s.CurrentPrice <= 0 {
		return errors.New("current price must be positive")
	}
	if s.ExpectedPrice <= 0 {
		return errors.New("expected price must be positive")
	}
	switch s.Action {
	case TradeActionBuy, TradeActionSell, TradeActionHold:
	default:
		return fmt.Errorf("invalid action %q", s.Action)
	}
	return nil
}
