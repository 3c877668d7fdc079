package services

import (
	"errors"
	"testing"
	"time"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newTradingService(db *gorm.DB) *TradingService {
	return NewTradingService(db, NewSessionService(db), decimal.RequireFromString("100.00"))
}

func amount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad amount %q: %v", s, err)
	}
	return d
}

func TestGetOrCreateTraderSeedsBalance(t *testing.T) {
	db := setupTestDB(t)
	service := newTradingService(db)

	trader, err := service.GetOrCreateTrader(1, "listener")
	if err != nil {
		t.Fatalf("GetOrCreateTrader failed: %v", err)
	}
	if !trader.Balance.Equal(amount(t, "100.00")) {
		t.Errorf("expected initial balance 100.00, got %s", trader.Balance)
	}

	again, err := service.GetOrCreateTrader(1, "listener")
	if err != nil {
		t.Fatalf("second GetOrCreateTrader failed: %v", err)
	}
	if again.ID != trader.ID {
		t.Error("expected the same trader row on repeat lookup")
	}
}

func TestPlaceTradeAmountBounds(t *testing.T) {
	db := setupTestDB(t)
	service := newTradingService(db)
	session := createLiveSession(t, db)

	cases := []struct {
		amount string
		ok     bool
	}{
		{"0", false},
		{"-5", false},
		{"50.01", false},
		{"0.01", true},
	}
	for _, tc := range cases {
		_, err := service.PlaceTrade(1, "listener", session.ID, "over", amount(t, tc.amount))
		if tc.ok && err != nil {
			t.Errorf("amount %s: unexpected error %v", tc.amount, err)
		}
		if !tc.ok && !errors.Is(err, ErrValidation) {
			t.Errorf("amount %s: expected ErrValidation, got %v", tc.amount, err)
		}
	}
}

func TestPlaceTradeMaxAmountAccepted(t *testing.T) {
	db := setupTestDB(t)
	service := newTradingService(db)
	session := createLiveSession(t, db)

	trade, err := service.PlaceTrade(1, "listener", session.ID, "under", amount(t, "50"))
	if err != nil {
		t.Fatalf("PlaceTrade at the 50 cap failed: %v", err)
	}
	if !trade.Amount.Equal(amount(t, "50")) {
		t.Errorf("expected amount 50, got %s", trade.Amount)
	}
}

func TestPlaceTradeRejectsBadDirection(t *testing.T) {
	db := setupTestDB(t)
	service := newTradingService(db)
	session := createLiveSession(t, db)

	_, err := service.PlaceTrade(1, "listener", session.ID, "sideways", amount(t, "10"))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestPlaceTradeEntryDefaultsToMidpoint(t *testing.T) {
	db := setupTestDB(t)
	service := newTradingService(db)
	session := createLiveSession(t, db)

	trade, err := service.PlaceTrade(1, "listener", session.ID, "over", amount(t, "10"))
	if err != nil {
		t.Fatalf("PlaceTrade failed: %v", err)
	}
	if trade.EntrySentiment != 50 {
		t.Errorf("expected default entry 50 with no ratings, got %f", trade.EntrySentiment)
	}
}

func TestPlaceTradeEntryTracksConsensus(t *testing.T) {
	db := setupTestDB(t)
	service := newTradingService(db)
	session := createLiveSession(t, db)
	judge := createTestJudge(t, db, 5)
	appendSnapshot(t, db, session.ID, judge.ID, 72, time.Now())

	trade, err := service.PlaceTrade(1, "listener", session.ID, "over", amount(t, "10"))
	if err != nil {
		t.Fatalf("PlaceTrade failed: %v", err)
	}
	if trade.EntrySentiment != 72 {
		t.Errorf("expected entry from consensus 72, got %f", trade.EntrySentiment)
	}
}

func TestPlaceTradeDebitsBalance(t *testing.T) {
	db := setupTestDB(t)
	service := newTradingService(db)
	session := createLiveSession(t, db)

	if _, err := service.PlaceTrade(1, "listener", session.ID, "over", amount(t, "10")); err != nil {
		t.Fatalf("PlaceTrade failed: %v", err)
	}

	var trader models.Trader
	if err := db.Where("user_id = ? AND user_role = ?", 1, "listener").First(&trader).Error; err != nil {
		t.Fatalf("failed to load trader: %v", err)
	}
	if !trader.Balance.Equal(amount(t, "90")) {
		t.Errorf("expected balance 90 after debit, got %s", trader.Balance)
	}
	if trader.TotalTrades != 1 {
		t.Errorf("expected total trades 1, got %d", trader.TotalTrades)
	}
	if trader.LastTradeAt == nil {
		t.Error("expected last trade timestamp to be set")
	}
}

func TestPlaceTradeRejectsDuplicatePending(t *testing.T) {
	db := setupTestDB(t)
	service := newTradingService(db)
	session := createLiveSession(t, db)

	if _, err := service.PlaceTrade(1, "listener", session.ID, "over", amount(t, "10")); err != nil {
		t.Fatalf("first PlaceTrade failed: %v", err)
	}
	_, err := service.PlaceTrade(1, "listener", session.ID, "under", amount(t, "5"))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate pending trade, got %v", err)
	}

	// Same user under a different role is a distinct position
	if _, err := service.PlaceTrade(1, "creator", session.ID, "under", amount(t, "5")); err != nil {
		t.Errorf("creator role trade failed: %v", err)
	}
}

func TestPlaceTradeInsufficientBalance(t *testing.T) {
	db := setupTestDB(t)
	service := newTradingService(db)
	session := createLiveSession(t, db)

	trader, err := service.GetOrCreateTrader(1, "listener")
	if err != nil {
		t.Fatalf("GetOrCreateTrader failed: %v", err)
	}
	db.Model(&models.Trader{}).Where("id = ?", trader.ID).
		Update("balance", amount(t, "4.99"))

	_, err = service.PlaceTrade(1, "listener", session.ID, "over", amount(t, "5"))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestPlaceTradeRejectsNonLiveSession(t *testing.T) {
	db := setupTestDB(t)
	service := newTradingService(db)
	song := createTestSong(t, db, "Scheduled Track")
	sessions := NewSessionService(db)
	session, err := sessions.CreateSession(song.ID, "", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	_, err = service.PlaceTrade(1, "listener", session.ID, "over", amount(t, "10"))
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for scheduled session, got %v", err)
	}
}

func TestPlaceTradeRejectsClosedWindow(t *testing.T) {
	db := setupTestDB(t)
	service := newTradingService(db)
	session := createLiveSession(t, db)

	past := time.Now().Add(-time.Minute)
	db.Model(&models.JudgingSession{}).Where("id = ?", session.ID).
		Update("trading_window_end", past)

	_, err := service.PlaceTrade(1, "listener", session.ID, "over", amount(t, "10"))
	if !errors.Is(err, ErrTradingClosed) {
		t.Errorf("expected ErrTradingClosed, got %v", err)
	}
}

func TestActiveTradesOnlyPending(t *testing.T) {
	db := setupTestDB(t)
	service := newTradingService(db)
	first := createLiveSession(t, db)
	second := createLiveSession(t, db)

	tradeA, err := service.PlaceTrade(1, "listener", first.ID, "over", amount(t, "10"))
	if err != nil {
		t.Fatalf("PlaceTrade failed: %v", err)
	}
	if _, err := service.PlaceTrade(1, "listener", second.ID, "under", amount(t, "5")); err != nil {
		t.Fatalf("PlaceTrade failed: %v", err)
	}

	db.Model(&models.Trade{}).Where("id = ?", tradeA.ID).
		Update("status", models.TradeStatusSettled)

	active, err := service.ActiveTrades(1, "listener")
	if err != nil {
		t.Fatalf("ActiveTrades failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 pending trade, got %d", len(active))
	}
	if active[0].SessionID != second.ID {
		t.Errorf("wrong trade returned: session %d", active[0].SessionID)
	}
}

func TestTradeHistoryPagination(t *testing.T) {
	db := setupTestDB(t)
	service := newTradingService(db)

	for i := 0; i < 3; i++ {
		session := createLiveSession(t, db)
		if _, err := service.PlaceTrade(1, "listener", session.ID, "over", amount(t, "1")); err != nil {
			t.Fatalf("PlaceTrade failed: %v", err)
		}
	}

	page, total, err := service.TradeHistory(1, "listener", 1, 2)
	if err != nil {
		t.Fatalf("TradeHistory failed: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	if len(page) != 2 {
		t.Errorf("expected page of 2, got %d", len(page))
	}

	second, _, err := service.TradeHistory(1, "listener", 2, 2)
	if err != nil {
		t.Fatalf("TradeHistory failed: %v", err)
	}
	if len(second) != 1 {
		t.Errorf("expected 1 trade on page 2, got %d", len(second))
	}

	// Out-of-range inputs fall back to sane defaults
	defaulted, _, err := service.TradeHistory(1, "listener", 0, 500)
	if err != nil {
		t.Fatalf("TradeHistory failed: %v", err)
	}
	if len(defaulted) != 3 {
		t.Errorf("expected all 3 trades, got %d", len(defaulted))
	}
}
