package services

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Trade entry defaults when no judge has rated yet: the midpoint encodes a
// "no information" prior.
const defaultEntrySentiment = 50.0

var (
	maxTradeAmount      = decimal.NewFromInt(50)
	winPayoutMultiplier = decimal.RequireFromString("1.8")
)

// TradingService accepts directional wagers against a session's consensus
// and manages trader balances.
type TradingService struct {
	db             *gorm.DB
	sessions       *SessionService
	initialBalance decimal.Decimal
	mu             sync.Mutex
}

func NewTradingService(db *gorm.DB, sessions *SessionService, initialBalance decimal.Decimal) *TradingService {
	return &TradingService{
		db:             db,
		sessions:       sessions,
		initialBalance: initialBalance,
	}
}

// GetOrCreateTrader lazily creates the trader profile for an identity with
// the initial balance.
func (s *TradingService) GetOrCreateTrader(userID uint, userRole string) (*models.Trader, error) {
	var trader models.Trader
	err := s.db.Where("user_id = ? AND user_role = ?", userID, userRole).First(&trader).Error
	if err == nil {
		return &trader, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	trader = models.Trader{
		UserID:          userID,
		UserRole:        userRole,
		Balance:         s.initialBalance,
		TotalProfitLoss: decimal.Zero,
	}
	if err := s.db.Create(&trader).Error; err != nil {
		return nil, fmt.Errorf("failed to create trader: %w", err)
	}

	return &trader, nil
}

// PlaceTrade places a directional wager. The balance debit and the trade
// insert are one unit of work: a debit without a trade row is a
// data-integrity violation, so both run in a single transaction. The mutex
// serializes the check-then-insert sequence within this process; the unique
// index on (session_id, user_id, user_role) is the cross-process backstop.
func (s *TradingService) PlaceTrade(userID uint, userRole string, sessionID uint, direction string, amount decimal.Decimal) (*models.Trade, error) {
	dir := models.TradeDirection(direction)
	if dir != models.TradeDirectionOver && dir != models.TradeDirectionUnder {
		return nil, fmt.Errorf("%w: direction must be over or under", ErrValidation)
	}
	if !amount.IsPositive() || amount.GreaterThan(maxTradeAmount) {
		return nil, fmt.Errorf("%w: amount must be greater than 0 and at most 50", ErrValidation)
	}

	session, err := s.sessions.GetSessionRecord(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusLive {
		return nil, fmt.Errorf("%w: session is not live", ErrInvalidState)
	}
	if session.TradingWindowEnd != nil && time.Now().After(*session.TradingWindowEnd) {
		return nil, ErrTradingClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trader, err := s.GetOrCreateTrader(userID, userRole)
	if err != nil {
		return nil, err
	}
	if trader.Balance.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}

	var existing models.Trade
	err = s.db.Where("session_id = ? AND user_id = ? AND user_role = ? AND status = ?",
		sessionID, userID, userRole, models.TradeStatusPending).First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("%w: a pending trade already exists for this session", ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	entrySentiment := defaultEntrySentiment
	consensus, _, err := s.sessions.Consensus(sessionID)
	if err != nil {
		return nil, err
	}
	if consensus != nil {
		entrySentiment = *consensus
	}

	now := time.Now()
	trade := models.Trade{
		ID:             uuid.New(),
		SessionID:      sessionID,
		UserID:         userID,
		UserRole:       userRole,
		TraderID:       trader.ID,
		Direction:      dir,
		EntrySentiment: entrySentiment,
		Amount:         amount,
		Payout:         decimal.Zero,
		Status:         models.TradeStatusPending,
		CreatedAt:      now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Trader{}).Where("id = ?", trader.ID).
			Updates(map[string]interface{}{
				"balance":       gorm.Expr("balance - ?", amount),
				"total_trades":  gorm.Expr("total_trades + 1"),
				"last_trade_at": now,
			}).Error; err != nil {
			return err
		}

		return tx.Create(&trade).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to place trade: %w", err)
	}

	log.Printf("[Trade] user %d (%s) placed %s %s on session %d at entry %.2f",
		userID, userRole, amount.String(), dir, sessionID, entrySentiment)

	return &trade, nil
}

// ActiveTrades returns the identity's pending trades, newest first
func (s *TradingService) ActiveTrades(userID uint, userRole string) ([]models.Trade, error) {
	var trades []models.Trade
	if err := s.db.Where("user_id = ? AND user_role = ? AND status = ?",
		userID, userRole, models.TradeStatusPending).
		Order("created_at DESC").Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// TradeHistory returns a page of the identity's trades, newest first.
// Limit is capped at 50.
func (s *TradingService) TradeHistory(userID uint, userRole string, page, limit int) ([]models.Trade, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	query := s.db.Model(&models.Trade{}).
		Where("user_id = ? AND user_role = ?", userID, userRole)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var trades []models.Trade
	if err := query.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&trades).Error; err != nil {
		return nil, 0, err
	}

	return trades, total, nil
}
