package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TradeDirection string

const (
	TradeDirectionOver  TradeDirection = "over"
	TradeDirectionUnder TradeDirection = "under"
)

type TradeStatus string

const (
	TradeStatusPending TradeStatus = "pending"
	TradeStatusSettled TradeStatus = "settled"
)

type TradeOutcome string

const (
	TradeOutcomeWin  TradeOutcome = "win"
	TradeOutcomeLoss TradeOutcome = "loss"
	TradeOutcomePush TradeOutcome = "push"
)

// Trader holds the money-like balance and lifetime stats for one identity.
// Created lazily on first profile fetch or first trade.
type Trader struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;uniqueIndex:idx_traders_identity" json:"userId"`
	UserRole        string          `gorm:"size:20;not null;uniqueIndex:idx_traders_identity" json:"userRole"`
	Balance         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance"`
	TotalTrades     int64           `gorm:"default:0" json:"totalTrades"`
	WinningTrades   int64           `gorm:"default:0" json:"winningTrades"`
	LosingTrades    int64           `gorm:"default:0" json:"losingTrades"`
	TotalProfitLoss decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"totalProfitLoss"`
	CurrentStreak   int             `gorm:"default:0" json:"currentStreak"`
	BestStreak      int             `gorm:"default:0" json:"bestStreak"`
	LastTradeAt     *time.Time      `json:"lastTradeAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (Trader) TableName() string {
	return "traders"
}

// Trade is a directional wager against a session's consensus. The composite
// unique index backs the one-open-position-per-user-per-session invariant:
// trades are only placeable while the session is live, so one row per
// (session, identity) can ever exist.
type Trade struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID      uint            `gorm:"not null;uniqueIndex:idx_trades_position" json:"sessionId"`
	UserID         uint            `gorm:"not null;uniqueIndex:idx_trades_position" json:"userId"`
	UserRole       string          `gorm:"size:20;not null;uniqueIndex:idx_trades_position" json:"userRole"`
	TraderID       uint            `gorm:"not null;index" json:"traderId"`
	Direction      TradeDirection  `gorm:"size:10;not null" json:"direction"`
	EntrySentiment float64         `gorm:"type:decimal(5,2);not null" json:"entrySentiment"`
	FinalSentiment *float64        `gorm:"type:decimal(5,2)" json:"finalSentiment,omitempty"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Payout         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"payout"`
	Outcome        TradeOutcome    `gorm:"size:10" json:"outcome,omitempty"`
	Status         TradeStatus     `gorm:"size:10;not null;default:pending;index" json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	SettledAt      *time.Time      `json:"settledAt,omitempty"`
}

func (Trade) TableName() string {
	return "trades"
}

// PlaceTradeRequest is the trade placement payload
type PlaceTradeRequest struct {
	SessionID uint   `json:"sessionId" binding:"required"`
	Direction string `json:"direction" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
}

// SettlementResult summarizes one settled session
type SettlementResult struct {
	SessionID      uint    `json:"sessionId"`
	FinalConsensus float64 `json:"finalConsensus"`
	JudgeCount     int     `json:"judgeCount"`
	TradesSettled  int     `json:"tradesSettled"`
}

// TraderLeaderboardEntry is one row of the trader leaderboard. Identities
// are ranked per (userID, userRole), the same unit a trader record holds.
type TraderLeaderboardEntry struct {
	Rank      int             `json:"rank"`
	UserID    uint            `json:"userId"`
	UserRole  string          `json:"userRole"`
	Username  string          `json:"username"`
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Profit    decimal.Decimal `json:"profit"`
	Trades    int64           `json:"trades"`
	WinRate   float64         `json:"winRate"`
}

// JudgeLeaderboardEntry is one row of the judge leaderboard
type JudgeLeaderboardEntry struct {
	Rank           int     `json:"rank"`
	UserID         uint    `json:"userId"`
	Username       string  `json:"username"`
	FirstName      string  `json:"firstName"`
	LastName       string  `json:"lastName"`
	AccuracyScore  float64 `json:"accuracyScore"`
	SessionsJudged int64   `json:"sessionsJudged"`
	TotalRatings   int64   `json:"totalRatings"`
}
