package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/models"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/notify"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// pushThreshold: entry and final sentiment closer than this resolve as a
// push regardless of direction. Checked before win/loss so a near-exact
// match never resolves as a directional win.
const pushThreshold = 0.5

// Broadcaster fans terminal session events out to connected clients.
// The realtime hub implements it; tests may pass nil.
type Broadcaster interface {
	BroadcastSessionEnded(sessionID uint, finalConsensus float64, judgeCount, tradesSettled int)
}

// SettlementService closes a session: final consensus, trade resolution,
// trader stats, judge aggregates, terminal broadcast. The whole batch runs
// in one transaction, so a mid-flight failure rolls everything back and the
// session stays live and settleable again.
type SettlementService struct {
	db          *gorm.DB
	notifier    *notify.Notifier
	broadcaster Broadcaster
}

func NewSettlementService(db *gorm.DB, notifier *notify.Notifier, broadcaster Broadcaster) *SettlementService {
	return &SettlementService{
		db:          db,
		notifier:    notifier,
		broadcaster: broadcaster,
	}
}

// SettleSession resolves a session and every pending trade on it.
// A session may be settled once; completed is terminal.
func (s *SettlementService) SettleSession(sessionID uint) (*models.SettlementResult, error) {
	var result *models.SettlementResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var session models.JudgingSession
		if err := tx.First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: session not found", ErrNotFound)
			}
			return err
		}
		if session.Status == models.SessionStatusCompleted {
			return fmt.Errorf("%w: session already completed", ErrInvalidState)
		}

		consensus, judgeCount, err := consensusFor(tx, sessionID)
		if err != nil {
			return err
		}
		// No judges at settlement forces a defined terminal value of 0,
		// unlike the midpoint default used at trade entry.
		finalConsensus := 0.0
		if consensus != nil {
			finalConsensus = *consensus
		}

		now := time.Now()
		if err := tx.Model(&models.JudgingSession{}).Where("id = ?", sessionID).
			Updates(map[string]interface{}{
				"status":          models.SessionStatusCompleted,
				"final_consensus": finalConsensus,
				"judge_count":     judgeCount,
				"end_time":        now,
			}).Error; err != nil {
			return fmt.Errorf("failed to complete session: %w", err)
		}

		settled, err := s.resolveTrades(tx, sessionID, finalConsensus, now)
		if err != nil {
			return err
		}

		if err := s.updateJudgeAggregates(tx, sessionID, finalConsensus); err != nil {
			return err
		}

		result = &models.SettlementResult{
			SessionID:      sessionID,
			FinalConsensus: math.Round(finalConsensus*100) / 100,
			JudgeCount:     judgeCount,
			TradesSettled:  settled,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Settlement] session %d settled: consensus=%.2f judges=%d trades=%d",
		sessionID, result.FinalConsensus, result.JudgeCount, result.TradesSettled)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastSessionEnded(sessionID, result.FinalConsensus, result.JudgeCount, result.TradesSettled)
	}
	if s.notifier != nil {
		s.notifier.Dispatch(notify.Event{
			Kind:    notify.KindSessionSettled,
			Subject: "Judging session settled",
			Detail: map[string]interface{}{
				"sessionId":      result.SessionID,
				"finalConsensus": result.FinalConsensus,
				"tradesSettled":  result.TradesSettled,
			},
		})
	}

	return result, nil
}

// resolveTrades settles every pending trade on the session. Precedence:
// push, then win, then loss.
func (s *SettlementService) resolveTrades(tx *gorm.DB, sessionID uint, finalConsensus float64, now time.Time) (int, error) {
	var trades []models.Trade
	if err := tx.Where("session_id = ? AND status = ?",
		sessionID, models.TradeStatusPending).Find(&trades).Error; err != nil {
		return 0, err
	}

	for i := range trades {
		trade := &trades[i]

		outcome := resolveOutcome(trade.Direction, trade.EntrySentiment, finalConsensus)
		var payout decimal.Decimal
		switch outcome {
		case models.TradeOutcomePush:
			payout = trade.Amount
		case models.TradeOutcomeWin:
			payout = trade.Amount.Mul(winPayoutMultiplier)
		default:
			payout = decimal.Zero
		}

		if err := tx.Model(&models.Trade{}).Where("id = ?", trade.ID).
			Updates(map[string]interface{}{
				"final_sentiment": finalConsensus,
				"payout":          payout,
				"outcome":         outcome,
				"status":          models.TradeStatusSettled,
				"settled_at":      now,
			}).Error; err != nil {
			return 0, fmt.Errorf("failed to settle trade %s: %w", trade.ID, err)
		}

		if err := s.applyTradeOutcome(tx, trade, outcome, payout); err != nil {
			return 0, err
		}
	}

	return len(trades), nil
}

// resolveOutcome applies the settlement precedence to one trade
func resolveOutcome(direction models.TradeDirection, entry, final float64) models.TradeOutcome {
	if math.Abs(final-entry) < pushThreshold {
		return models.TradeOutcomePush
	}
	won := (direction == models.TradeDirectionOver && final > entry) ||
		(direction == models.TradeDirectionUnder && final < entry)
	if won {
		return models.TradeOutcomeWin
	}
	return models.TradeOutcomeLoss
}

// applyTradeOutcome mutates the owning trader. Push refunds the stake and
// touches no stats.
func (s *SettlementService) applyTradeOutcome(tx *gorm.DB, trade *models.Trade, outcome models.TradeOutcome, payout decimal.Decimal) error {
	var trader models.Trader
	if err := tx.First(&trader, trade.TraderID).Error; err != nil {
		return fmt.Errorf("failed to load trader %d: %w", trade.TraderID, err)
	}

	var updates map[string]interface{}
	switch outcome {
	case models.TradeOutcomeWin:
		streak := trader.CurrentStreak + 1
		best := trader.BestStreak
		if streak > best {
			best = streak
		}
		updates = map[string]interface{}{
			"balance":           gorm.Expr("balance + ?", payout),
			"winning_trades":    gorm.Expr("winning_trades + 1"),
			"current_streak":    streak,
			"best_streak":       best,
			"total_profit_loss": gorm.Expr("total_profit_loss + ?", payout.Sub(trade.Amount)),
		}
	case models.TradeOutcomeLoss:
		updates = map[string]interface{}{
			"losing_trades":     gorm.Expr("losing_trades + 1"),
			"current_streak":    0,
			"total_profit_loss": gorm.Expr("total_profit_loss - ?", trade.Amount),
		}
	default: // push
		updates = map[string]interface{}{
			"balance": gorm.Expr("balance + ?", payout),
		}
	}

	if err := tx.Model(&models.Trader{}).Where("id = ?", trader.ID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update trader %d: %w", trader.ID, err)
	}
	return nil
}

// updateJudgeAggregates credits every judge who contributed a snapshot:
// sessionsJudged, totalRatings, and the accuracy running mean scored
// against the final consensus on the screening deviation scale.
func (s *SettlementService) updateJudgeAggregates(tx *gorm.DB, sessionID uint, finalConsensus float64) error {
	var snapshots []models.RatingSnapshot
	if err := tx.Where("session_id = ?", sessionID).
		Order("timestamp ASC").Find(&snapshots).Error; err != nil {
		return err
	}

	counts := make(map[uint]int64)
	latest := make(map[uint]int)
	for _, snapshot := range snapshots {
		counts[snapshot.JudgeID]++
		latest[snapshot.JudgeID] = snapshot.Rating
	}

	for judgeID, count := range counts {
		var judge models.Judge
		if err := tx.First(&judge, judgeID).Error; err != nil {
			return fmt.Errorf("failed to load judge %d: %w", judgeID, err)
		}

		sessionScore := math.Max(0, 100-2*math.Abs(float64(latest[judgeID])-finalConsensus))
		newAccuracy := (judge.AccuracyScore*float64(judge.SessionsJudged) + sessionScore) /
			float64(judge.SessionsJudged+1)

		if err := tx.Model(&models.Judge{}).Where("id = ?", judgeID).
			Updates(map[string]interface{}{
				"sessions_judged": gorm.Expr("sessions_judged + 1"),
				"total_ratings":   gorm.Expr("total_ratings + ?", count),
				"accuracy_score":  newAccuracy,
			}).Error; err != nil {
			return fmt.Errorf("failed to update judge %d: %w", judgeID, err)
		}
	}

	return nil
}
