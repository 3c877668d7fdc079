package services

import (
	"fmt"
	"time"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LeaderboardService ranks traders by realized profit and judges by
// accuracy.
type LeaderboardService struct {
	db *gorm.DB
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{db: db}
}

// periodSince maps a leaderboard period to its window start. Zero time
// means all-time.
func periodSince(period string, now time.Time) (time.Time, error) {
	switch period {
	case "daily":
		return now.Add(-24 * time.Hour), nil
	case "weekly":
		return now.Add(-7 * 24 * time.Hour), nil
	case "monthly":
		return now.Add(-30 * 24 * time.Hour), nil
	case "", "alltime":
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown period %q", ErrValidation, period)
	}
}

// TraderLeaderboard returns the top traders for a period. All-time ranks by
// lifetime aggregates; windowed periods rank by profit realized on trades
// settled inside the window.
func (s *LeaderboardService) TraderLeaderboard(period string, limit int) ([]models.TraderLeaderboardEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	since, err := periodSince(period, time.Now())
	if err != nil {
		return nil, err
	}

	if since.IsZero() {
		return s.allTimeTraders(limit)
	}
	return s.windowedTraders(since, limit)
}

func (s *LeaderboardService) allTimeTraders(limit int) ([]models.TraderLeaderboardEntry, error) {
	var traders []models.Trader
	if err := s.db.Where("winning_trades + losing_trades > 0").
		Order("total_profit_loss DESC").Limit(limit).
		Find(&traders).Error; err != nil {
		return nil, err
	}

	entries := make([]models.TraderLeaderboardEntry, 0, len(traders))
	userIDs := make([]uint, 0, len(traders))
	for i, trader := range traders {
		settled := trader.WinningTrades + trader.LosingTrades
		winRate := 0.0
		if settled > 0 {
			winRate = float64(trader.WinningTrades) / float64(settled)
		}
		entries = append(entries, models.TraderLeaderboardEntry{
			Rank:     i + 1,
			UserID:   trader.UserID,
			UserRole: trader.UserRole,
			Profit:   trader.TotalProfitLoss,
			Trades:   trader.TotalTrades,
			WinRate:  winRate,
		})
		userIDs = append(userIDs, trader.UserID)
	}

	if err := s.fillDisplayNames(entries, userIDs); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *LeaderboardService) windowedTraders(since time.Time, limit int) ([]models.TraderLeaderboardEntry, error) {
	type periodRow struct {
		UserID   uint
		UserRole string
		Profit   decimal.Decimal
		Trades   int64
		Wins     int64
	}

	// Grouped per (user_id, user_role) so a windowed period ranks the same
	// identity unit as the all-time trader records.
	var rows []periodRow
	if err := s.db.Model(&models.Trade{}).
		Select("user_id, user_role, SUM(payout - amount) AS profit, COUNT(*) AS trades, SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END) AS wins", models.TradeOutcomeWin).
		Where("status = ? AND settled_at >= ?", models.TradeStatusSettled, since).
		Group("user_id, user_role").
		Order("profit DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]models.TraderLeaderboardEntry, 0, len(rows))
	userIDs := make([]uint, 0, len(rows))
	for i, row := range rows {
		winRate := 0.0
		if row.Trades > 0 {
			winRate = float64(row.Wins) / float64(row.Trades)
		}
		entries = append(entries, models.TraderLeaderboardEntry{
			Rank:     i + 1,
			UserID:   row.UserID,
			UserRole: row.UserRole,
			Profit:   row.Profit,
			Trades:   row.Trades,
			WinRate:  winRate,
		})
		userIDs = append(userIDs, row.UserID)
	}

	if err := s.fillDisplayNames(entries, userIDs); err != nil {
		return nil, err
	}
	return entries, nil
}

// JudgeLeaderboard returns the most accurate judges with at least one
// settled session behind them.
func (s *LeaderboardService) JudgeLeaderboard(limit int) ([]models.JudgeLeaderboardEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var judges []models.Judge
	if err := s.db.Where("status = ? AND sessions_judged > 0", models.JudgeStatusActive).
		Order("accuracy_score DESC, sessions_judged DESC").Limit(limit).
		Find(&judges).Error; err != nil {
		return nil, err
	}

	entries := make([]models.JudgeLeaderboardEntry, 0, len(judges))
	userIDs := make([]uint, 0, len(judges))
	for i, judge := range judges {
		entries = append(entries, models.JudgeLeaderboardEntry{
			Rank:           i + 1,
			UserID:         judge.UserID,
			AccuracyScore:  judge.AccuracyScore,
			SessionsJudged: judge.SessionsJudged,
			TotalRatings:   judge.TotalRatings,
		})
		userIDs = append(userIDs, judge.UserID)
	}

	var users []models.User
	if err := s.db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	for i := range entries {
		if user, ok := byID[entries[i].UserID]; ok {
			entries[i].Username = user.Username
			entries[i].FirstName = user.FirstName
			entries[i].LastName = user.LastName
		}
	}

	return entries, nil
}

func (s *LeaderboardService) fillDisplayNames(entries []models.TraderLeaderboardEntry, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}

	var users []models.User
	if err := s.db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return err
	}
	byID := make(map[uint]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	for i := range entries {
		if user, ok := byID[entries[i].UserID]; ok {
			entries[i].Username = user.Username
			entries[i].FirstName = user.FirstName
			entries[i].LastName = user.LastName
		}
	}
	return nil
}
