package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionService owns the judging session lifecycle and the rating ledger.
// Consensus is always derived from the ledger, never cached.
type SessionService struct {
	db *gorm.DB
}

func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{db: db}
}

// CreateSession schedules a new session for a song. Title defaults to
// "Judging: {song title}" when omitted.
func (s *SessionService) CreateSession(songID uint, title string, scheduledStart *time.Time) (*models.JudgingSession, error) {
	var song models.Song
	err := s.db.First(&song, songID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: song not found", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if title == "" {
		title = fmt.Sprintf("Judging: %s", song.Title)
	}

	session := models.JudgingSession{
		SongID:         songID,
		Title:          title,
		Status:         models.SessionStatusScheduled,
		ScheduledStart: scheduledStart,
	}

	if err := s.db.Create(&session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &session, nil
}

// StartSession takes a scheduled session live. A trading window, when given,
// bounds trade placement only; ratings are never window-gated.
func (s *SessionService) StartSession(sessionID uint, tradingWindowMinutes *int) (*models.JudgingSession, error) {
	session, err := s.GetSessionRecord(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusScheduled {
		return nil, fmt.Errorf("%w: session is %s, only scheduled sessions can be started", ErrInvalidState, session.Status)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":       models.SessionStatusLive,
		"actual_start": now,
	}
	if tradingWindowMinutes != nil {
		windowEnd := now.Add(time.Duration(*tradingWindowMinutes) * time.Minute)
		updates["trading_window_end"] = windowEnd
		session.TradingWindowEnd = &windowEnd
	}

	if err := s.db.Model(&models.JudgingSession{}).
		Where("id = ?", sessionID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	session.Status = models.SessionStatusLive
	session.ActualStart = &now

	log.Printf("[Session] session %d is live (trading window: %v)", sessionID, session.TradingWindowEnd)

	return session, nil
}

// GetSessionRecord loads the raw session row
func (s *SessionService) GetSessionRecord(sessionID uint) (*models.JudgingSession, error) {
	var session models.JudgingSession
	err := s.db.First(&session, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: session not found", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSession returns a session decorated with live consensus data
func (s *SessionService) GetSession(sessionID uint) (*models.SessionView, error) {
	session, err := s.GetSessionRecord(sessionID)
	if err != nil {
		return nil, err
	}
	return s.decorate(session), nil
}

// ListSessions returns sessions filtered by status (all when empty), newest
// first. Live sessions carry computed consensus and judge count.
func (s *SessionService) ListSessions(status string) ([]models.SessionView, error) {
	query := s.db.Model(&models.JudgingSession{}).Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var sessions []models.JudgingSession
	if err := query.Find(&sessions).Error; err != nil {
		return nil, err
	}

	views := make([]models.SessionView, 0, len(sessions))
	for i := range sessions {
		views = append(views, *s.decorate(&sessions[i]))
	}
	return views, nil
}

// Consensus derives the current sentiment for a session: the mean of the
// latest snapshot per distinct judge. Nil when no judge has rated yet;
// callers must treat nil as "no consensus", not zero.
func (s *SessionService) Consensus(sessionID uint) (*float64, int, error) {
	return consensusFor(s.db, sessionID)
}

// consensusFor runs the latest-per-judge scan on the given handle so
// settlement can reuse it inside a transaction.
func consensusFor(db *gorm.DB, sessionID uint) (*float64, int, error) {
	var snapshots []models.RatingSnapshot
	if err := db.Where("session_id = ?", sessionID).
		Order("timestamp ASC").Find(&snapshots).Error; err != nil {
		return nil, 0, err
	}

	// Later rows win; equal timestamps resolve to whichever the scan sees
	// last, an accepted nondeterminism.
	latest := make(map[uint]int)
	for _, snapshot := range snapshots {
		latest[snapshot.JudgeID] = snapshot.Rating
	}

	if len(latest) == 0 {
		return nil, 0, nil
	}

	var sum float64
	for _, rating := range latest {
		sum += float64(rating)
	}
	consensus := sum / float64(len(latest))

	return &consensus, len(latest), nil
}

// SubmitRating appends a snapshot for an identity's active judge record and
// returns the fresh consensus. The rating is clamped to [0,100] and rounded
// to the nearest integer before storage.
func (s *SessionService) SubmitRating(sessionID, userID uint, userRole string, rating float64) (*models.ConsensusUpdate, error) {
	var judge models.Judge
	err := s.db.Where("user_id = ? AND user_role = ? AND status = ?",
		userID, userRole, models.JudgeStatusActive).First(&judge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: not an active judge", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	session, err := s.GetSessionRecord(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusLive {
		return nil, fmt.Errorf("%w: session is not live", ErrInvalidState)
	}

	clamped := int(math.Round(math.Min(100, math.Max(0, rating))))

	snapshot := models.RatingSnapshot{
		ID:        uuid.New(),
		SessionID: sessionID,
		JudgeID:   judge.ID,
		Rating:    clamped,
		Timestamp: time.Now(),
	}
	if err := s.db.Create(&snapshot).Error; err != nil {
		return nil, fmt.Errorf("failed to append rating: %w", err)
	}

	consensus, judgeCount, err := s.Consensus(sessionID)
	if err != nil {
		return nil, err
	}
	if consensus == nil {
		// The snapshot we just wrote guarantees at least one judge; a nil
		// consensus here means the ledger read raced a session delete.
		return nil, fmt.Errorf("consensus unavailable for session %d", sessionID)
	}

	return &models.ConsensusUpdate{
		Consensus:  *consensus,
		JudgeCount: judgeCount,
		Timestamp:  snapshot.Timestamp,
	}, nil
}

// History returns the session's average rating over time in 5-second
// buckets, oldest first. All snapshots count, not just latest-per-judge.
func (s *SessionService) History(sessionID uint) ([]models.RatingBucket, error) {
	if _, err := s.GetSessionRecord(sessionID); err != nil {
		return nil, err
	}

	var snapshots []models.RatingSnapshot
	if err := s.db.Where("session_id = ?", sessionID).
		Order("timestamp ASC").Find(&snapshots).Error; err != nil {
		return nil, err
	}

	type bucketAgg struct {
		sum   int
		count int
	}
	buckets := make(map[time.Time]*bucketAgg)
	for _, snapshot := range snapshots {
		key := snapshot.Timestamp.Truncate(5 * time.Second)
		agg, ok := buckets[key]
		if !ok {
			agg = &bucketAgg{}
			buckets[key] = agg
		}
		agg.sum += snapshot.Rating
		agg.count++
	}

	history := make([]models.RatingBucket, 0, len(buckets))
	for key, agg := range buckets {
		history = append(history, models.RatingBucket{
			Time:          key,
			AverageRating: float64(agg.sum) / float64(agg.count),
			Count:         agg.count,
		})
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].Time.Before(history[j].Time)
	})

	return history, nil
}

func (s *SessionService) decorate(session *models.JudgingSession) *models.SessionView {
	view := &models.SessionView{
		JudgingSession: *session,
		TradingOpen:    session.TradingOpen(time.Now()),
	}

	if session.Status == models.SessionStatusLive {
		consensus, judgeCount, err := s.Consensus(session.ID)
		if err != nil {
			log.Printf("[Session] failed to compute consensus for session %d: %v", session.ID, err)
		} else {
			view.Consensus = consensus
			view.ActiveJudges = judgeCount
		}
	}

	return view
}
