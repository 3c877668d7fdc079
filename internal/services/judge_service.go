package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/models"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/notify"

	"gorm.io/gorm"
)

const (
	screeningPassScore    = 60.0
	screeningMaxDeviation = 15.0
)

// JudgeService is the qualification gate: it screens applicants against
// anchor songs before they may rate live sessions.
type JudgeService struct {
	db           *gorm.DB
	notifier     *notify.Notifier
	setSize      int
	cooldownDays int
}

func NewJudgeService(db *gorm.DB, notifier *notify.Notifier, setSize, cooldownDays int) *JudgeService {
	return &JudgeService{
		db:           db,
		notifier:     notifier,
		setSize:      setSize,
		cooldownDays: cooldownDays,
	}
}

// Apply creates a new application in screening status. Rejected if the
// identity already judges, has an application in screening, or is inside
// the rejection cooldown.
func (s *JudgeService) Apply(userID uint, userRole string, req models.ApplyRequest) (*models.JudgeApplication, error) {
	var judge models.Judge
	err := s.db.Where("user_id = ? AND user_role = ? AND status = ?",
		userID, userRole, models.JudgeStatusActive).First(&judge).Error
	if err == nil {
		return nil, fmt.Errorf("%w: already an active judge", ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var pending models.JudgeApplication
	err = s.db.Where("user_id = ? AND user_role = ? AND status = ?",
		userID, userRole, models.ApplicationStatusScreening).First(&pending).Error
	if err == nil {
		return nil, fmt.Errorf("%w: an application is already in screening", ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var lastRejected models.JudgeApplication
	err = s.db.Where("user_id = ? AND user_role = ? AND status = ?",
		userID, userRole, models.ApplicationStatusRejected).
		Order("created_at DESC").First(&lastRejected).Error
	if err == nil && lastRejected.NextAttemptDate != nil && lastRejected.NextAttemptDate.After(time.Now()) {
		return nil, &CooldownError{NextAttemptDate: *lastRejected.NextAttemptDate}
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var priorAttempts int64
	if err := s.db.Model(&models.JudgeApplication{}).
		Where("user_id = ? AND user_role = ?", userID, userRole).
		Count(&priorAttempts).Error; err != nil {
		return nil, err
	}

	application := models.JudgeApplication{
		UserID:          userID,
		UserRole:        userRole,
		MusicBackground: req.MusicBackground,
		GenresFamiliar:  req.GenresFamiliar,
		Status:          models.ApplicationStatusScreening,
		AttemptCount:    int(priorAttempts) + 1,
	}

	if err := s.db.Create(&application).Error; err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &application, nil
}

// GetScreeningSet returns the randomly selected active anchors for an
// application. Fewer configured anchors than the set size is an operational
// problem, not a client error.
func (s *JudgeService) GetScreeningSet(applicationID, userID uint, userRole string) ([]models.ScreeningAnchor, error) {
	application, err := s.getOwnedApplication(applicationID, userID, userRole)
	if err != nil {
		return nil, err
	}
	if application.Status != models.ApplicationStatusScreening {
		return nil, fmt.Errorf("%w: application is not in screening", ErrInvalidState)
	}

	var activeCount int64
	if err := s.db.Model(&models.AnchorSong{}).Where("active = ?", true).Count(&activeCount).Error; err != nil {
		return nil, err
	}
	if activeCount < int64(s.setSize) {
		return nil, ErrInsufficientAnchors
	}

	var anchors []models.AnchorSong
	if err := s.db.Where("active = ?", true).
		Order("RANDOM()").Limit(s.setSize).Find(&anchors).Error; err != nil {
		return nil, err
	}

	songIDs := make([]uint, 0, len(anchors))
	for _, anchor := range anchors {
		songIDs = append(songIDs, anchor.SongID)
	}
	songsByID := make(map[uint]models.Song, len(songIDs))
	var songs []models.Song
	if err := s.db.Where("id IN ?", songIDs).Find(&songs).Error; err != nil {
		return nil, err
	}
	for _, song := range songs {
		songsByID[song.ID] = song
	}

	set := make([]models.ScreeningAnchor, 0, len(anchors))
	for _, anchor := range anchors {
		song := songsByID[anchor.SongID]
		set = append(set, models.ScreeningAnchor{
			ID:         anchor.ID,
			SongID:     anchor.SongID,
			Title:      song.Title,
			Artist:     song.Artist,
			Genre:      anchor.Genre,
			Difficulty: anchor.Difficulty,
		})
	}

	return set, nil
}

// SubmitScreening grades a screening submission and finalizes the
// application. Unmatched anchor ids are skipped; grading needs at least one
// matched pair. Pass requires score >= 60 AND average deviation <= 15.
func (s *JudgeService) SubmitScreening(applicationID, userID uint, userRole string, ratings []models.ScreeningRating) (*models.ScreeningResult, error) {
	application, err := s.getOwnedApplication(applicationID, userID, userRole)
	if err != nil {
		return nil, err
	}
	if application.Status != models.ApplicationStatusScreening {
		return nil, fmt.Errorf("%w: application is not in screening", ErrInvalidState)
	}
	if len(ratings) == 0 {
		return nil, fmt.Errorf("%w: ratings are required", ErrValidation)
	}

	anchorIDs := make([]uint, 0, len(ratings))
	for _, r := range ratings {
		anchorIDs = append(anchorIDs, r.AnchorID)
	}

	var anchors []models.AnchorSong
	if err := s.db.Where("id IN ?", anchorIDs).Find(&anchors).Error; err != nil {
		return nil, err
	}
	anchorsByID := make(map[uint]models.AnchorSong, len(anchors))
	for _, anchor := range anchors {
		anchorsByID[anchor.ID] = anchor
	}

	var totalDeviation float64
	matched := 0
	for _, r := range ratings {
		anchor, ok := anchorsByID[r.AnchorID]
		if !ok {
			continue
		}
		totalDeviation += math.Abs(r.Rating - float64(anchor.CorrectRating))
		matched++
	}
	if matched == 0 {
		return nil, fmt.Errorf("%w: no submitted ratings matched an anchor", ErrValidation)
	}

	avgDeviation := totalDeviation / float64(matched)
	score := math.Max(0, 100-2*avgDeviation)
	passed := score >= screeningPassScore && avgDeviation <= screeningMaxDeviation

	now := time.Now()
	result := &models.ScreeningResult{
		Passed:       passed,
		Score:        score,
		AvgDeviation: avgDeviation,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"screening_score":     score,
			"screening_deviation": avgDeviation,
			"reviewed_at":         now,
		}

		if passed {
			updates["status"] = models.ApplicationStatusApproved
			if err := s.upsertJudge(tx, userID, userRole, score); err != nil {
				return err
			}
		} else {
			nextAttempt := now.Add(time.Duration(s.cooldownDays) * 24 * time.Hour)
			reason := fmt.Sprintf("screening score %.1f (deviation %.1f) below the qualification bar", score, avgDeviation)
			updates["status"] = models.ApplicationStatusRejected
			updates["next_attempt_date"] = nextAttempt
			updates["rejection_reason"] = reason
			result.NextAttemptDate = &nextAttempt
		}

		return tx.Model(&models.JudgeApplication{}).
			Where("id = ?", application.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finalize screening: %w", err)
	}

	kind := notify.KindScreeningFailed
	if passed {
		kind = notify.KindScreeningPassed
	}
	s.notifier.Dispatch(notify.Event{
		Kind:    kind,
		UserID:  userID,
		Subject: "Judge screening result",
		Detail:  map[string]interface{}{"score": score, "avgDeviation": avgDeviation},
	})

	log.Printf("[Screening] application %d: matched=%d score=%.1f deviation=%.1f passed=%v",
		application.ID, matched, score, avgDeviation, passed)

	return result, nil
}

// Profile returns the judge-status view for an identity
func (s *JudgeService) Profile(userID uint, userRole string) (*models.JudgeProfile, error) {
	var judge models.Judge
	err := s.db.Where("user_id = ? AND user_role = ? AND status = ?",
		userID, userRole, models.JudgeStatusActive).First(&judge).Error
	if err == nil {
		return &models.JudgeProfile{IsJudge: true, Judge: &judge}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var application models.JudgeApplication
	err = s.db.Where("user_id = ? AND user_role = ?", userID, userRole).
		Order("created_at DESC").First(&application).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.JudgeProfile{IsJudge: false}, nil
	}
	if err != nil {
		return nil, err
	}

	return &models.JudgeProfile{IsJudge: false, Application: &application}, nil
}

// ActiveJudge resolves the active judge record for an identity
func (s *JudgeService) ActiveJudge(userID uint, userRole string) (*models.Judge, error) {
	var judge models.Judge
	err := s.db.Where("user_id = ? AND user_role = ? AND status = ?",
		userID, userRole, models.JudgeStatusActive).First(&judge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: not an active judge", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &judge, nil
}

// upsertJudge activates (or reactivates) the judge record for an identity.
// The unique index on (user_id, user_role) keeps this idempotent under
// concurrent approvals.
func (s *JudgeService) upsertJudge(tx *gorm.DB, userID uint, userRole string, screeningScore float64) error {
	var judge models.Judge
	err := tx.Where("user_id = ? AND user_role = ?", userID, userRole).First(&judge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		judge = models.Judge{
			UserID:        userID,
			UserRole:      userRole,
			Status:        models.JudgeStatusActive,
			AccuracyScore: screeningScore,
		}
		return tx.Create(&judge).Error
	}
	if err != nil {
		return err
	}

	return tx.Model(&judge).Update("status", models.JudgeStatusActive).Error
}

func (s *JudgeService) getOwnedApplication(applicationID, userID uint, userRole string) (*models.JudgeApplication, error) {
	var application models.JudgeApplication
	err := s.db.First(&application, applicationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: application not found", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if application.UserID != userID || application.UserRole != userRole {
		return nil, fmt.Errorf("%w: application not found", ErrNotFound)
	}
	return &application, nil
}
