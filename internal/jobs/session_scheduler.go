package jobs

import (
	"log"
	"time"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/models"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/services"

	"gorm.io/gorm"
)

// SessionScheduler takes scheduled sessions live once their scheduled start
// passes, so sessions do not depend on a master clicking start on time.
type SessionScheduler struct {
	db       *gorm.DB
	sessions *services.SessionService
}

func NewSessionScheduler(db *gorm.DB, sessions *services.SessionService) *SessionScheduler {
	return &SessionScheduler{
		db:       db,
		sessions: sessions,
	}
}

// Start begins the periodic scheduling sweep
func (j *SessionScheduler) Start(interval time.Duration) {
	go func() {
		// Run immediately on start
		if err := j.startDueSessions(); err != nil {
			log.Printf("[Scheduler] initial sweep error: %v", err)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			if err := j.startDueSessions(); err != nil {
				log.Printf("[Scheduler] sweep error: %v", err)
			}
		}
	}()
}

// startDueSessions starts every scheduled session whose start time has
// passed. Sessions without a scheduled start wait for a manual start.
func (j *SessionScheduler) startDueSessions() error {
	var due []models.JudgingSession
	if err := j.db.Where("status = ? AND scheduled_start IS NOT NULL AND scheduled_start <= ?",
		models.SessionStatusScheduled, time.Now()).Find(&due).Error; err != nil {
		return err
	}

	for _, session := range due {
		if _, err := j.sessions.StartSession(session.ID, nil); err != nil {
			// Another instance may have raced us to it
			log.Printf("[Scheduler] could not start session %d: %v", session.ID, err)
			continue
		}
		log.Printf("[Scheduler] session %d auto-started", session.ID)
	}

	return nil
}
