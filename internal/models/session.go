package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusLive      SessionStatus = "live"
	SessionStatusCompleted SessionStatus = "completed"
)

// JudgingSession is a scheduled listening session judges rate live.
// State machine: scheduled -> live -> completed; completed is terminal.
type JudgingSession struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	SongID           uint          `gorm:"not null;index" json:"songId"`
	Title            string        `gorm:"size:255;not null" json:"title"`
	Status           SessionStatus `gorm:"size:20;not null;default:scheduled;index" json:"status"`
	ScheduledStart   *time.Time    `json:"scheduledStart,omitempty"`
	ActualStart      *time.Time    `json:"actualStart,omitempty"`
	TradingWindowEnd *time.Time    `json:"tradingWindowEnd,omitempty"`
	EndTime          *time.Time    `json:"endTime,omitempty"`
	FinalConsensus   *float64      `gorm:"type:decimal(5,2)" json:"finalConsensus,omitempty"`
	JudgeCount       int           `gorm:"default:0" json:"judgeCount"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

func (JudgingSession) TableName() string {
	return "judging_sessions"
}

// TradingOpen reports whether a new trade may be placed right now
func (s *JudgingSession) TradingOpen(now time.Time) bool {
	if s.Status != SessionStatusLive {
		return false
	}
	if s.TradingWindowEnd != nil && now.After(*s.TradingWindowEnd) {
		return false
	}
	return true
}

// RatingSnapshot is one appended judge rating. The ledger is append-only;
// only the latest snapshot per judge counts toward consensus.
type RatingSnapshot struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uint      `gorm:"not null;index" json:"sessionId"`
	JudgeID   uint      `gorm:"not null;index" json:"judgeId"`
	Rating    int       `gorm:"not null" json:"rating"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
}

func (RatingSnapshot) TableName() string {
	return "rating_snapshots"
}

// CreateSessionRequest is the admin payload for scheduling a session
type CreateSessionRequest struct {
	SongID         uint       `json:"songId" binding:"required"`
	Title          string     `json:"title"`
	ScheduledStart *time.Time `json:"scheduledStart"`
}

// StartSessionRequest is the admin payload for taking a session live
type StartSessionRequest struct {
	TradingWindowMinutes *int `json:"tradingWindowMinutes"`
}

// SessionView is a session decorated with live consensus data
type SessionView struct {
	JudgingSession
	Consensus    *float64 `json:"consensus,omitempty"`
	ActiveJudges int      `json:"activeJudges"`
	TradingOpen  bool     `json:"tradingOpen"`
}

// ConsensusUpdate is the payload broadcast after every accepted rating
type ConsensusUpdate struct {
	Consensus  float64   `json:"consensus"`
	JudgeCount int       `json:"judgeCount"`
	Timestamp  time.Time `json:"timestamp"`
}

// RatingBucket is one 5-second slice of the session rating history
type RatingBucket struct {
	Time          time.Time `json:"time"`
	AverageRating float64   `json:"averageRating"`
	Count         int       `json:"count"`
}
