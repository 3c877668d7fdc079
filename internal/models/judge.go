package models

import (
	"time"
)

type ApplicationStatus string

const (
	ApplicationStatusScreening ApplicationStatus = "screening"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
)

type JudgeStatus string

const (
	JudgeStatusActive    JudgeStatus = "active"
	JudgeStatusSuspended JudgeStatus = "suspended"
)

// JudgeApplication tracks one attempt to qualify as a judge. Immutable once
// approved or rejected, except for cooldown tracking on re-application.
type JudgeApplication struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	UserID             uint              `gorm:"not null;index:idx_applications_identity" json:"userId"`
	UserRole           string            `gorm:"size:20;not null;index:idx_applications_identity" json:"userRole"`
	MusicBackground    string            `gorm:"type:text" json:"musicBackground"`
	GenresFamiliar     string            `gorm:"type:text" json:"genresFamiliar"`
	Status             ApplicationStatus `gorm:"size:20;not null;default:screening;index" json:"status"`
	ScreeningScore     *float64          `gorm:"type:decimal(5,2)" json:"screeningScore,omitempty"`
	ScreeningDeviation *float64          `gorm:"type:decimal(5,2)" json:"screeningDeviation,omitempty"`
	RejectionReason    *string           `gorm:"size:500" json:"rejectionReason,omitempty"`
	NextAttemptDate    *time.Time        `json:"nextAttemptDate,omitempty"`
	AttemptCount       int               `gorm:"not null;default:1" json:"attemptCount"`
	CreatedAt          time.Time         `json:"createdAt"`
	ReviewedAt         *time.Time        `json:"reviewedAt,omitempty"`
}

func (JudgeApplication) TableName() string {
	return "judge_applications"
}

// Judge is created exactly once an application passes screening; unique per
// (userID, userRole). Aggregates are mutated only by settlement.
type Judge struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	UserID         uint        `gorm:"not null;uniqueIndex:idx_judges_identity" json:"userId"`
	UserRole       string      `gorm:"size:20;not null;uniqueIndex:idx_judges_identity" json:"userRole"`
	Status         JudgeStatus `gorm:"size:20;not null;default:active;index" json:"status"`
	AccuracyScore  float64     `gorm:"type:decimal(5,2);default:0" json:"accuracyScore"`
	TotalRatings   int64       `gorm:"default:0" json:"totalRatings"`
	SessionsJudged int64       `gorm:"default:0" json:"sessionsJudged"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

func (Judge) TableName() string {
	return "judges"
}

// AnchorSong is a reference track with a known correct rating, used only to
// screen judge candidates. Admin-managed, independent lifecycle.
type AnchorSong struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SongID        uint      `gorm:"not null;index" json:"songId"`
	CorrectRating int       `gorm:"not null" json:"-"`
	Tolerance     int       `gorm:"not null;default:10" json:"-"`
	Genre         string    `gorm:"size:100" json:"genre"`
	Difficulty    string    `gorm:"size:20;default:medium" json:"difficulty"`
	Active        bool      `gorm:"not null;default:true;index" json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (AnchorSong) TableName() string {
	return "anchor_songs"
}

// ApplyRequest is the judge application payload
type ApplyRequest struct {
	MusicBackground string `json:"musicBackground" binding:"required"`
	GenresFamiliar  string `json:"genresFamiliar"`
}

// ScreeningRating is one (anchor, rating) pair in a screening submission
type ScreeningRating struct {
	AnchorID uint    `json:"anchorId" binding:"required"`
	Rating   float64 `json:"rating"`
}

// SubmitScreeningRequest is the screening submission payload
type SubmitScreeningRequest struct {
	Ratings []ScreeningRating `json:"ratings" binding:"required"`
}

// ScreeningResult is the outcome of a screening submission
type ScreeningResult struct {
	Passed          bool       `json:"passed"`
	Score           float64    `json:"score"`
	AvgDeviation    float64    `json:"avgDeviation"`
	NextAttemptDate *time.Time `json:"nextAttemptDate,omitempty"`
}

// ScreeningAnchor is an anchor as exposed to a candidate: the correct rating
// and tolerance never leave the server.
type ScreeningAnchor struct {
	ID         uint   `json:"id"`
	SongID     uint   `json:"songId"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Genre      string `json:"genre"`
	Difficulty string `json:"difficulty"`
}

// JudgeProfile is the judge-status view for the current identity
type JudgeProfile struct {
	IsJudge     bool              `json:"isJudge"`
	Judge       *Judge            `json:"judge,omitempty"`
	Application *JudgeApplication `json:"application,omitempty"`
}

// CreateAnchorRequest is the admin payload for registering an anchor song
type CreateAnchorRequest struct {
	SongID        uint   `json:"songId" binding:"required"`
	CorrectRating int    `json:"correctRating" binding:"min=0,max=100"`
	Tolerance     int    `json:"tolerance"`
	Genre         string `json:"genre"`
	Difficulty    string `json:"difficulty"`
}
