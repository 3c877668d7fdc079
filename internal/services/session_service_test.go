package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/database"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A uniquely named shared in-memory database keeps gorm's connection
	// pool on the same store while isolating tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func isServiceError(err, target error) bool {
	return errors.Is(err, target)
}

func createTestSong(t *testing.T, db *gorm.DB, title string) *models.Song {
	t.Helper()
	song := models.Song{Title: title, Artist: "Test Artist", Genre: "electronic"}
	if err := db.Create(&song).Error; err != nil {
		t.Fatalf("failed to create song: %v", err)
	}
	return &song
}

func createTestJudge(t *testing.T, db *gorm.DB, userID uint) *models.Judge {
	t.Helper()
	user := models.User{ID: userID, Username: fmt.Sprintf("judge%d", userID), Role: "listener"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	judge := models.Judge{
		UserID:        userID,
		UserRole:      "listener",
		Status:        models.JudgeStatusActive,
		AccuracyScore: 80,
	}
	if err := db.Create(&judge).Error; err != nil {
		t.Fatalf("failed to create judge: %v", err)
	}
	return &judge
}

func createLiveSession(t *testing.T, db *gorm.DB) *models.JudgingSession {
	t.Helper()
	song := createTestSong(t, db, "Live Track")
	now := time.Now()
	session := models.JudgingSession{
		SongID:      song.ID,
		Title:       "Judging: Live Track",
		Status:      models.SessionStatusLive,
		ActualStart: &now,
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return &session
}

func appendSnapshot(t *testing.T, db *gorm.DB, sessionID, judgeID uint, rating int, at time.Time) {
	t.Helper()
	snapshot := models.RatingSnapshot{
		ID:        uuid.New(),
		SessionID: sessionID,
		JudgeID:   judgeID,
		Rating:    rating,
		Timestamp: at,
	}
	if err := db.Create(&snapshot).Error; err != nil {
		t.Fatalf("failed to append snapshot: %v", err)
	}
}

func TestCreateSessionDefaultTitle(t *testing.T) {
	db := setupTestDB(t)
	service := NewSessionService(db)
	song := createTestSong(t, db, "Midnight Run")

	session, err := service.CreateSession(song.ID, "", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.Title != "Judging: Midnight Run" {
		t.Errorf("expected default title, got %q", session.Title)
	}
	if session.Status != models.SessionStatusScheduled {
		t.Errorf("expected scheduled status, got %s", session.Status)
	}
}

func TestCreateSessionUnknownSong(t *testing.T) {
	db := setupTestDB(t)
	service := NewSessionService(db)

	_, err := service.CreateSession(999, "", nil)
	if err == nil {
		t.Fatal("expected error for unknown song")
	}
	if !isServiceError(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStartSessionOnlyFromScheduled(t *testing.T) {
	db := setupTestDB(t)
	service := NewSessionService(db)
	song := createTestSong(t, db, "Track")

	session, err := service.CreateSession(song.ID, "", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	started, err := service.StartSession(session.ID, nil)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if started.Status != models.SessionStatusLive {
		t.Errorf("expected live, got %s", started.Status)
	}
	if started.TradingWindowEnd != nil {
		t.Errorf("expected no trading window, got %v", started.TradingWindowEnd)
	}

	// Second start must fail and leave the status untouched
	_, err = service.StartSession(session.ID, nil)
	if !isServiceError(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second start, got %v", err)
	}

	var reloaded models.JudgingSession
	if err := db.First(&reloaded, session.ID).Error; err != nil {
		t.Fatalf("failed to reload session: %v", err)
	}
	if reloaded.Status != models.SessionStatusLive {
		t.Errorf("status changed by failed start: %s", reloaded.Status)
	}
}

func TestStartSessionWithTradingWindow(t *testing.T) {
	db := setupTestDB(t)
	service := NewSessionService(db)
	song := createTestSong(t, db, "Track")

	session, _ := service.CreateSession(song.ID, "", nil)
	minutes := 15
	started, err := service.StartSession(session.ID, &minutes)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if started.TradingWindowEnd == nil {
		t.Fatal("expected trading window end to be set")
	}
	remaining := time.Until(*started.TradingWindowEnd)
	if remaining < 14*time.Minute || remaining > 16*time.Minute {
		t.Errorf("trading window end off: %v remaining", remaining)
	}
}

func TestConsensusLatestPerJudge(t *testing.T) {
	db := setupTestDB(t)
	service := NewSessionService(db)
	session := createLiveSession(t, db)
	judge1 := createTestJudge(t, db, 1)
	judge2 := createTestJudge(t, db, 2)

	base := time.Now().Add(-time.Minute)
	appendSnapshot(t, db, session.ID, judge1.ID, 40, base)
	appendSnapshot(t, db, session.ID, judge1.ID, 80, base.Add(10*time.Second))
	appendSnapshot(t, db, session.ID, judge2.ID, 60, base.Add(5*time.Second))

	consensus, judgeCount, err := service.Consensus(session.ID)
	if err != nil {
		t.Fatalf("Consensus failed: %v", err)
	}
	if consensus == nil {
		t.Fatal("expected consensus, got nil")
	}
	if *consensus != 70 {
		t.Errorf("expected consensus 70, got %f", *consensus)
	}
	if judgeCount != 2 {
		t.Errorf("expected 2 judges, got %d", judgeCount)
	}

	// An older out-of-order snapshot for judge1 must not change consensus
	appendSnapshot(t, db, session.ID, judge1.ID, 0, base.Add(2*time.Second))

	consensus, judgeCount, err = service.Consensus(session.ID)
	if err != nil {
		t.Fatalf("Consensus failed: %v", err)
	}
	if *consensus != 70 {
		t.Errorf("out-of-order snapshot changed consensus: got %f", *consensus)
	}
	if judgeCount != 2 {
		t.Errorf("expected 2 judges, got %d", judgeCount)
	}
}

func TestConsensusEmptyIsNil(t *testing.T) {
	db := setupTestDB(t)
	service := NewSessionService(db)
	session := createLiveSession(t, db)

	consensus, judgeCount, err := service.Consensus(session.ID)
	if err != nil {
		t.Fatalf("Consensus failed: %v", err)
	}
	if consensus != nil {
		t.Errorf("expected nil consensus, got %f", *consensus)
	}
	if judgeCount != 0 {
		t.Errorf("expected 0 judges, got %d", judgeCount)
	}
}

func TestSubmitRatingClampsAndRounds(t *testing.T) {
	db := setupTestDB(t)
	service := NewSessionService(db)
	session := createLiveSession(t, db)
	judge := createTestJudge(t, db, 1)

	update, err := service.SubmitRating(session.ID, judge.UserID, judge.UserRole, 150)
	if err != nil {
		t.Fatalf("SubmitRating failed: %v", err)
	}
	if update.Consensus != 100 {
		t.Errorf("expected clamp to 100, got %f", update.Consensus)
	}

	update, err = service.SubmitRating(session.ID, judge.UserID, judge.UserRole, 49.6)
	if err != nil {
		t.Fatalf("SubmitRating failed: %v", err)
	}
	if update.Consensus != 50 {
		t.Errorf("expected 49.6 to round to 50, got %f", update.Consensus)
	}

	var snapshots []models.RatingSnapshot
	if err := db.Where("session_id = ?", session.ID).Find(&snapshots).Error; err != nil {
		t.Fatalf("failed to load snapshots: %v", err)
	}
	if len(snapshots) != 2 {
		t.Errorf("expected 2 snapshots in the ledger, got %d", len(snapshots))
	}
}

func TestSubmitRatingRejectsNonJudgeAndNonLive(t *testing.T) {
	db := setupTestDB(t)
	service := NewSessionService(db)
	session := createLiveSession(t, db)
	judge := createTestJudge(t, db, 1)

	// Not a judge
	if _, err := service.SubmitRating(session.ID, 999, "listener", 50); err == nil {
		t.Error("expected rejection for non-judge")
	}

	// Session not live
	db.Model(&models.JudgingSession{}).Where("id = ?", session.ID).
		Update("status", models.SessionStatusCompleted)
	if _, err := service.SubmitRating(session.ID, judge.UserID, judge.UserRole, 50); err == nil {
		t.Error("expected rejection for completed session")
	}
}

func TestHistoryBuckets(t *testing.T) {
	db := setupTestDB(t)
	service := NewSessionService(db)
	session := createLiveSession(t, db)
	judge := createTestJudge(t, db, 1)

	base := time.Now().Truncate(5 * time.Second).Add(-time.Minute)
	appendSnapshot(t, db, session.ID, judge.ID, 40, base)
	appendSnapshot(t, db, session.ID, judge.ID, 60, base.Add(2*time.Second))
	appendSnapshot(t, db, session.ID, judge.ID, 90, base.Add(7*time.Second))

	history, err := service.History(session.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(history))
	}
	if history[0].AverageRating != 50 {
		t.Errorf("first bucket: expected average 50, got %f", history[0].AverageRating)
	}
	if history[0].Count != 2 {
		t.Errorf("first bucket: expected count 2, got %d", history[0].Count)
	}
	if history[1].AverageRating != 90 {
		t.Errorf("second bucket: expected average 90, got %f", history[1].AverageRating)
	}
	if !history[0].Time.Before(history[1].Time) {
		t.Error("history buckets out of order")
	}
}

func TestListSessionsDecoratesLive(t *testing.T) {
	db := setupTestDB(t)
	service := NewSessionService(db)
	session := createLiveSession(t, db)
	judge := createTestJudge(t, db, 1)
	appendSnapshot(t, db, session.ID, judge.ID, 75, time.Now())

	views, err := service.ListSessions("live")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 live session, got %d", len(views))
	}
	view := views[0]
	if view.Consensus == nil || *view.Consensus != 75 {
		t.Errorf("expected live consensus 75, got %v", view.Consensus)
	}
	if view.ActiveJudges != 1 {
		t.Errorf("expected 1 active judge, got %d", view.ActiveJudges)
	}
	if !view.TradingOpen {
		t.Error("expected trading open on a live session with no window")
	}
}
