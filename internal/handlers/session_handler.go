package handlers

import (
	"net/http"
	"strconv"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/models"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/services"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessions   *services.SessionService
	settlement *services.SettlementService
}

func NewSessionHandler(sessions *services.SessionService, settlement *services.SettlementService) *SessionHandler {
	return &SessionHandler{
		sessions:   sessions,
		settlement: settlement,
	}
}

// List returns sessions, optionally filtered by status
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.sessions.ListSessions(c.Query("status"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// Get returns one session with its trading state
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return
	}

	session, err := h.sessions.GetSession(uint(sessionID))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// History returns the 5-second-bucketed rating history for a session
func (h *SessionHandler) History(c *gin.Context) {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return
	}

	history, err := h.sessions.History(uint(sessionID))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

// Create schedules a new session (master only)
func (h *SessionHandler) Create(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessions.CreateSession(req.SongID, req.Title, req.ScheduledStart)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// Start takes a scheduled session live (master only)
func (h *SessionHandler) Start(c *gin.Context) {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return
	}

	var req models.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessions.StartSession(uint(sessionID), req.TradingWindowMinutes)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// Settle closes a session and resolves its trades (master only)
func (h *SessionHandler) Settle(c *gin.Context) {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return
	}

	result, err := h.settlement.SettleSession(uint(sessionID))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
