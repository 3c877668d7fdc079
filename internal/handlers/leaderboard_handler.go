package handlers

import (
	"net/http"
	"strconv"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/services"

	"github.com/gin-gonic/gin"
)

type LeaderboardHandler struct {
	leaderboards *services.LeaderboardService
}

func NewLeaderboardHandler(leaderboards *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboards: leaderboards}
}

// Traders returns the trader leaderboard for a period
func (h *LeaderboardHandler) Traders(c *gin.Context) {
	period := c.DefaultQuery("period", "alltime")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	entries, err := h.leaderboards.TraderLeaderboard(period, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"period":      period,
		"leaderboard": entries,
	})
}

// Judges returns the judge accuracy leaderboard
func (h *LeaderboardHandler) Judges(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	entries, err := h.leaderboards.JudgeLeaderboard(limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
