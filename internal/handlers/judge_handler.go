package handlers

import (
	"net/http"
	"strconv"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/auth"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/models"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/services"

	"github.com/gin-gonic/gin"
)

type JudgeHandler struct {
	judges *services.JudgeService
}

func NewJudgeHandler(judges *services.JudgeService) *JudgeHandler {
	return &JudgeHandler{judges: judges}
}

// Apply submits a new judge application
func (h *JudgeHandler) Apply(c *gin.Context) {
	userID, userRole, ok := auth.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	application, err := h.judges.Apply(userID, userRole, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"application": application})
}

// GetScreeningSet returns the anchor songs for a screening attempt
func (h *JudgeHandler) GetScreeningSet(c *gin.Context) {
	userID, userRole, ok := auth.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	applicationID, err := strconv.ParseUint(c.Param("applicationId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application id"})
		return
	}

	songs, err := h.judges.GetScreeningSet(uint(applicationID), userID, userRole)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"songs": songs})
}

// SubmitScreening grades a screening submission
func (h *JudgeHandler) SubmitScreening(c *gin.Context) {
	userID, userRole, ok := auth.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	applicationID, err := strconv.ParseUint(c.Param("applicationId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application id"})
		return
	}

	var req models.SubmitScreeningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.judges.SubmitScreening(uint(applicationID), userID, userRole, req.Ratings)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Profile returns the judge-status view for the current identity
func (h *JudgeHandler) Profile(c *gin.Context) {
	userID, userRole, ok := auth.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	profile, err := h.judges.Profile(userID, userRole)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}
