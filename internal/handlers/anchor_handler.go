package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AnchorHandler manages the screening anchor pool (master only)
type AnchorHandler struct {
	db *gorm.DB
}

func NewAnchorHandler(db *gorm.DB) *AnchorHandler {
	return &AnchorHandler{db: db}
}

// Create registers a song as a screening anchor
func (h *AnchorHandler) Create(c *gin.Context) {
	var req models.CreateAnchorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var song models.Song
	if err := h.db.First(&song, req.SongID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Song not found"})
			return
		}
		respondServiceError(c, err)
		return
	}

	tolerance := req.Tolerance
	if tolerance <= 0 {
		tolerance = 10
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = "medium"
	}

	anchor := models.AnchorSong{
		SongID:        req.SongID,
		CorrectRating: req.CorrectRating,
		Tolerance:     tolerance,
		Genre:         req.Genre,
		Difficulty:    difficulty,
		Active:        true,
	}

	if err := h.db.Create(&anchor).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"anchor": anchor})
}

// List returns all anchors, active first
func (h *AnchorHandler) List(c *gin.Context) {
	var anchors []models.AnchorSong
	if err := h.db.Order("active DESC, created_at DESC").Find(&anchors).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"anchors": anchors})
}

// Deactivate retires an anchor from the screening pool
func (h *AnchorHandler) Deactivate(c *gin.Context) {
	anchorID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid anchor id"})
		return
	}

	result := h.db.Model(&models.AnchorSong{}).
		Where("id = ?", anchorID).Update("active", false)
	if result.Error != nil {
		respondServiceError(c, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Anchor not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Anchor deactivated"})
}
