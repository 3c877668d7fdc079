package handlers

import (
	"net/http"
	"strconv"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/auth"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/models"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type TradingHandler struct {
	trading *services.TradingService
}

func NewTradingHandler(trading *services.TradingService) *TradingHandler {
	return &TradingHandler{trading: trading}
}

// TraderProfile returns (lazily creating) the trader profile
func (h *TradingHandler) TraderProfile(c *gin.Context) {
	userID, userRole, ok := auth.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	trader, err := h.trading.GetOrCreateTrader(userID, userRole)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trader": trader})
}

// PlaceTrade places a directional wager against a session's consensus
func (h *TradingHandler) PlaceTrade(c *gin.Context) {
	userID, userRole, ok := auth.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.PlaceTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
		return
	}

	trade, err := h.trading.PlaceTrade(userID, userRole, req.SessionID, req.Direction, amount)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"trade": trade})
}

// ActiveTrades returns the identity's pending trades
func (h *TradingHandler) ActiveTrades(c *gin.Context) {
	userID, userRole, ok := auth.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	trades, err := h.trading.ActiveTrades(userID, userRole)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

// TradeHistory returns a page of the identity's trades
func (h *TradingHandler) TradeHistory(c *gin.Context) {
	userID, userRole, ok := auth.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	trades, total, err := h.trading.TradeHistory(userID, userRole, page, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trades": trades,
		"total":  total,
		"page":   page,
	})
}
