package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"quantdriver/model"
	"quantdriver/runner"
)

// handleListStrategies lists every strategy owned by the caller.
func (s *Server) handleListStrategies(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	strategies, err := s.store.Strategies.List(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list strategies: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategies": strategies})
}

func (s *Server) handleGetStrategy(c *gin.Context) {
	userID := c.GetString("user_id")
	id := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	strategy, err := s.store.Strategies.Get(id)
	if err != nil || strategy == nil || strategy.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return
	}
	c.JSON(http.StatusOK, strategy)
}

type strategyRequest struct {
	Name            string                 `json:"name" binding:"required"`
	Symbol          string                 `json:"symbol" binding:"required"`
	Timeframe       string                 `json:"timeframe"`
	Leverage        int                    `json:"leverage"`
	InitialCapital  float64                `json:"initial_capital"`
	ExecutionMode   model.ExecutionMode    `json:"execution_mode"`
	TradeDirection  model.TradeDirection   `json:"trade_direction"`
	MarketType      model.MarketType       `json:"market_type"`
	ExchangeID      string                 `json:"exchange_id"`
	IndicatorCode   string                 `json:"indicator_code"`
	IndicatorParams map[string]interface{} `json:"indicator_params"`
	NotificationCfg map[string]interface{} `json:"notification_config"`
	ExchangeConfig  map[string]interface{} `json:"exchange_config"`
	Trading         model.TradingConfig    `json:"trading_config"`
	AIModel         model.AIModelConfig    `json:"ai_model_config"`
}

func (r strategyRequest) toModel(id, userID string) *model.Strategy {
	timeframe := r.Timeframe
	if timeframe == "" {
		timeframe = "1h"
	}
	leverage := r.Leverage
	if leverage <= 0 {
		leverage = 1
	}
	return &model.Strategy{
		ID: id, UserID: userID, Status: model.StatusStopped,
		Name: r.Name, Symbol: r.Symbol, Timeframe: timeframe, Leverage: leverage,
		InitialCapital: r.InitialCapital, ExecutionMode: r.ExecutionMode, TradeDirection: r.TradeDirection,
		MarketType: r.MarketType, ExchangeID: r.ExchangeID, IndicatorCode: r.IndicatorCode,
		IndicatorParams: r.IndicatorParams, NotificationCfg: r.NotificationCfg,
		ExchangeConfig: r.ExchangeConfig, Trading: r.Trading, AIModel: r.AIModel,
	}
}

func (s *Server) handleCreateStrategy(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request parameters: " + err.Error()})
		return
	}

	strategy := req.toModel(uuid.New().String(), userID)
	if err := s.store.Strategies.Create(strategy); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create strategy: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": strategy.ID, "message": "strategy created"})
}

func (s *Server) handleUpdateStrategy(c *gin.Context) {
	userID := c.GetString("user_id")
	id := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	existing, err := s.store.Strategies.Get(id)
	if err != nil || existing == nil || existing.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return
	}
	if existing.Status == model.StatusRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "stop the strategy before editing its configuration"})
		return
	}

	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request parameters: " + err.Error()})
		return
	}

	strategy := req.toModel(id, userID)
	strategy.Status = existing.Status
	if err := s.store.Strategies.Update(strategy); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update strategy: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "strategy updated"})
}

func (s *Server) handleDeleteStrategy(c *gin.Context) {
	userID := c.GetString("user_id")
	id := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	existing, err := s.store.Strategies.Get(id)
	if err != nil || existing == nil || existing.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return
	}
	if existing.Status == model.StatusRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "stop the strategy before deleting it"})
		return
	}
	if err := s.store.Strategies.Delete(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete strategy: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "strategy deleted"})
}

func (s *Server) handleStartStrategy(c *gin.Context) {
	userID := c.GetString("user_id")
	id := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	strategy, err := s.store.Strategies.Get(id)
	if err != nil || strategy == nil || strategy.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return
	}

	if err := s.sup.Start(strategy); err != nil {
		status := http.StatusInternalServerError
		if err == runner.ErrAlreadyRunning || err == runner.ErrCapReached {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "strategy started"})
}

func (s *Server) handleStopStrategy(c *gin.Context) {
	userID := c.GetString("user_id")
	id := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	strategy, err := s.store.Strategies.Get(id)
	if err != nil || strategy == nil || strategy.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return
	}
	if err := s.sup.Stop(strategy.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop strategy: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "strategy stopped"})
}
