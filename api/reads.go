package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ownedStrategy looks up a strategy and checks it belongs to the caller,
// writing the appropriate error response and returning ok=false if not.
func (s *Server) ownedStrategy(c *gin.Context) (id string, ok bool) {
	userID := c.GetString("user_id")
	id = c.Param("id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	strategy, err := s.store.Strategies.Get(id)
	if err != nil || strategy == nil || strategy.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return "", false
	}
	return id, true
}

func (s *Server) handleListPositions(c *gin.Context) {
	id, ok := s.ownedStrategy(c)
	if !ok {
		return
	}
	positions, err := s.store.Positions.ListForStrategy(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list positions: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *Server) handleListTrades(c *gin.Context) {
	id, ok := s.ownedStrategy(c)
	if !ok {
		return
	}
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	trades, err := s.store.Trades.ListForStrategy(id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list trades: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleListPendingOrders(c *gin.Context) {
	id, ok := s.ownedStrategy(c)
	if !ok {
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	orders, err := s.store.PendingOrders.ListForStrategy(id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list pending orders: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending_orders": orders})
}
