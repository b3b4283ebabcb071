package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Yuvaramesh/sales-agent/agent/agents/orchestrator"
)

type queryRequest struct {
	SessionID string `json:"session_id"`
	UserEmail string `json:"user_email" binding:"required"`
	UserQuery string `json:"user_query" binding:"required"`
}

type endSessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	UserEmail string `json:"user_email" binding:"required"`
}

func registerRoutes(router *gin.Engine, svc TurnService) {
	router.GET("/health", handleHealth())
	router.POST("/query", handleQuery(svc))
	router.POST("/end_session", handleEndSession(svc))
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleQuery(svc TurnService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_email and user_query are required"})
			return
		}

		res, err := svc.SubmitTurn(c.Request.Context(), req.SessionID, req.UserEmail, req.UserQuery)
		if err != nil {
			writeError(c, err, "query failed")
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleEndSession(svc TurnService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req endSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and user_email are required"})
			return
		}

		res, err := svc.EndSession(c.Request.Context(), req.SessionID, req.UserEmail)
		if err != nil {
			writeError(c, err, "end session failed")
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidEmail),
		errors.Is(err, orchestrator.ErrInvalidMessage),
		errors.Is(err, orchestrator.ErrInvalidSession):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
