package handlers

import (
	"net/http"
	"strings"

	"balance-aggregator/internal/models"
	"balance-aggregator/internal/services"
	"balance-aggregator/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AggregateHandler handles balance aggregation requests
type AggregateHandler struct {
	aggregator services.AggregatorInterface
}

// NewAggregateHandler creates a new AggregateHandler instance
func NewAggregateHandler(aggregator services.AggregatorInterface) *AggregateHandler {
	return &AggregateHandler{
		aggregator: aggregator,
	}
}

// Aggregate handles POST /api/aggregate requests
func (h *AggregateHandler) Aggregate(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	var req models.SumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid JSON in request",
			zap.Error(err),
			zap.String("content_type", c.GetHeader("Content-Type")),
		)

		appErr := models.NewAppErrorWithDetails(
			models.ErrorCodeMalformedJSON,
			"Invalid JSON format",
			err.Error(),
		)
		models.HandleError(c, appErr, log)
		return
	}

	ctx := logger.ContextWithChain(c.Request.Context(), req.Chain)
	balances, err := h.aggregator.Aggregate(ctx, &req)
	if err != nil {
		models.HandleError(c, err, log)
		return
	}

	log.Info("Aggregation request completed",
		zap.String("chain", req.Chain),
		zap.Int("token_count", len(balances)),
	)

	c.JSON(http.StatusOK, models.AggregateResponse{
		Chain:    strings.ToLower(strings.TrimSpace(req.Chain)),
		Block:    req.Block,
		Balances: balances,
	})
}
