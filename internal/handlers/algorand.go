package handlers

import (
	"net/http"
	"strconv"

	"balance-aggregator/internal/models"
	"balance-aggregator/internal/services"
	"balance-aggregator/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AlgorandHandler exposes Algorand application state and AlgoFi LP prices
type AlgorandHandler struct {
	queries services.AlgorandQueryInterface
}

// NewAlgorandHandler creates a new AlgorandHandler instance
func NewAlgorandHandler(queries services.AlgorandQueryInterface) *AlgorandHandler {
	return &AlgorandHandler{queries: queries}
}

// GetAppState handles GET /api/algorand/apps/:id/state
func (h *AlgorandHandler) GetAppState(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	appID := c.Param("id")
	id, err := strconv.ParseUint(appID, 10, 64)
	if err != nil {
		models.HandleError(c, models.NewValidationError("Invalid application id", "application id must be a positive integer"), log)
		return
	}

	state, err := h.queries.AppGlobalState(c.Request.Context(), appID)
	if err != nil {
		models.HandleError(c, err, log)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"app_id":       appID,
		"address":      services.ApplicationAddress(id),
		"global_state": state,
	})
}

// GetLPPrice handles GET /api/algorand/lp-price?lp=<asset id>&unknown=<asset id>
func (h *AlgorandHandler) GetLPPrice(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	lp, unknown := c.Query("lp"), c.Query("unknown")
	if !isAssetID(lp) || !isAssetID(unknown) {
		models.HandleError(c, models.NewValidationError("Invalid asset id", "lp and unknown must be numeric asset ids"), log)
		return
	}

	price, err := h.queries.PriceFromAlgoFiLP(c.Request.Context(), lp, unknown)
	if err != nil {
		models.HandleError(c, err, log)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"lp":       lp,
		"unknown":  unknown,
		"price":    price.Price,
		"price_id": price.PriceID,
		"decimals": price.Decimals,
	})
}

func isAssetID(s string) bool {
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}
