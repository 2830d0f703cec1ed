package http

import (
	"net/http"

	"crosspost/domain/dto"
	"crosspost/usecase"

	"github.com/gin-gonic/gin"
)

type IAnalyticsHandler interface {
	User(ctx *gin.Context)
	System(ctx *gin.Context)
}

type AnalyticsHandler struct {
	analyticsUsecase usecase.IAnalyticsUsecase
}

func NewAnalyticsHandler(uc usecase.IAnalyticsUsecase) IAnalyticsHandler {
	return &AnalyticsHandler{analyticsUsecase: uc}
}

// User answers GET /api/analytics/user?window_days=30&compare=true.
func (h *AnalyticsHandler) User(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var q dto.AnalyticsQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		badRequest(ctx, err)
		return
	}
	snapshot, err := h.analyticsUsecase.UserAnalytics(ctx.Request.Context(), userID, q.WindowDays, q.CompareWithPrevious)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, snapshot)
}

func (h *AnalyticsHandler) System(ctx *gin.Context) {
	var q dto.AnalyticsQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		badRequest(ctx, err)
		return
	}
	snapshot, err := h.analyticsUsecase.SystemAnalytics(ctx.Request.Context(), q.WindowDays)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, snapshot)
}
