package http

import (
	"net/http"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/usecase"

	"github.com/gin-gonic/gin"
)

type IOfflineHandler interface {
	Reconcile(ctx *gin.Context)
}

type OfflineHandler struct {
	reconcileUsecase usecase.IReconcileUsecase
	observe          func(model.ReconciliationReport)
}

// NewOfflineHandler builds the handler; observe, when set, sees every report.
func NewOfflineHandler(uc usecase.IReconcileUsecase, observe func(model.ReconciliationReport)) IOfflineHandler {
	return &OfflineHandler{reconcileUsecase: uc, observe: observe}
}

// Reconcile replays the client's queue and always answers 200 with the three
// buckets; per-entry failures are reported inside the body.
func (h *OfflineHandler) Reconcile(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req dto.ReconcileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	report := h.reconcileUsecase.Reconcile(ctx.Request.Context(), userID, req.Entries)
	if h.observe != nil {
		h.observe(report)
	}
	ctx.JSON(http.StatusOK, report)
}
