package http

import (
	"net/http"

	"crosspost/domain/dto"
	"crosspost/usecase"

	"github.com/gin-gonic/gin"
)

type IAccountHandler interface {
	Connect(ctx *gin.Context)
	List(ctx *gin.Context)
	UpdateProfile(ctx *gin.Context)
}

type AccountHandler struct {
	accountUsecase usecase.IAccountUsecase
}

func NewAccountHandler(uc usecase.IAccountUsecase) IAccountHandler {
	return &AccountHandler{accountUsecase: uc}
}

func (h *AccountHandler) Connect(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req dto.ConnectAccountRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	acc, err := h.accountUsecase.Connect(ctx.Request.Context(), userID, req.Platform, req.AuthToken, req.AccountName)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, acc)
}

func (h *AccountHandler) List(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	list, err := h.accountUsecase.List(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"accounts": list})
}

func (h *AccountHandler) UpdateProfile(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	acc, err := h.accountUsecase.UpdateProfile(ctx.Request.Context(), userID, ctx.Param("platform"), req.DisplayName)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, acc)
}
