package http

import (
	"net/http"
	"strconv"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/usecase"

	"github.com/gin-gonic/gin"
)

type IPostHandler interface {
	Validate(ctx *gin.Context)
	Create(ctx *gin.Context)
	List(ctx *gin.Context)
	Get(ctx *gin.Context)
	Update(ctx *gin.Context)
	Delete(ctx *gin.Context)
	Dispatch(ctx *gin.Context)
	Redispatch(ctx *gin.Context)
	Outcomes(ctx *gin.Context)
	RefreshEngagement(ctx *gin.Context)
}

type PostHandler struct {
	publishUsecase   usecase.IPublishUsecase
	analyticsUsecase usecase.IAnalyticsUsecase
}

func NewPostHandler(publishUsecase usecase.IPublishUsecase, analyticsUsecase usecase.IAnalyticsUsecase) IPostHandler {
	return &PostHandler{publishUsecase: publishUsecase, analyticsUsecase: analyticsUsecase}
}

// Validate checks content against every requested platform without storing anything.
func (h *PostHandler) Validate(ctx *gin.Context) {
	var req dto.ValidateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, h.publishUsecase.Validate(req.Content, req.Platforms, req.MediaURLs))
}

func (h *PostHandler) Create(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req dto.CreatePostRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = ctx.GetHeader("Idempotency-Key")
	}
	post, err := h.publishUsecase.CreatePost(ctx.Request.Context(), userID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, post)
}

func (h *PostHandler) List(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	status := model.PostStatus(ctx.Query("status"))
	posts, err := h.publishUsecase.ListPosts(ctx.Request.Context(), userID, status, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
}

func (h *PostHandler) Get(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	post, err := h.publishUsecase.GetPost(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, post)
}

func (h *PostHandler) Update(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req dto.UpdatePostRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	post, err := h.publishUsecase.UpdatePost(ctx.Request.Context(), userID, ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, post)
}

func (h *PostHandler) Delete(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	post, removals, err := h.publishUsecase.DeletePost(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if removals == nil {
		removals = []model.RemovalOutcome{}
	}
	ctx.JSON(http.StatusOK, dto.DeletePostResponse{Post: post, Removals: removals})
}

// Dispatch fans the post out to its platforms and answers with the derived status.
func (h *PostHandler) Dispatch(ctx *gin.Context) {
	post, ok := h.ownedPost(ctx)
	if !ok {
		return
	}
	dispatched, err := h.publishUsecase.Dispatch(ctx.Request.Context(), post.ID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dispatched)
}

func (h *PostHandler) Redispatch(ctx *gin.Context) {
	post, ok := h.ownedPost(ctx)
	if !ok {
		return
	}
	dispatched, err := h.publishUsecase.Redispatch(ctx.Request.Context(), post.ID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dispatched)
}

func (h *PostHandler) Outcomes(ctx *gin.Context) {
	post, ok := h.ownedPost(ctx)
	if !ok {
		return
	}
	outcomes, err := h.publishUsecase.Outcomes(ctx.Request.Context(), post.ID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"post_id": post.ID, "outcomes": outcomes})
}

func (h *PostHandler) RefreshEngagement(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	post, err := h.analyticsUsecase.RefreshEngagement(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, post)
}

// ownedPost loads the :id post for the caller; other users' posts read as missing.
func (h *PostHandler) ownedPost(ctx *gin.Context) (*model.SocialPost, bool) {
	userID, ok := currentUser(ctx)
	if !ok {
		return nil, false
	}
	post, err := h.publishUsecase.GetPost(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return nil, false
	}
	return post, true
}
