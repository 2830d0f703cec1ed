package http

import (
	"net/http"

	"crosspost/domain/dto"
	"crosspost/usecase"

	"github.com/gin-gonic/gin"
)

type IPlatformHandler interface {
	List(ctx *gin.Context)
	Health(ctx *gin.Context)
}

type PlatformHandler struct {
	registry *usecase.ConstraintRegistry
}

func NewPlatformHandler(registry *usecase.ConstraintRegistry) IPlatformHandler {
	return &PlatformHandler{registry: registry}
}

// List returns the constraint table in lexical platform order.
func (h *PlatformHandler) List(ctx *gin.Context) {
	keys := h.registry.Platforms()
	platforms := make([]dto.PlatformInfo, 0, len(keys))
	for _, p := range keys {
		platforms = append(platforms, dto.PlatformInfo{Platform: p, Constraint: h.registry.ConstraintsFor(p)})
	}
	ctx.JSON(http.StatusOK, gin.H{"platforms": platforms})
}

func (h *PlatformHandler) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}
