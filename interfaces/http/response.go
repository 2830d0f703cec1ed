package http

import (
	"context"
	"errors"
	"net/http"

	"crosspost/domain/apperror"
	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/infrastructure/logger"

	"github.com/gin-gonic/gin"
)

const ErrorUnmarshal = "Error while unmarshal"

// currentUser reads the id set by the auth middleware and answers 401 when it
// is missing.
func currentUser(ctx *gin.Context) (string, bool) {
	userID := ctx.GetString("user_id")
	if userID == "" {
		ctx.JSON(http.StatusUnauthorized, dto.Res{ResponseCode: "401", ResponseMessage: "Unauthorized"})
		return "", false
	}
	return userID, true
}

func badRequest(ctx *gin.Context, err error) {
	logger.GetLogger().WithField("error", err).Error(ErrorUnmarshal)
	ctx.JSON(http.StatusBadRequest, dto.Res{
		ResponseCode:    "400",
		ResponseMessage: ErrorUnmarshal,
		Errors:          []string{err.Error()},
	})
}

// respondError maps an engine error to a status code and the dto.Res envelope.
func respondError(ctx *gin.Context, err error) {
	status, res := errorResponse(err)
	entry := logger.GetLogger().WithField("path", ctx.FullPath()).WithField("status", status).WithField("error", err.Error())
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	ctx.JSON(status, res)
}

func errorResponse(err error) (int, dto.Res) {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		res := dto.Res{ResponseCode: appErr.Code, ResponseMessage: appErr.Message, Errors: appErr.Details}
		switch appErr.Kind {
		case apperror.KindValidation:
			return http.StatusBadRequest, res
		case apperror.KindConflict:
			return http.StatusConflict, res
		case apperror.KindNotFound:
			return http.StatusNotFound, res
		case apperror.KindReconciliationPermanent:
			return http.StatusUnprocessableEntity, res
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, dto.Res{ResponseCode: "TIMEOUT", ResponseMessage: "request timed out"}
		}
		return http.StatusInternalServerError, dto.Res{ResponseCode: appErr.Code, ResponseMessage: appErr.Message}
	}

	var dispatchErr *model.DispatchError
	if errors.As(err, &dispatchErr) {
		res := dto.Res{ResponseCode: string(dispatchErr.Reason), ResponseMessage: dispatchErr.Error()}
		if dispatchErr.Temporary() {
			return http.StatusBadGateway, res
		}
		return http.StatusUnprocessableEntity, res
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, dto.Res{ResponseCode: "TIMEOUT", ResponseMessage: "request timed out"}
	}
	return http.StatusInternalServerError, dto.Res{ResponseCode: "500", ResponseMessage: "Internal server error"}
}
