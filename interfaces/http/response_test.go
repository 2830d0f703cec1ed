package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"crosspost/domain/apperror"
	"crosspost/domain/model"

	"github.com/stretchr/testify/assert"
)

func TestErrorResponseStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", apperror.Validation([]string{"a", "b"}), http.StatusBadRequest},
		{"conflict", apperror.Conflict(apperror.CodeInvalidState, "post is published"), http.StatusConflict},
		{"not found", apperror.NotFound("post %s not found", "p1"), http.StatusNotFound},
		{"permanent", apperror.ReconciliationPermanent(apperror.CodeUnknownAction, "nope", nil), http.StatusUnprocessableEntity},
		{"persistence", apperror.Persistence("load post", errors.New("db down")), http.StatusInternalServerError},
		{"persistence timeout", apperror.Persistence("load post", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"rejected token", &model.DispatchError{Platform: "twitter", Reason: model.ReasonAuthExpired}, http.StatusUnprocessableEntity},
		{"platform down", &model.DispatchError{Platform: "twitter", Reason: model.ReasonNetworkError}, http.StatusBadGateway},
		{"bare deadline", fmt.Errorf("dispatch: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _ := errorResponse(tc.err)
			assert.Equal(t, tc.code, code)
		})
	}
}

func TestErrorResponseCarriesValidationDetails(t *testing.T) {
	_, res := errorResponse(apperror.Validation([]string{"Content is required", "At least one platform is required"}))
	assert.Equal(t, apperror.CodeValidationFailed, res.ResponseCode)
	assert.Equal(t, []string{"Content is required", "At least one platform is required"}, res.Errors)
}

func TestErrorResponseHidesInternalCause(t *testing.T) {
	_, res := errorResponse(apperror.Persistence("load post", errors.New("password=hunter2")))
	assert.NotContains(t, res.ResponseMessage, "hunter2")
}
