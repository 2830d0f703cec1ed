package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"crosspost/domain/model"
)

var ErrUnsupportedPlatform = errors.New("unsupported platform")

// StatusError is a non-2xx answer from a platform API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("platform api returned %d: %s", e.Code, e.Body)
}

func newStatusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: string(body)}
}

// Classify maps a sender error onto a dispatch failure reason.
func Classify(platform string, err error) *model.DispatchError {
	if err == nil {
		return nil
	}
	var derr *model.DispatchError
	if errors.As(err, &derr) {
		return derr
	}
	out := &model.DispatchError{Platform: platform, Message: err.Error()}
	var se *StatusError
	switch {
	case errors.As(err, &se):
		out.Reason = reasonForStatus(se.Code)
	case errors.Is(err, ErrUnsupportedPlatform):
		out.Reason = model.ReasonRejected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out.Reason = model.ReasonNetworkError
	default:
		// transport failures
		out.Reason = model.ReasonNetworkError
	}
	return out
}

func reasonForStatus(code int) model.DispatchReason {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return model.ReasonAuthExpired
	case code == http.StatusTooManyRequests:
		return model.ReasonRateLimited
	case code >= 500:
		return model.ReasonNetworkError
	default:
		return model.ReasonRejected
	}
}
