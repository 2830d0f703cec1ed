package platform

import (
	"context"
	"errors"

	"crosspost/domain/model"

	"github.com/google/uuid"
)

// LoopbackSender accepts every request without leaving the process. It serves
// platforms that have no live API credentials configured.
type LoopbackSender struct {
	platform string
}

func NewLoopbackSender(platform string) *LoopbackSender {
	return &LoopbackSender{platform: platform}
}

var errEmptyToken = &StatusError{Code: 401, Body: "empty access token"}

func (s *LoopbackSender) Publish(_ context.Context, token string, req model.DispatchRequest) (string, error) {
	if token == "" {
		return "", errEmptyToken
	}
	return s.platform + "-" + uuid.NewString(), nil
}

func (s *LoopbackSender) Delete(_ context.Context, token, remoteID string) error {
	if remoteID == "" {
		return errors.New("missing remote id")
	}
	return nil
}

func (s *LoopbackSender) Identify(_ context.Context, token string) (*model.AccountIdentity, error) {
	if token == "" {
		return nil, errEmptyToken
	}
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(s.platform+":"+token))
	return &model.AccountIdentity{RemoteID: id.String(), Name: s.platform + " account"}, nil
}
