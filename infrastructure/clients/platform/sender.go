package platform

import (
	"context"
	"encoding/json"
	"net/http"

	"crosspost/domain/model"
)

// Sender talks to one platform API with a user's access token.
type Sender interface {
	Publish(ctx context.Context, token string, req model.DispatchRequest) (remoteID string, err error)
	Delete(ctx context.Context, token, remoteID string) error
	Identify(ctx context.Context, token string) (*model.AccountIdentity, error)
}

// doJSON executes req and decodes a 2xx body into out when out is non-nil.
func doJSON(client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
