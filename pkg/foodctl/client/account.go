package client

import (
	"context"
	"net/http"
)

type AccountService struct {
	client *Client
}

func (c *Client) Account() *AccountService {
	return &AccountService{client: c}
}

// Register creates a new account. It does not start a session.
func (a *AccountService) Register(ctx context.Context, username, password string) error {
	return a.client.tokens.Register(ctx, username, password)
}

// Verify asks the server whether the current access token is accepted.
func (a *AccountService) Verify(ctx context.Context) (bool, error) {
	var out struct {
		Success  bool   `json:"success"`
		Username string `json:"username"`
	}
	if err := a.client.do(ctx, http.MethodGet, "verify", nil, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}
