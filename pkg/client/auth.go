package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agrisense/agrisense/internal/models"
)

// ErrLoginFailed is the fixed error for rejected credentials. Nothing
// is stored when login fails.
var ErrLoginFailed = errors.New("login failed: invalid username or password")

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Login obtains a token pair and stores it in the credentials file.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body := map[string]string{
		"username": username,
		"password": password,
	}

	var resp tokenResponse
	err := c.roundTrip(ctx, "POST", "/api/token/", "", body, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == 401 {
			return ErrLoginFailed
		}
		return err
	}
	if resp.AccessToken == "" {
		return fmt.Errorf("token endpoint returned no access token")
	}

	return c.creds.Save(&Credentials{
		ServerURL:    c.baseURL,
		Username:     username,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ObtainedAt:   time.Now(),
	})
}

// Refresh exchanges the stored refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context) error {
	creds, err := c.creds.Load()
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if creds == nil || creds.RefreshToken == "" {
		return ErrNotLoggedIn
	}

	body := map[string]string{"refresh_token": creds.RefreshToken}
	var resp tokenResponse
	if err := c.roundTrip(ctx, "POST", "/api/token/refresh/", "", body, &resp); err != nil {
		return err
	}

	creds.AccessToken = resp.AccessToken
	creds.RefreshToken = resp.RefreshToken
	creds.ObtainedAt = time.Now()
	return c.creds.Save(creds)
}

// Logout revokes the refresh token server-side and clears the stored
// credentials either way.
func (c *Client) Logout(ctx context.Context) error {
	creds, err := c.creds.Load()
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if creds == nil {
		return nil
	}

	if creds.AccessToken != "" && creds.RefreshToken != "" {
		body := map[string]string{"refresh_token": creds.RefreshToken}
		_ = c.roundTrip(ctx, "POST", "/api/token/logout/", creds.AccessToken, body, nil)
	}
	return c.creds.Clear()
}

// CurrentUser returns the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.Get(ctx, "/api/users/me/", &user); err != nil {
		return nil, err
	}
	return &user, nil
}
