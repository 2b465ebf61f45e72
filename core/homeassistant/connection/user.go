package connection

import (
	"context"
	"fmt"
)

// User is the account the access token belongs to.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsOwner bool   `json:"is_owner"`
	IsAdmin bool   `json:"is_admin"`
}

func CurrentUser(ctx context.Context, conn *Conn) (User, error) {
	var user User
	if err := conn.SendRequest(ctx, struct {
		Type string `json:"type"`
	}{Type: "auth/current_user"}, &user); err != nil {
		return User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return user, nil
}
