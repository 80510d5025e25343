package models

import "context"

// CurrentUser is the identity on whose behalf an operation runs.
type CurrentUser struct {
	ID string
}

// IsZero reports whether no user is set.
func (u CurrentUser) IsZero() bool {
	return u.ID == ""
}

// contextKey is private to avoid collisions with other packages.
type contextKey string

// UserContextKey stores the CurrentUser in a request context.
const UserContextKey contextKey = "currentUser"

// WithCurrentUser returns a context carrying u.
func WithCurrentUser(ctx context.Context, u CurrentUser) context.Context {
	return context.WithValue(ctx, UserContextKey, u)
}

// CurrentUserFromContext extracts the CurrentUser stored by WithCurrentUser.
func CurrentUserFromContext(ctx context.Context) (CurrentUser, bool) {
	u, ok := ctx.Value(UserContextKey).(CurrentUser)
	return u, ok && !u.IsZero()
}
