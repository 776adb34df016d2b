// Package actor identifies the caller performing a warehouse operation.
//
// The actor is attached to the request context by the authentication
// middleware and read by the query engine (site scoping), the services
// (privilege checks, audit stamps) and the repositories (created_by/updated_by).
package actor

import (
	"context"
	"fmt"

	"github.com/wareflow/wareflow-backend/pkg/permissions"
)

// Actor represents the entity performing an action in the system.
type Actor struct {
	// ID is the user id of the caller.
	ID int64 `json:"id"`

	// Username is stamped into audit columns and traceability records.
	Username string `json:"username"`

	// SiteID is the site (tenant) the caller belongs to. Nil marks a
	// platform-level caller that is not bound to any site.
	SiteID *int64 `json:"site_id,omitempty"`

	// Role is informational; decisions are made on Permissions.
	Role string `json:"role,omitempty"`

	Permissions []string `json:"permissions,omitempty"`
}

const systemUsername = "system"

// Name returns the username recorded in audit columns.
func (a *Actor) Name() string {
	if a == nil || a.Username == "" {
		return systemUsername
	}
	return a.Username
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return systemUsername
	}
	if a.SiteID == nil {
		return fmt.Sprintf("%s (#%d, all sites)", a.Name(), a.ID)
	}
	return fmt.Sprintf("%s (#%d, site %d)", a.Name(), a.ID, *a.SiteID)
}

// IsPlatform reports whether the caller is not bound to a site.
func (a *Actor) IsPlatform() bool {
	return a != nil && a.SiteID == nil
}

// Can reports whether the actor holds the permission. A nil actor is the
// system and may do anything.
func (a *Actor) Can(permission string) bool {
	if a == nil {
		return true
	}
	return permissions.HasPermission(a.Permissions, permission)
}

// UserID returns the caller id as a nullable value for columns such as picker_id.
func (a *Actor) UserID() *int64 {
	if a == nil || a.ID == 0 {
		return nil
	}
	id := a.ID
	return &id
}

// contextKey is the type for context keys to avoid collisions
type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present (e.g., system operations).
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}
