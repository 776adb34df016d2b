// Package tenant holds the site-scoping and soft-delete visibility rules
// shared by every read and write path.
//
// A site is the tenant boundary of the warehouse. Callers bound to a site
// only ever see that site; platform-level callers see every site unless they
// ask for one explicitly.
package tenant

import (
	"context"
	"errors"
	"strings"

	"github.com/wareflow/wareflow-backend/pkg/actor"
)

// ErrNoSite is returned when an operation needs a concrete site and none
// could be resolved from the caller or the request.
var ErrNoSite = errors.New("no site in context")

// Resolve decides which site a read is restricted to.
//
//   - caller bound to a site: that site, regardless of requested
//   - platform caller with an explicit request: the requested site
//   - otherwise: no scoping (scoped == false)
func Resolve(a *actor.Actor, requested *int64) (siteID int64, scoped bool) {
	if a != nil && a.SiteID != nil {
		return *a.SiteID, true
	}
	if requested != nil {
		return *requested, true
	}
	return 0, false
}

// Allows reports whether the caller may touch a record owned by siteID.
// Platform callers may touch any site.
func Allows(a *actor.Actor, siteID int64) bool {
	if a == nil || a.SiteID == nil {
		return true
	}
	return *a.SiteID == siteID
}

// Require resolves the site a write must happen in. Site-bound callers always
// write into their own site; platform callers must name one.
func Require(a *actor.Actor, requested *int64) (int64, error) {
	siteID, ok := Resolve(a, requested)
	if !ok {
		return 0, ErrNoSite
	}
	return siteID, nil
}

// Visibility selects which side of the soft-delete marker a read returns.
type Visibility int

const (
	// Active returns records whose soft-delete marker is unset.
	Active Visibility = iota
	// Deleted returns only soft-deleted records.
	Deleted
)

// ParseVisibility maps the status flag of list requests: "1"/"true" is the
// active view, "0"/"false" the deleted view, anything else falls back to active.
func ParseVisibility(flag string) Visibility {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case "0", "false":
		return Deleted
	default:
		return Active
	}
}

func (v Visibility) String() string {
	if v == Deleted {
		return "deleted"
	}
	return "active"
}

type contextKey string

const requestedSiteKey contextKey = "requested_site"

// WithRequestedSite stores an explicit site override sent by the caller
// (used by platform-level callers only).
func WithRequestedSite(ctx context.Context, siteID int64) context.Context {
	return context.WithValue(ctx, requestedSiteKey, siteID)
}

// RequestedSite returns the explicit site override, if any.
func RequestedSite(ctx context.Context) *int64 {
	if id, ok := ctx.Value(requestedSiteKey).(int64); ok {
		return &id
	}
	return nil
}

// FromContext resolves the site scope for the caller carried by ctx.
func FromContext(ctx context.Context) (int64, bool) {
	return Resolve(actor.FromContext(ctx), RequestedSite(ctx))
}
