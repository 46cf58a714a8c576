// Package actor carries the identity and role of whoever is calling a core
// operation. Every service call receives an Actor explicitly; the HTTP layer
// keeps it in the request context between middleware and handler.
package actor

import (
	"context"
	"fmt"
	"strings"

	"campus-events/internal/apperr"
)

type Role string

const (
	RoleStudent   Role = "student"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", apperr.Validation("invalid role %q", s)
	}
	return r, nil
}

// Actor is the caller of an operation. The zero value is an anonymous viewer.
type Actor struct {
	UserID string
	Email  string
	Role   Role
}

func Anonymous() Actor {
	return Actor{}
}

func (a Actor) Authenticated() bool {
	return a.UserID != ""
}

func (a Actor) IsAdmin() bool {
	return a.Authenticated() && a.Role == RoleAdmin
}

// Owns reports whether the actor is the user identified by userID.
func (a Actor) Owns(userID string) bool {
	return a.Authenticated() && a.UserID == userID
}

// OwnsOrAdmin is the creator-or-admin rule shared by edit, delete and feedback reads.
func (a Actor) OwnsOrAdmin(userID string) bool {
	return a.IsAdmin() || a.Owns(userID)
}

func (a Actor) String() string {
	if !a.Authenticated() {
		return "anonymous"
	}
	return fmt.Sprintf("%s(%s)", a.UserID, a.Role)
}

// Capability is the set of roles allowed to invoke an operation.
type Capability struct {
	name  string
	roles []Role
}

func NewCapability(name string, roles ...Role) Capability {
	return Capability{name: name, roles: roles}
}

// AnyUser admits every authenticated actor.
func AnyUser(name string) Capability {
	return Capability{name: name}
}

func (c Capability) Name() string {
	return c.name
}

func (c Capability) Allows(a Actor) bool {
	if !a.Authenticated() {
		return false
	}
	if len(c.roles) == 0 {
		return true
	}
	for _, r := range c.roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// Check returns Unauthenticated for anonymous callers and Authorization for
// callers whose role is outside the capability.
func (c Capability) Check(a Actor) error {
	if !a.Authenticated() {
		return apperr.Unauthenticated("authentication required to %s", c.name)
	}
	if !c.Allows(a) {
		return apperr.Authorization("access denied: %s requires role %s", c.name, c.rolesString())
	}
	return nil
}

func (c Capability) rolesString() string {
	parts := make([]string, len(c.roles))
	for i, r := range c.roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, " or ")
}

type contextKey string

const actorKey contextKey = "actor"

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// FromContext returns the actor stored by the auth middleware, or Anonymous.
func FromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey).(Actor); ok {
		return a
	}
	return Anonymous()
}
