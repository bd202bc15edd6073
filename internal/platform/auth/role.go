package auth

import (
	"context"
	"fmt"
	"strings"
)

// Role is the closed set of roles an identity provider may assign.
type Role int

const (
	RoleAnonymous Role = iota
	RoleUser
	RoleDoctor
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAnonymous:
		return "ANONYMOUS"
	case RoleUser:
		return "USER"
	case RoleDoctor:
		return "DOCTOR"
	case RoleAdmin:
		return "ADMIN"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// ParseRole accepts "ADMIN", "admin" and Spring-style "ROLE_ADMIN".
// ANONYMOUS is never accepted from a credential.
func ParseRole(s string) (Role, error) {
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "ROLE_") {
	case "USER":
		return RoleUser, nil
	case "DOCTOR":
		return RoleDoctor, nil
	case "ADMIN":
		return RoleAdmin, nil
	}
	return RoleAnonymous, fmt.Errorf("unknown role %q", s)
}

// Principal is the authenticated identity attached to a request.
// The zero value is the anonymous principal.
type Principal struct {
	ID   string
	Role Role
}

func (p Principal) Authenticated() bool {
	return p.ID != "" && p.Role != RoleAnonymous
}

func (p Principal) IsAdmin() bool {
	return p.Authenticated() && p.Role == RoleAdmin
}

func (p Principal) String() string {
	if !p.Authenticated() {
		return "anonymous"
	}
	return p.ID + "(" + p.Role.String() + ")"
}

const PrincipalKey contextKey = "principal"

// WithPrincipal stores p on ctx. Only transport code should read it back;
// domain services receive the principal as an explicit argument.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// PrincipalFromContext returns the request principal, or the anonymous
// principal when none was attached.
func PrincipalFromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(PrincipalKey).(Principal)
	return p
}
