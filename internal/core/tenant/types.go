// Package tenant carries the caller identity every business operation runs under.
// All documents and stock rows are scoped to a company; the caller's role
// decides whether it may change them.
package tenant

import (
	"facturo/internal/core/apperror"
	"facturo/internal/core/id"
)

// Role is the caller's permission level inside a company.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAccountant Role = "accountant"
	RoleViewer     Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAccountant, RoleViewer:
		return true
	}
	return false
}

// CanWrite reports whether the role may create or modify documents.
func (r Role) CanWrite() bool {
	return r == RoleAdmin || r == RoleAccountant
}

// TenantContext identifies who is acting and on behalf of which company.
// It is passed explicitly to every service call.
type TenantContext struct {
	CompanyID id.ID  `json:"companyId"`
	UserID    string `json:"userId"`
	Role      Role   `json:"role"`
}

// New builds a TenantContext.
func New(companyID id.ID, userID string, role Role) TenantContext {
	return TenantContext{CompanyID: companyID, UserID: userID, Role: role}
}

// Validate checks that the context can be used for reads.
func (t TenantContext) Validate() error {
	if id.IsNil(t.CompanyID) {
		return apperror.NewUnauthorized("company is required")
	}
	if t.UserID == "" {
		return apperror.NewUnauthorized("user is required")
	}
	if !t.Role.Valid() {
		return apperror.NewForbidden("unknown role").WithDetail("role", string(t.Role))
	}
	return nil
}

// RequireWrite checks that the context can be used for mutations.
func (t TenantContext) RequireWrite() error {
	if err := t.Validate(); err != nil {
		return err
	}
	if !t.Role.CanWrite() {
		return apperror.NewForbidden("role is read-only").WithDetail("role", string(t.Role))
	}
	return nil
}
