package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/google/uuid"

	"github.com/mwork/moderation-api/internal/pkg/jwt"
	"github.com/mwork/moderation-api/internal/pkg/response"
)

// Permission is an operator capability
type Permission string

const (
	PermViewModeration  Permission = "moderation.view"
	PermModerateContent Permission = "content.moderate"
	PermManageRisk      Permission = "moderation.risk"
	PermOverride        Permission = "moderation.override"
)

// Operator roles
const (
	RoleSuperAdmin  = "super_admin"
	RoleAdmin       = "admin"
	RoleModerator   = "moderator"
	RoleSupport     = "support"
	RoleRiskService = "risk_service"
)

// DefaultRolePermissions maps operator roles to their permissions
var DefaultRolePermissions = map[string][]Permission{
	RoleSuperAdmin: {
		PermViewModeration, PermModerateContent, PermManageRisk, PermOverride,
	},
	RoleAdmin: {
		PermViewModeration, PermModerateContent, PermManageRisk, PermOverride,
	},
	RoleModerator: {
		PermViewModeration, PermModerateContent, PermOverride,
	},
	RoleSupport: {
		PermViewModeration,
	},
	RoleRiskService: {
		PermViewModeration, PermManageRisk,
	},
}

const (
	operatorIDKey    contextKey = "operator_id"
	operatorRoleKey  contextKey = "operator_role"
	operatorPermsKey contextKey = "operator_permissions"
)

// OperatorAuthConfig configures operator authentication
type OperatorAuthConfig struct {
	JWT             *jwt.Service
	RolePermissions map[string][]Permission
}

// OperatorAuth authenticates moderation operators. Build it once with
// NewOperatorAuth and mount Authenticate on the admin router; per-route
// checks use RequirePermission.
type OperatorAuth struct {
	jwt   *jwt.Service
	roles map[string][]Permission
}

// NewOperatorAuth creates operator authentication from config
func NewOperatorAuth(cfg OperatorAuthConfig) *OperatorAuth {
	roles := cfg.RolePermissions
	if roles == nil {
		roles = DefaultRolePermissions
	}
	return &OperatorAuth{jwt: cfg.JWT, roles: roles}
}

// Authenticate validates the operator token and stores the operator in context
func (a *OperatorAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, problem := bearerToken(r)
		if problem != "" {
			response.Unauthorized(w, problem)
			return
		}

		claims, err := a.jwt.ValidateOperatorToken(token)
		if err != nil {
			response.Unauthorized(w, "Invalid or expired token")
			return
		}

		perms, ok := a.roles[claims.Role]
		if !ok {
			response.Forbidden(w, "Unknown operator role")
			return
		}

		ctx := context.WithValue(r.Context(), operatorIDKey, claims.OperatorID)
		ctx = context.WithValue(ctx, operatorRoleKey, claims.Role)
		ctx = context.WithValue(ctx, operatorPermsKey, perms)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission rejects requests whose operator lacks perm. It must run
// after OperatorAuth.Authenticate.
func RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			perms, _ := r.Context().Value(operatorPermsKey).([]Permission)
			if !slices.Contains(perms, perm) {
				response.Forbidden(w, "Permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetOperatorID extracts operator ID from context
func GetOperatorID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(operatorIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// GetOperatorRole extracts operator role from context
func GetOperatorRole(ctx context.Context) string {
	role, _ := ctx.Value(operatorRoleKey).(string)
	return role
}
