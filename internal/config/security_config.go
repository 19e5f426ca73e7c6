// config/security_config.go
package config

import "feepay-backend/internal/domain"

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Verified identity token required
)

// RouteSecurity is the protection of one HTTP route. An empty Roles list admits any
// authenticated caller.
type RouteSecurity struct {
	Level SecurityLevel
	Roles []domain.Role
}

var staffRoles = []domain.Role{domain.RoleStaff, domain.RoleAdmin, domain.RoleMasterAdmin}
var adminRoles = []domain.Role{domain.RoleAdmin, domain.RoleMasterAdmin}
var anyRole = []domain.Role{domain.RoleStudent, domain.RoleStaff, domain.RoleAdmin, domain.RoleMasterAdmin}

// EndpointSecurityConfig maps route names ("METHOD path-template") to their protection
var EndpointSecurityConfig = map[string]RouteSecurity{
	// Public
	"GET /metrics":                      {Level: SecurityPublic},
	"GET /healthz":                      {Level: SecurityPublic},
	"POST /api/v1/momo/collect/webhook": {Level: SecurityPublic},

	// Fee management
	"POST /api/v1/fees":            {Level: SecurityAccess, Roles: staffRoles},
	"PUT /api/v1/fees/{id}":        {Level: SecurityAccess, Roles: staffRoles},
	"DELETE /api/v1/fees/{id}":     {Level: SecurityAccess, Roles: staffRoles},
	"DELETE /api/v1/students/{id}": {Level: SecurityAccess, Roles: staffRoles},

	// Deletion requests - admins only
	"GET /api/v1/deletion-requests":               {Level: SecurityAccess, Roles: adminRoles},
	"POST /api/v1/deletion-requests/{id}/approve": {Level: SecurityAccess, Roles: adminRoles},
	"POST /api/v1/deletion-requests/{id}/reject":  {Level: SecurityAccess, Roles: adminRoles},

	// Payments
	"POST /api/v1/payments":           {Level: SecurityAccess, Roles: anyRole},
	"POST /api/v1/invoices/{id}/pay":  {Level: SecurityAccess, Roles: []domain.Role{domain.RoleStudent}},
	"GET /api/v1/invoices/{id}":       {Level: SecurityAccess, Roles: anyRole},
	"POST /api/v1/wallet/topup":       {Level: SecurityAccess, Roles: anyRole},
	"POST /api/v1/wallet/topup/momo":  {Level: SecurityAccess, Roles: []domain.Role{domain.RoleStudent}},
	"GET /api/v1/wallet":              {Level: SecurityAccess, Roles: []domain.Role{domain.RoleStudent}},
	"GET /api/v1/wallets/{studentId}": {Level: SecurityAccess, Roles: staffRoles},
	"GET /api/v1/transactions":        {Level: SecurityAccess, Roles: anyRole},
}

// GetRouteSecurity returns the protection for a route name
func GetRouteSecurity(route string) RouteSecurity {
	if sec, exists := EndpointSecurityConfig[route]; exists {
		return sec
	}
	// Default to highest security for unknown routes
	return RouteSecurity{Level: SecurityAccess, Roles: adminRoles}
}

// Allows reports whether role may call the route
func (s RouteSecurity) Allows(role domain.Role) bool {
	if s.Level == SecurityPublic || len(s.Roles) == 0 {
		return true
	}
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}
