package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of staff roles. Field roles may run tracking
// sessions; admin roles may read the live map and routes.
type Role string

const (
	RoleSalesman        Role = "SALESMAN"
	RoleServiceEngineer Role = "SERVICE_ENGINEER"
	RoleAdmin           Role = "ADMIN"
	RoleReception       Role = "RECEPTION"
	RoleManager         Role = "MANAGER"
)

var (
	FieldRoles = []Role{RoleSalesman, RoleServiceEngineer}
	AdminRoles = []Role{RoleAdmin, RoleReception, RoleManager}
)

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleSalesman, RoleServiceEngineer, RoleAdmin, RoleReception, RoleManager:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) IsField() bool {
	switch r {
	case RoleSalesman, RoleServiceEngineer:
		return true
	}
	return false
}

func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin, RoleReception, RoleManager:
		return true
	}
	return false
}
