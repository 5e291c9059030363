package model

import "strings"

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleDriver  Role = "DRIVER"
	RoleStudent Role = "STUDENT"
)

// ParseRole maps a token claim onto a Role. Matching ignores case.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleDriver:
		return RoleDriver, true
	case RoleStudent:
		return RoleStudent, true
	}
	return "", false
}

// Identity is one of StudentIdentity, DriverIdentity or AdminIdentity.
type Identity interface {
	Role() Role
	Subject() string
	isIdentity()
}

type StudentIdentity struct {
	UserID  string
	RouteID string
}

func (StudentIdentity) Role() Role        { return RoleStudent }
func (s StudentIdentity) Subject() string { return s.UserID }
func (StudentIdentity) isIdentity()       {}

type DriverIdentity struct {
	UserID    string
	VehicleID string
}

func (DriverIdentity) Role() Role        { return RoleDriver }
func (d DriverIdentity) Subject() string { return d.UserID }
func (DriverIdentity) isIdentity()       {}

type AdminIdentity struct {
	UserID      string
	Permissions []string
}

func (AdminIdentity) Role() Role        { return RoleAdmin }
func (a AdminIdentity) Subject() string { return a.UserID }
func (AdminIdentity) isIdentity()       {}

// Principal is what the token layer vouches for before fleet records resolve
// it into an Identity.
type Principal struct {
	UserID string
	Role   Role
}
