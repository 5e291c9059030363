package model

import (
	"fmt"
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"ADMIN", RoleAdmin, true},
		{"driver", RoleDriver, true},
		{" Student ", RoleStudent, true},
		{"passenger", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRole(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseRole(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestIdentityRoles(t *testing.T) {
	ids := map[Role]Identity{
		RoleStudent: StudentIdentity{UserID: "s1", RouteID: "r1"},
		RoleDriver:  DriverIdentity{UserID: "d1", VehicleID: "v1"},
		RoleAdmin:   AdminIdentity{UserID: "a1"},
	}
	for want, id := range ids {
		if id.Role() != want {
			t.Errorf("%T.Role() = %q, want %q", id, id.Role(), want)
		}
	}
}

func TestVehicleStateCopy(t *testing.T) {
	now := time.Now()
	s := VehicleState{VehicleID: "v1", Position: &Position{1, 2}, LastUpdated: &now, Active: true}
	c := s.Copy()
	c.Position.Latitude = 50
	*c.LastUpdated = now.Add(time.Hour)
	if s.Position.Latitude != 1 {
		t.Error("Copy shares Position with the original")
	}
	if !s.LastUpdated.Equal(now) {
		t.Error("Copy shares LastUpdated with the original")
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("join: %w", ErrAuthorization), CodeAuthorization},
		{ErrSessionNotFound, CodeAuthorization},
		{fmt.Errorf("ingest: %w", ErrNotTracking), CodeNotTracking},
		{ErrInvalidCoordinate, CodeInvalidCoordinate},
		{ErrInvalidStateTransition, CodeInvalidStateTransition},
		{ErrVehicleNotFound, CodeVehicleNotFound},
		{fmt.Errorf("boom"), CodeInternal},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
