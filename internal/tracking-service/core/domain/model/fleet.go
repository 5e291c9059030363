package model

// Bus is the read-only fleet record for one vehicle.
type Bus struct {
	BusID     string
	BusNumber string
	RouteID   string
	DriverID  string
}

type Student struct {
	StudentID string
	RouteID   string
}

func RouteRoom(routeID string) string {
	return "route:" + routeID
}

const (
	RoomAdmins  = "admins"
	RoomDrivers = "drivers"
)
