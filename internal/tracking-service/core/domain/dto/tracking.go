package dto

type ToggleRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type ToggleResponse struct {
	VehicleID string `json:"vehicle_id"`
	Active    bool   `json:"active"`
	Message   string `json:"message"`
}
