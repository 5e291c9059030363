package handlers

import (
	"fmt"
	"net/http"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/dto"
	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/ports/driver"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

type DriverHandler struct {
	tracking driver.ITrackingService
	validate *validator.Validate
	log      mylogger.Logger
}

func NewDriverHandler(tracking driver.ITrackingService, log mylogger.Logger) *DriverHandler {
	return &DriverHandler{
		tracking: tracking,
		validate: validator.New(),
		log:      log,
	}
}

// ToggleLocation switches tracking for the caller's bus.
func (dh *DriverHandler) ToggleLocation(w http.ResponseWriter, r *http.Request) {
	req := dto.ToggleRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, badRequest("decode body"))
		return
	}
	if err := dh.validate.Struct(req); err != nil {
		jsonError(w, badRequest("is_active is required"))
		return
	}

	id, err := identify(r, dh.tracking)
	if err != nil {
		jsonError(w, err)
		return
	}
	d, ok := id.(model.DriverIdentity)
	if !ok {
		jsonError(w, fmt.Errorf("only drivers toggle tracking: %w", model.ErrAuthorization))
		return
	}

	st, err := dh.tracking.SetTracking(r.Context(), d, *req.IsActive)
	if err != nil {
		jsonError(w, err)
		return
	}

	msg := "Location tracking stopped"
	if st.Active {
		msg = "Location tracking started"
	}
	jsonResponse(w, http.StatusOK, dto.ToggleResponse{
		VehicleID: d.VehicleID,
		Active:    st.Active,
		Message:   msg,
	})
}

// UpdateLocation ingests one sample for the caller's bus. It follows the same
// rules as a location_update sent over the socket.
func (dh *DriverHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	sample := dto.LocationSample{}
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		jsonError(w, badRequest("decode body"))
		return
	}

	id, err := identify(r, dh.tracking)
	if err != nil {
		jsonError(w, err)
		return
	}
	d, ok := id.(model.DriverIdentity)
	if !ok {
		jsonError(w, fmt.Errorf("only drivers report locations: %w", model.ErrAuthorization))
		return
	}

	res, err := dh.tracking.IngestDriver(r.Context(), d, sample)
	if err != nil {
		dh.log.Action("update_location").Debug("sample rejected", "driver_id", d.UserID, "error", err.Error())
		jsonError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// StudentBusLocation lists the buses on the calling student's route.
func (dh *DriverHandler) StudentBusLocation(w http.ResponseWriter, r *http.Request) {
	id, err := identify(r, dh.tracking)
	if err != nil {
		jsonError(w, err)
		return
	}
	s, ok := id.(model.StudentIdentity)
	if !ok {
		jsonError(w, fmt.Errorf("only students have a route: %w", model.ErrAuthorization))
		return
	}
	jsonResponse(w, http.StatusOK, dto.RouteVehiclesResponse{
		RouteID:  s.RouteID,
		Vehicles: dh.tracking.RouteVehicles(s.RouteID),
	})
}
