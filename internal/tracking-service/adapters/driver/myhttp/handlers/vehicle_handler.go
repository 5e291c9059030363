package handlers

import (
	"fmt"
	"net/http"
	"time"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/dto"
	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/ports/driver"
)

const defaultHistoryWindow = time.Hour

type VehicleHandler struct {
	tracking driver.ITrackingService
	log      mylogger.Logger
}

func NewVehicleHandler(tracking driver.ITrackingService, log mylogger.Logger) *VehicleHandler {
	return &VehicleHandler{
		tracking: tracking,
		log:      log,
	}
}

// ListVehicles returns the live state of every tracked vehicle.
func (vh *VehicleHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, vh.tracking.Snapshot())
}

func (vh *VehicleHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	vehicleID := r.PathValue("vehicle_id")
	if err := vh.authorize(r, vehicleID); err != nil {
		jsonError(w, err)
		return
	}

	st, err := vh.tracking.CurrentLocation(vehicleID)
	if err != nil {
		jsonError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, st)
}

// GetHistory returns the records in [from, to]. Without parameters the last
// hour is returned.
func (vh *VehicleHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	vehicleID := r.PathValue("vehicle_id")
	if err := vh.authorize(r, vehicleID); err != nil {
		jsonError(w, err)
		return
	}

	from, to, err := parseWindow(r, time.Now().UTC())
	if err != nil {
		jsonError(w, err)
		return
	}

	records, err := vh.tracking.History(r.Context(), vehicleID, from, to)
	if err != nil {
		vh.log.Action("history_query_failed").Error("failed to read history", err, "vehicle_id", vehicleID)
		jsonError(w, err)
		return
	}
	if records == nil {
		records = []model.LocationRecord{}
	}
	jsonResponse(w, http.StatusOK, dto.HistoryResponse{
		VehicleID: vehicleID,
		From:      from,
		To:        to,
		Records:   records,
	})
}

func (vh *VehicleHandler) authorize(r *http.Request, vehicleID string) error {
	id, err := identify(r, vh.tracking)
	if err != nil {
		return err
	}
	if !vh.tracking.CanView(id, vehicleID) {
		return fmt.Errorf("vehicle %s: %w", vehicleID, model.ErrAuthorization)
	}
	return nil
}

func parseWindow(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	q := r.URL.Query()
	to := now
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, badRequest("invalid to %q", v)
		}
		to = t.UTC()
	}
	from := to.Add(-defaultHistoryWindow)
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, badRequest("invalid from %q", v)
		}
		from = t.UTC()
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, badRequest("from is after to")
	}
	return from, to, nil
}
