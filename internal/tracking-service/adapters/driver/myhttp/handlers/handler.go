package handlers

import (
	"net/http"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/adapters/driver/myhttp/middleware"
	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/ports/driver"
)

type Handlers struct {
	WebSocketHandler *WebSocketHandler
	VehicleHandler   *VehicleHandler
	DriverHandler    *DriverHandler
	HealthHandler    *HealthHandler
}

func New(auth driver.IAuthService, tracking driver.ITrackingService, checks []HealthCheck, sendBuffer int, log mylogger.Logger) *Handlers {
	return &Handlers{
		WebSocketHandler: NewWebSocketHandler(auth, tracking, sendBuffer, log),
		VehicleHandler:   NewVehicleHandler(tracking, log),
		DriverHandler:    NewDriverHandler(tracking, log),
		HealthHandler:    NewHealthHandler(checks, log),
	}
}

// identify turns the authenticated principal into a fleet identity.
func identify(r *http.Request, tracking driver.ITrackingService) (model.Identity, error) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		return nil, model.ErrAuthorization
	}
	return tracking.Identify(r.Context(), p)
}
