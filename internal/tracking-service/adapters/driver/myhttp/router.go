package myhttp

import (
	"net/http"

	"bus-tracker/internal/tracking-service/adapters/driver/myhttp/handlers"
	"bus-tracker/internal/tracking-service/adapters/driver/myhttp/middleware"
	"bus-tracker/internal/tracking-service/core/domain/model"
)

// Router wires the websocket endpoint and the query surface. metrics may be nil.
func Router(h *handlers.Handlers, mdl *middleware.AuthMiddleware, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws", h.WebSocketHandler.HandleWebSocket)

	mux.Handle("GET /vehicles", mdl.SessionHandler(http.HandlerFunc(h.VehicleHandler.ListVehicles), model.RoleAdmin))
	mux.Handle("GET /vehicles/{vehicle_id}/location", mdl.SessionHandler(http.HandlerFunc(h.VehicleHandler.GetLocation)))
	mux.Handle("GET /vehicles/{vehicle_id}/history", mdl.SessionHandler(http.HandlerFunc(h.VehicleHandler.GetHistory)))

	mux.Handle("GET /student/bus-location", mdl.SessionHandler(http.HandlerFunc(h.DriverHandler.StudentBusLocation), model.RoleStudent))
	mux.Handle("POST /driver/toggle-location", mdl.SessionHandler(http.HandlerFunc(h.DriverHandler.ToggleLocation), model.RoleDriver))
	mux.Handle("POST /driver/update-location", mdl.SessionHandler(http.HandlerFunc(h.DriverHandler.UpdateLocation), model.RoleDriver))

	mux.HandleFunc("GET /health", h.HealthHandler.Health)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	return mux
}
