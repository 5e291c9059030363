package handlers

import (
	"context"
	"fmt"
	"net/http"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/adapters/driver/myhttp/middleware"
	"bus-tracker/internal/tracking-service/adapters/driver/myhttp/ws"
	"bus-tracker/internal/tracking-service/core/domain/dto"
	"bus-tracker/internal/tracking-service/core/domain/model"
	websocketdto "bus-tracker/internal/tracking-service/core/domain/websocket_dto"
	"bus-tracker/internal/tracking-service/core/ports/driver"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	auth       driver.IAuthService
	tracking   driver.ITrackingService
	upgrader   websocket.Upgrader
	sendBuffer int
	log        mylogger.Logger
}

func NewWebSocketHandler(auth driver.IAuthService, tracking driver.ITrackingService, sendBuffer int, log mylogger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		auth:     auth,
		tracking: tracking,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sendBuffer: sendBuffer,
		log:        log,
	}
}

// HandleWebSocket authenticates before upgrading so refused identities get a
// plain HTTP error, then serves the session until either side hangs up.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	p, err := h.auth.Authenticate(middleware.TokenFromRequest(r))
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error(), "code": model.CodeAuthorization})
		return
	}
	id, err := h.tracking.Identify(r.Context(), p)
	if err != nil {
		jsonError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Action("ws_upgrade_failed").Debug("websocket upgrade failed", "error", err.Error())
		return
	}

	log := h.log.With("user_id", p.UserID, "role", string(p.Role))
	client := ws.NewClient(conn, h.sendBuffer, log)
	go client.WritePump()

	info, err := h.tracking.Join(client, id)
	if err != nil {
		log.Action("ws_join_failed").Error("failed to join session", err)
		client.Close()
		<-client.Stopped()
		return
	}
	log = log.With("session_id", info.ID, "room", info.Room)
	log.Action("ws_connected").Info("session connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client.ReadPump(func(msg []byte) {
		h.dispatch(ctx, info, msg, log)
	})

	h.tracking.Disconnect(info.ID)
	client.Close()
	<-client.Stopped()
	log.Action("ws_disconnected").Info("session disconnected")
}

func (h *WebSocketHandler) dispatch(ctx context.Context, info model.SessionInfo, msg []byte, log mylogger.Logger) {
	var ev websocketdto.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		h.replyError(info.ID, badRequest("malformed event"), log)
		return
	}

	switch ev.Type {
	case websocketdto.EventLocationUpdate:
		var sample dto.LocationSample
		if err := json.Unmarshal(ev.Data, &sample); err != nil {
			h.replyError(info.ID, fmt.Errorf("decode sample: %v: %w", err, model.ErrInvalidCoordinate), log)
			return
		}
		res, err := h.tracking.Ingest(ctx, info.ID, sample)
		if err != nil {
			h.replyError(info.ID, err, log)
			return
		}
		h.reply(info.ID, websocketdto.EventAck, websocketdto.Ack{
			For:       websocketdto.EventLocationUpdate,
			VehicleID: res.State.VehicleID,
			Applied:   res.Applied,
			Active:    res.State.Active,
			Version:   res.State.Version,
		}, log)

	case websocketdto.EventToggleLocation:
		d, ok := info.Identity.(model.DriverIdentity)
		if !ok {
			h.replyError(info.ID, fmt.Errorf("only drivers toggle tracking: %w", model.ErrAuthorization), log)
			return
		}
		var req websocketdto.ToggleLocation
		if err := json.Unmarshal(ev.Data, &req); err != nil {
			h.replyError(info.ID, badRequest("decode toggle"), log)
			return
		}
		st, err := h.tracking.SetTracking(ctx, d, req.IsActive)
		if err != nil {
			h.replyError(info.ID, err, log)
			return
		}
		h.reply(info.ID, websocketdto.EventAck, websocketdto.Ack{
			For:       websocketdto.EventToggleLocation,
			VehicleID: d.VehicleID,
			Applied:   true,
			Active:    st.Active,
			Version:   st.Version,
		}, log)

	case websocketdto.EventPing:
		h.reply(info.ID, websocketdto.EventPong, nil, log)

	default:
		h.replyError(info.ID, badRequest("unknown event type %q", ev.Type), log)
	}
}

func (h *WebSocketHandler) replyError(sessionID string, err error, log mylogger.Logger) {
	code := errorCode(err)
	msg := err.Error()
	if code == model.CodeInternal {
		log.Action("ws_request_failed").Error("request failed", err)
		msg = "internal error"
	}
	h.reply(sessionID, websocketdto.EventError, websocketdto.Error{Code: code, Message: msg}, log)
}

func (h *WebSocketHandler) reply(sessionID, eventType string, payload any, log mylogger.Logger) {
	if err := h.tracking.Reply(sessionID, eventType, payload); err != nil {
		log.Action("ws_reply_failed").Debug("reply not delivered", "type", eventType, "error", err.Error())
	}
}
