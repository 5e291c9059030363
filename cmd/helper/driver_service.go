package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/dto"
	websocketdto "bus-tracker/internal/tracking-service/core/domain/websocket_dto"

	"github.com/goccy/go-json"
)

const earthRadiusMeters = 6371000.0

type DriverService struct {
	cfg        Config
	current    Location
	httpClient *HTTPClient
	wsClient   *WebSocketClient
	logger     mylogger.Logger
	ctx        context.Context
}

func NewDriverService(ctx context.Context, cfg Config, logger mylogger.Logger) *DriverService {
	return &DriverService{
		cfg:        cfg,
		current:    cfg.Start,
		httpClient: NewHTTPClient(logger),
		wsClient:   NewWebSocketClient(ctx, logger),
		logger:     logger,
		ctx:        ctx,
	}
}

func (d *DriverService) wsURL() string {
	base := strings.TrimSuffix(d.cfg.BaseURL, "/")
	base = strings.Replace(base, "http", "ws", 1)
	return base + WSPath
}

// SetTracking flips the tracking switch through the HTTP endpoint.
func (d *DriverService) SetTracking(active bool) error {
	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + d.cfg.Token,
	}
	body := map[string]bool{"is_active": active}

	data, err := d.httpClient.DoRequest("POST", strings.TrimSuffix(d.cfg.BaseURL, "/")+TogglePath, body, headers)
	if err != nil {
		return fmt.Errorf("toggle tracking: %w", err)
	}

	var resp dto.ToggleResponse
	if err := json.Unmarshal(data, &resp); err == nil {
		d.logger.Action("tracking_toggled").Info(resp.Message, "vehicle_id", resp.VehicleID, "active", resp.Active)
	}
	return nil
}

// Run connects, turns tracking on and streams positions until ctx is done or
// the configured number of samples has been sent.
func (d *DriverService) Run() error {
	if err := d.wsClient.Connect(d.wsURL(), d.cfg.Token); err != nil {
		return err
	}
	defer d.wsClient.Close()

	readErr := make(chan error, 1)
	go func() {
		readErr <- d.wsClient.ReadEvents(d.handleEvent)
	}()

	time.Sleep(InitialConnectDelay)
	if err := d.SetTracking(true); err != nil {
		return err
	}
	defer func() {
		if err := d.SetTracking(false); err != nil {
			d.logger.Action("toggle_off_failed").Error("Failed to stop tracking", err)
		}
	}()

	ticker := time.NewTicker(d.cfg.UpdateInterval)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-d.ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case <-ticker.C:
			d.advance(d.cfg.UpdateInterval)
			now := time.Now().UTC()
			sample := dto.NewLocationSample(d.current.Latitude, d.current.Longitude, &now)
			if err := d.wsClient.Send(websocketdto.EventLocationUpdate, sample); err != nil {
				return err
			}
			sent++
			if d.cfg.Samples > 0 && sent >= d.cfg.Samples {
				return nil
			}
		}
	}
}

func (d *DriverService) handleEvent(ev websocketdto.Event) {
	switch ev.Type {
	case websocketdto.EventAck:
		var ack websocketdto.Ack
		if err := json.Unmarshal(ev.Data, &ack); err == nil {
			d.logger.Action("ack").Debug("server acknowledged", "for", ack.For, "applied", ack.Applied, "version", ack.Version)
		}
	case websocketdto.EventError:
		var e websocketdto.Error
		if err := json.Unmarshal(ev.Data, &e); err == nil {
			d.logger.Action("server_error").Warn(e.Message, "code", e.Code)
		}
	case websocketdto.EventLocationUpdate:
		d.logger.Action("peer_update").Debug("another bus moved", "data", string(ev.Data))
	}
}

// advance moves the bus along its heading for elapsed at the configured speed.
func (d *DriverService) advance(elapsed time.Duration) {
	distance := d.cfg.SpeedMps * elapsed.Seconds()
	next := destination(d.current, d.cfg.HeadingDegrees, distance)
	d.current = next
}

// destination returns the point distance meters from p along bearing.
func destination(p Location, bearingDeg, distance float64) Location {
	lat1 := p.Latitude * math.Pi / 180
	lng1 := p.Longitude * math.Pi / 180
	brng := bearingDeg * math.Pi / 180
	ang := distance / earthRadiusMeters

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(ang) + math.Cos(lat1)*math.Sin(ang)*math.Cos(brng))
	lng2 := lng1 + math.Atan2(math.Sin(brng)*math.Sin(ang)*math.Cos(lat1), math.Cos(ang)-math.Sin(lat1)*math.Sin(lat2))

	lng := math.Mod(lng2*180/math.Pi+540, 360) - 180
	return Location{Latitude: lat2 * 180 / math.Pi, Longitude: lng}
}
