package bm

import (
	"context"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/ports/driven"
)

var _ driven.LocationEventPublisher = (*Publisher)(nil)

// Publisher forwards recorded locations to the location topic so other
// services (ETA, analytics) can consume the trail.
type Publisher struct {
	log    mylogger.Logger
	broker driven.IBroker
}

func NewPublisher(broker driven.IBroker, log mylogger.Logger) *Publisher {
	return &Publisher{
		broker: broker,
		log:    log,
	}
}

func RoutingKey(vehicleID string) string {
	return "bus.location." + vehicleID
}

func (p *Publisher) PublishLocation(ctx context.Context, rec model.LocationRecord) error {
	err := p.broker.PublishJSON(ctx, locationExchangeName, RoutingKey(rec.VehicleID), rec)
	if err != nil {
		p.log.Action("publish").Error("failed to publish location", err, "record_id", rec.ID)
		return err
	}
	p.log.Action("publish").Debug("location published", "record_id", rec.ID, "vehicle_id", rec.VehicleID)
	return nil
}
