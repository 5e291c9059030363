package services

import (
	"fmt"

	websocketdto "bus-tracker/internal/tracking-service/core/domain/websocket_dto"

	"github.com/goccy/go-json"
)

// NewEvent wraps payload into the websocket envelope.
func NewEvent(typ string, payload any) (websocketdto.Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return websocketdto.Event{}, fmt.Errorf("encode %s event: %w", typ, err)
	}
	return websocketdto.Event{Type: typ, Data: data}, nil
}
