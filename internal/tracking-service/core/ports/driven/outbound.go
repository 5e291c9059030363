package driven

import websocketdto "bus-tracker/internal/tracking-service/core/domain/websocket_dto"

// Outbound is the per-connection send queue. Send never blocks: it reports
// false when the queue is full. Close is idempotent.
type Outbound interface {
	Send(ev websocketdto.Event) bool
	Close()
}
