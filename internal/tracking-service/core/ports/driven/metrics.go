package driven

type IMetrics interface {
	IngestOutcome(outcome string)
	Delivered(room string)
	Evicted(room string)
	HistoryWritten()
	HistoryFailed()
	HistoryDropped()
	SessionOpened(role string)
	SessionClosed(role string)
	TrackingToggled(state string)
}
