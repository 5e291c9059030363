package services

import "bus-tracker/internal/tracking-service/core/ports/driven"

type nopMetrics struct{}

var _ driven.IMetrics = nopMetrics{}

func (nopMetrics) IngestOutcome(string)   {}
func (nopMetrics) Delivered(string)       {}
func (nopMetrics) Evicted(string)         {}
func (nopMetrics) HistoryWritten()        {}
func (nopMetrics) HistoryFailed()         {}
func (nopMetrics) HistoryDropped()        {}
func (nopMetrics) SessionOpened(string)   {}
func (nopMetrics) SessionClosed(string)   {}
func (nopMetrics) TrackingToggled(string) {}
