package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/ports/driven"

	"github.com/redis/go-redis/v9"
)

const (
	streamPrefix = "bus:history:"
	seenPrefix   = "bus:history:seen:"
	seenTTL      = 24 * time.Hour

	// idSkew bounds how far a sample's recorded_at may run ahead of the
	// stream id Redis assigns on arrival. Ingest caps recorded_at at 30s
	// past server time; the rest covers clock drift between hosts.
	idSkew = 2 * time.Minute
)

var _ driven.HistoryStore = (*HistoryStream)(nil)

// appendOnce adds the record to the stream unless its id was already seen.
var appendOnce = redis.NewScript(`
	local ok = redis.call('SET', KEYS[2], '1', 'NX', 'EX', ARGV[6])
	if not ok then
		return 0
	end
	redis.call('XADD', KEYS[1], '*',
		'record_id', ARGV[1],
		'latitude', ARGV[2],
		'longitude', ARGV[3],
		'recorded_at', ARGV[4],
		'recorded_ms', ARGV[5])
	return 1
`)

// HistoryStream keeps one Redis stream per bus.
type HistoryStream struct {
	cli *redis.Client
}

func NewHistoryStream(cli *redis.Client) *HistoryStream {
	return &HistoryStream{cli: cli}
}

func streamKey(vehicleID string) string { return streamPrefix + vehicleID }

func (h *HistoryStream) Append(ctx context.Context, rec model.LocationRecord) error {
	keys := []string{streamKey(rec.VehicleID), seenPrefix + rec.ID}
	_, err := appendOnce.Run(ctx, h.cli, keys,
		rec.ID,
		strconv.FormatFloat(rec.Latitude, 'f', -1, 64),
		strconv.FormatFloat(rec.Longitude, 'f', -1, 64),
		rec.RecordedAt.UTC().Format(time.RFC3339Nano),
		rec.RecordedAt.UnixMilli(),
		int(seenTTL.Seconds()),
	).Result()
	if err != nil {
		return fmt.Errorf("append location %s: %w", rec.ID, err)
	}
	return nil
}

// rangeStart is the lowest stream id that can hold a sample recorded at or
// after from. Samples arrive after they are taken, give or take idSkew, so
// entries older than that are skipped without being read.
func rangeStart(from time.Time) string {
	ms := from.Add(-idSkew).UnixMilli()
	if ms <= 0 {
		return "-"
	}
	return strconv.FormatInt(ms, 10)
}

// Range reads the bus's stream from rangeStart(from) and keeps samples taken
// within [from, to]. Late samples land after newer ones, so the tail is
// filtered by sample time rather than by id.
func (h *HistoryStream) Range(ctx context.Context, vehicleID string, from, to time.Time) ([]model.LocationRecord, error) {
	msgs, err := h.cli.XRange(ctx, streamKey(vehicleID), rangeStart(from), "+").Result()
	if err != nil {
		return nil, fmt.Errorf("read stream %s: %w", vehicleID, err)
	}

	recs := make([]model.LocationRecord, 0, len(msgs))
	for _, msg := range msgs {
		rec, err := recordFromValues(vehicleID, msg.Values)
		if err != nil {
			return nil, fmt.Errorf("decode stream entry %s: %w", msg.ID, err)
		}
		if rec.RecordedAt.Before(from) || rec.RecordedAt.After(to) {
			continue
		}
		recs = append(recs, rec)
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].RecordedAt.Before(recs[j].RecordedAt) })
	return recs, nil
}

func recordFromValues(vehicleID string, values map[string]interface{}) (model.LocationRecord, error) {
	str := func(key string) (string, error) {
		v, ok := values[key].(string)
		if !ok {
			return "", fmt.Errorf("field %q missing", key)
		}
		return v, nil
	}

	rec := model.LocationRecord{VehicleID: vehicleID}
	var err error
	if rec.ID, err = str("record_id"); err != nil {
		return rec, err
	}
	lat, err := str("latitude")
	if err != nil {
		return rec, err
	}
	if rec.Latitude, err = strconv.ParseFloat(lat, 64); err != nil {
		return rec, fmt.Errorf("latitude: %w", err)
	}
	lon, err := str("longitude")
	if err != nil {
		return rec, err
	}
	if rec.Longitude, err = strconv.ParseFloat(lon, 64); err != nil {
		return rec, fmt.Errorf("longitude: %w", err)
	}
	ts, err := str("recorded_at")
	if err != nil {
		return rec, err
	}
	if rec.RecordedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return rec, fmt.Errorf("recorded_at: %w", err)
	}
	return rec, nil
}
