// Package telemetry fans CityWalk activity events out to the optional
// sinks: MQTT for downstream consumers, InfluxDB for time-series
// dashboards and the WebSocket hub for live clients.
//
// Recording never fails the caller. Sink errors are logged and counted.
package telemetry

import (
	"strconv"
	"time"

	"github.com/nerrad567/citywalk-core/internal/infrastructure/logging"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/citywalk-core/internal/metrics"
)

// Event types.
const (
	EventARSessionStart   = "ar_session_start"
	EventARSessionEnd     = "ar_session_end"
	EventPOIScan          = "poi_scan"
	EventNavigationStart  = "navigation_start"
	EventNavigationUpdate = "navigation_update"
	EventNavigationEnd    = "navigation_end"
	EventRecognition      = "recognition"
)

// DefaultChannel receives events that name no channel.
const DefaultChannel = "events"

// Event is one thing that happened on a device.
type Event struct {
	Type      string         `json:"type"`
	SessionID int64          `json:"session_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Time      time.Time      `json:"time"`

	// Channel is the WebSocket channel, e.g. "navigation:12".
	Channel string `json:"-"`
}

// Publisher is the MQTT side (implemented by *mqtt.Client).
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// PointWriter is the InfluxDB side (implemented by *influxdb.Client).
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// Broadcaster is the WebSocket side (implemented by *api.Hub).
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Recorder delivers events to whichever sinks are set.
//
// Thread Safety:
//   - Record is safe for concurrent use once the sinks are set.
type Recorder struct {
	publisher   Publisher
	points      PointWriter
	broadcaster Broadcaster
	logger      *logging.Logger
	now         func() time.Time
}

// NewRecorder creates a recorder with no sinks.
func NewRecorder(logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{logger: logger.With("component", "telemetry"), now: time.Now}
}

// SetPublisher sets the MQTT sink.
func (r *Recorder) SetPublisher(p Publisher) { r.publisher = p }

// SetPointWriter sets the InfluxDB sink.
func (r *Recorder) SetPointWriter(w PointWriter) { r.points = w }

// SetBroadcaster sets the WebSocket sink.
func (r *Recorder) SetBroadcaster(b Broadcaster) { r.broadcaster = b }

// Record delivers ev to every configured sink. A nil Recorder is a no-op.
func (r *Recorder) Record(ev Event) {
	if r == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = r.now().UTC()
	}
	metrics.TelemetryEvents.WithLabelValues(ev.Type).Inc()

	if r.publisher != nil {
		if err := r.publisher.PublishJSON(mqtt.Topics{}.Event(ev.Type), ev); err != nil {
			r.logger.Debug("telemetry publish failed", "type", ev.Type, "error", err)
		}
	}
	if r.points != nil {
		r.points.WritePoint(ev.Type, tags(ev), numericFields(ev.Fields), ev.Time)
	}
	if r.broadcaster != nil {
		channel := ev.Channel
		if channel == "" {
			channel = DefaultChannel
		}
		r.broadcaster.Broadcast(channel, ev)
	}
}

func tags(ev Event) map[string]string {
	t := map[string]string{}
	if ev.UserID != "" {
		t["user_id"] = ev.UserID
	}
	if ev.SessionID != 0 {
		t["session_id"] = strconv.FormatInt(ev.SessionID, 10)
	}
	return t
}

// numericFields keeps the fields InfluxDB can aggregate. Booleans become
// 0/1. An event with none gets count=1 so it is still written.
func numericFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch n := v.(type) {
		case float64, float32, int, int64, int32:
			out[k] = n
		case bool:
			if n {
				out[k] = 1
			} else {
				out[k] = 0
			}
		}
	}
	if len(out) == 0 {
		out["count"] = 1
	}
	return out
}
