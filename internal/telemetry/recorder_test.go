package telemetry

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/citywalk-core/internal/infrastructure/logging"
)

type fakePublisher struct {
	topics []string
	err    error
}

func (f *fakePublisher) PublishJSON(topic string, _ any) error {
	f.topics = append(f.topics, topic)
	return f.err
}

type point struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
	ts          time.Time
}

type fakeWriter struct{ points []point }

func (f *fakeWriter) WritePoint(m string, tags map[string]string, fields map[string]any, ts time.Time) {
	f.points = append(f.points, point{m, tags, fields, ts})
}

type fakeHub struct{ channels []string }

func (f *fakeHub) Broadcast(channel string, _ any) { f.channels = append(f.channels, channel) }

func TestRecord_AllSinks(t *testing.T) {
	pub, w, hub := &fakePublisher{}, &fakeWriter{}, &fakeHub{}
	r := NewRecorder(logging.Discard())
	r.SetPublisher(pub)
	r.SetPointWriter(w)
	r.SetBroadcaster(hub)
	fixed := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	r.Record(Event{
		Type:      EventNavigationUpdate,
		SessionID: 12,
		UserID:    "u-1",
		Fields:    map[string]any{"latitude": 40.0, "arrow": "left", "arrived": true},
		Channel:   "navigation:12",
	})

	if !reflect.DeepEqual(pub.topics, []string{"citywalk/events/navigation_update"}) {
		t.Errorf("topics = %v", pub.topics)
	}
	if len(w.points) != 1 {
		t.Fatalf("points = %v", w.points)
	}
	p := w.points[0]
	if p.measurement != EventNavigationUpdate || !p.ts.Equal(fixed) {
		t.Errorf("point = %+v", p)
	}
	if !reflect.DeepEqual(p.tags, map[string]string{"user_id": "u-1", "session_id": "12"}) {
		t.Errorf("tags = %v", p.tags)
	}
	if !reflect.DeepEqual(p.fields, map[string]any{"latitude": 40.0, "arrived": 1}) {
		t.Errorf("fields = %v", p.fields)
	}
	if !reflect.DeepEqual(hub.channels, []string{"navigation:12"}) {
		t.Errorf("channels = %v", hub.channels)
	}
}

func TestRecord_Defaults(t *testing.T) {
	w, hub := &fakeWriter{}, &fakeHub{}
	r := NewRecorder(logging.Discard())
	r.SetPointWriter(w)
	r.SetBroadcaster(hub)
	r.SetPublisher(&fakePublisher{err: errors.New("not connected")})

	r.Record(Event{Type: EventARSessionStart})

	if hub.channels[0] != DefaultChannel {
		t.Errorf("channel = %q, want default", hub.channels[0])
	}
	if w.points[0].fields["count"] != 1 || len(w.points[0].tags) != 0 {
		t.Errorf("point = %+v", w.points[0])
	}
	if w.points[0].ts.IsZero() {
		t.Error("timestamp not filled")
	}
}

func TestRecord_NoSinks(t *testing.T) {
	NewRecorder(logging.Discard()).Record(Event{Type: EventPOIScan})

	var r *Recorder
	r.Record(Event{Type: EventPOIScan})
}
