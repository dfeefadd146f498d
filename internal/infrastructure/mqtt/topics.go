package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every CityWalk topic.
const TopicPrefix = "citywalk"

// Topics builds CityWalk topic names.
//
//	mqtt.Topics{}.Event("ar_session_start") // citywalk/events/ar_session_start
type Topics struct{}

// Event returns the topic for one event type. Characters that are MQTT
// wildcards or separators are replaced so a type never spans levels.
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/events/%s", TopicPrefix, sanitize(eventType))
}

// AllEvents matches every event topic.
func (Topics) AllEvents() string {
	return TopicPrefix + "/events/#"
}

// SystemStatus is the retained online/offline topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

var topicReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_")

func sanitize(s string) string {
	s = topicReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}
