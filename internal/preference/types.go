package preference

import "time"

// DefaultLanguage is used when no language preference is set.
const DefaultLanguage = "zh-CN"

// Preference is one user's settings (table user_preferences).
type Preference struct {
	UserID                 string         `json:"user_id"`
	PreferredBuildingTypes map[string]any `json:"preferred_building_types"`
	PreferredRouteTypes    map[string]any `json:"preferred_route_types"`
	AccessibilityNeeds     map[string]any `json:"accessibility_needs"`
	LanguagePreference     string         `json:"language_preference"`
	ARSettings             map[string]any `json:"ar_settings"`
	NotificationSettings   map[string]any `json:"notification_settings"`
	GmtCreate              time.Time      `json:"gmt_create"`
	GmtModified            time.Time      `json:"gmt_modified"`
}

// Defaults returns the preferences given to a new user.
func Defaults(userID string) *Preference {
	return &Preference{
		UserID:                 userID,
		PreferredBuildingTypes: map[string]any{"library": true, "classroom": true},
		PreferredRouteTypes:    map[string]any{"walking": true},
		AccessibilityNeeds:     map[string]any{},
		LanguagePreference:     DefaultLanguage,
		ARSettings:             map[string]any{"recognition_sensitivity": "medium"},
		NotificationSettings:   map[string]any{},
	}
}

// Apply copies the known keys of patch onto p and returns the keys it
// applied. Values of the wrong shape are skipped.
func (p *Preference) Apply(patch map[string]any) []string {
	var applied []string
	setMap := func(key string, dst *map[string]any) {
		v, ok := patch[key]
		if !ok {
			return
		}
		if m, ok := v.(map[string]any); ok {
			*dst = m
			applied = append(applied, key)
		}
	}

	setMap("preferred_building_types", &p.PreferredBuildingTypes)
	setMap("preferred_route_types", &p.PreferredRouteTypes)
	setMap("accessibility_needs", &p.AccessibilityNeeds)
	if v, ok := patch["language_preference"].(string); ok && v != "" {
		p.LanguagePreference = v
		applied = append(applied, "language_preference")
	}
	setMap("ar_settings", &p.ARSettings)
	setMap("notification_settings", &p.NotificationSettings)
	return applied
}
