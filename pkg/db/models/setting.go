package models

import (
	"encoding/json"
	"time"
)

// Setting is a keyed JSON blob. Most keys hold local copies of mirrored
// singleton documents (announcements, the daily goal, the PIN config);
// favorites stay local to the station.
type Setting struct {
	Key       string          `gorm:"column:key;primaryKey"`
	Value     json.RawMessage `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Keys for the settings table.
const (
	SettingKeyAnnouncements = "announcements"
	SettingKeyDailyGoal     = "daily_goal"
	SettingKeyPins          = "pins"
	SettingKeyFavorites     = "favorites"
)
