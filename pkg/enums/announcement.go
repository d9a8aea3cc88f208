package enums

import "fmt"

// AnnouncementType controls how an announcement banner is rendered.
type AnnouncementType string

const (
	AnnouncementTypeInfo    AnnouncementType = "info"
	AnnouncementTypeWarning AnnouncementType = "warning"
	AnnouncementTypeUrgent  AnnouncementType = "urgent"
)

var validAnnouncementTypes = []AnnouncementType{
	AnnouncementTypeInfo,
	AnnouncementTypeWarning,
	AnnouncementTypeUrgent,
}

// IsValid reports whether the value is a known AnnouncementType.
func (a AnnouncementType) IsValid() bool {
	for _, candidate := range validAnnouncementTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAnnouncementType converts raw input into an AnnouncementType.
func ParseAnnouncementType(value string) (AnnouncementType, error) {
	for _, candidate := range validAnnouncementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid announcement type %q", value)
}
