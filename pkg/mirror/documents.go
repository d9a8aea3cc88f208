package mirror

import "time"

// Collection names as they appear in the remote store keyspace.
const (
	CollectionOrders   = "orders"
	CollectionProducts = "products"
	CollectionSettings = "settings"
)

// Singleton document ids within the settings collection.
const (
	DocAnnouncements = "announcements"
	DocDailyGoal     = "daily_goal"
	DocPins          = "pins"
)

// OrderItemDoc is one line of a mirrored order.
type OrderItemDoc struct {
	Name      string `json:"name"`
	Price     string `json:"price"`
	Unit      string `json:"unit"`
	Quantity  string `json:"quantity"`
	LineTotal string `json:"lineTotal"`
}

// DiscountDoc is the discount snapshot carried by a mirrored order.
type DiscountDoc struct {
	Type   string `json:"type"`
	Value  string `json:"value"`
	Label  string `json:"label,omitempty"`
	Amount string `json:"amount"`
}

// OrderDoc is the remote representation of a completed order.
type OrderDoc struct {
	ID            string         `json:"id"`
	Items         []OrderItemDoc `json:"items"`
	Subtotal      string         `json:"subtotal"`
	Discount      *DiscountDoc   `json:"discount,omitempty"`
	Total         string         `json:"total"`
	PaymentMethod string         `json:"paymentMethod"`
	CreatedAt     time.Time      `json:"createdAt"`
	CreatedBy     string         `json:"createdBy"`
}

// ProductDoc is the remote representation of one catalog item.
type ProductDoc struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	Unit      string    `json:"unit"`
	Category  string    `json:"category"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AnnouncementDoc is one banner entry in the announcements singleton.
type AnnouncementDoc struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Tone    string `json:"tone"`
	Enabled bool   `json:"enabled"`
}

// AnnouncementsDoc holds the whole banner list as a single document so
// saves replace the list atomically.
type AnnouncementsDoc struct {
	Items     []AnnouncementDoc `json:"items"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// DailyGoalDoc is the per-day sales target singleton.
type DailyGoalDoc struct {
	Date      string    `json:"date"`
	Amount    string    `json:"amount"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PinsDoc carries the hashed station PINs.
type PinsDoc struct {
	VolunteerHash string    `json:"volunteerHash"`
	AdminHash     string    `json:"adminHash"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
