package domain

// ForecastTTLSeconds is the retention window for stored forecast values.
// Items expire store-side at updated_timestamp + 72 hours.
const ForecastTTLSeconds = 259200

// Point identifies a physical WBGT observation location. Immutable
// reference data; each point belongs to exactly one region.
type Point struct {
	ID        string `json:"point_id"`
	Key       string `json:"point_key"`
	RegionKey string `json:"region_key"`
	Name      string `json:"point_name"`
}

// Region is a named collection of observation points (a prefecture).
// Immutable reference data.
type Region struct {
	Key    string   `json:"region_key"`
	Name   string   `json:"region_name"`
	Points []string `json:"points"`
}

// Forecast is one predicted WBGT reading for a (point, time bucket) pair.
type Forecast struct {
	Key       string  `json:"forecast_key"` // "{point_id}_{time_key}"
	PointID   string  `json:"point_id"`
	TimeKey   string  `json:"time_key"` // "yyyymmddhh", hh in 01..24
	Value     float64 `json:"value"`
	UpdatedAt int64   `json:"updated_timestamp"` // unix seconds
}

// ForecastBucket is one row of the published prediction table: a time
// bucket with the raw reading per point ID. Raw readings are the index
// value scaled by 10.
type ForecastBucket struct {
	TimeKey string
	Values  map[string]float64
}

// AlertLevel is a closed WBGT value range with a severity priority and
// display metadata. Higher priority means more severe.
type AlertLevel struct {
	Key             string `json:"alert_level_key"`
	MinValue        int    `json:"min_value"`
	MaxValue        int    `json:"max_value"`
	Priority        int    `json:"priority"`
	Title           string `json:"title"`
	Subtitle        string `json:"subtitle"`
	Description     string `json:"description"`
	BackgroundColor string `json:"background_color"`
	TextColor       string `json:"text_color"`
}

// SubscriberSetting is one subscriber's delivery preference: the region to
// watch and the minimum alert level that triggers a notification.
type SubscriberSetting struct {
	UserID        string `json:"user_id"`
	DomainID      string `json:"domain_id"`
	RegionKey     string `json:"region_key"`
	AlertLevelKey string `json:"alert_level_key"`
}

// RegionBatch is a queue message: one region plus an ordered chunk of its
// subscribers, published by the partitioner and consumed by the decider.
type RegionBatch struct {
	RegionKey   string              `json:"region_key"`
	Subscribers []SubscriberSetting `json:"subscribers"`
}

// PointMax pairs a point with its daily-maximum forecast.
type PointMax struct {
	Point    Point    `json:"point"`
	Forecast Forecast `json:"max_forecast"`
}

// NotificationPayload is a queue message: everything the delivery agent
// needs to notify a single subscriber.
type NotificationPayload struct {
	Day        string            `json:"day"` // "2006-01-02"
	Points     []PointMax        `json:"points"`
	AlertLevel AlertLevel        `json:"alert_level"`
	Region     Region            `json:"region"`
	Subscriber SubscriberSetting `json:"subscriber"`
}

// AccessToken is a tenant-scoped bearer credential. Persisted centrally so
// concurrent delivery workers share one token per tenant; last write wins.
type AccessToken struct {
	DomainID  string `json:"domain_id"`
	Token     string `json:"access_token"`
	CreatedAt int64  `json:"created_at"` // unix seconds
	ExpiresAt int64  `json:"expired_at"` // unix seconds
}

// Expired reports whether the token is past its expiry at the given unix time.
func (t AccessToken) Expired(now int64) bool {
	return t.ExpiresAt < now
}

// ClientCredential holds the OAuth client material used to mint access
// tokens for a bot within a tenant.
type ClientCredential struct {
	BotID          string `json:"bot_id"`
	DomainID       string `json:"domain_id"`
	ClientID       string `json:"client_id"`
	ClientSecret   string `json:"client_secret"`
	ServiceAccount string `json:"service_account"`
	PrivateKey     string `json:"private_key"` // PEM-encoded RSA key
}

// BotInfo identifies the bot and carries the secret used to verify
// callback signatures.
type BotInfo struct {
	BotID            string `json:"bot_id"`
	ProviderDomainID string `json:"provider_domain_id"`
	Secret           string `json:"bot_secret"`
}

// InstalledApp records a tenant that has installed the bot, including the
// service account used for token exchange on that tenant's behalf.
type InstalledApp struct {
	DomainID       string `json:"domain_id"`
	ServiceAccount string `json:"service_account"`
	Version        string `json:"ver"`
}
