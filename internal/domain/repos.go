package domain

import "context"

// Repositories return (nil, nil) for absent items; "not found" is expected
// at these boundaries and is not an error.

// ForecastRepository stores predicted WBGT values keyed by
// "{point_id}_{time_key}".
type ForecastRepository interface {
	Forecast(ctx context.Context, key string) (*Forecast, error)
	PutForecasts(ctx context.Context, forecasts []Forecast) error
}

// PointRepository serves observation-point reference data.
type PointRepository interface {
	Point(ctx context.Context, pointID string) (*Point, error)
	Points(ctx context.Context) ([]Point, error)
}

// RegionRepository serves region reference data.
type RegionRepository interface {
	Region(ctx context.Context, regionKey string) (*Region, error)
	Regions(ctx context.Context) ([]Region, error)
}

// AlertLevelRepository serves the priority-ordered alert range table.
type AlertLevelRepository interface {
	AlertLevel(ctx context.Context, key string) (*AlertLevel, error)
	AlertLevels(ctx context.Context) ([]AlertLevel, error)
}

// SubscriberRepository stores per-user delivery settings.
type SubscriberRepository interface {
	Subscriber(ctx context.Context, userID string) (*SubscriberSetting, error)
	AllSubscribers(ctx context.Context) ([]SubscriberSetting, error)
	PutSubscriber(ctx context.Context, setting SubscriberSetting) error
	DeleteSubscriber(ctx context.Context, userID string) error
	// DeleteSubscribersByDomain removes every setting owned by a tenant,
	// used when the tenant uninstalls the bot.
	DeleteSubscribersByDomain(ctx context.Context, domainID string) error
}

// AccessTokenRepository stores one bearer token per tenant. Concurrent
// refreshes may race; last write wins, tokens are idempotently replaceable.
type AccessTokenRepository interface {
	AccessToken(ctx context.Context, domainID string) (*AccessToken, error)
	PutAccessToken(ctx context.Context, token AccessToken) error
	DeleteAccessToken(ctx context.Context, domainID string) error
}

// ClientCredentialRepository stores OAuth client material per (bot, tenant).
type ClientCredentialRepository interface {
	ClientCredential(ctx context.Context, botID, domainID string) (*ClientCredential, error)
	PutClientCredential(ctx context.Context, cred ClientCredential) error
}

// InstalledAppRepository records which tenants have the bot installed.
type InstalledAppRepository interface {
	InstalledApp(ctx context.Context, domainID string) (*InstalledApp, error)
	PutInstalledApp(ctx context.Context, app InstalledApp) error
	DeleteInstalledApp(ctx context.Context, domainID string) error
}

// BotInfoRepository serves bot identity and the callback-signature secret.
type BotInfoRepository interface {
	BotInfo(ctx context.Context, botID string) (*BotInfo, error)
	PutBotInfo(ctx context.Context, info BotInfo) error
}
