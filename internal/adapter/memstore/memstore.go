// Package memstore provides in-memory repository implementations. They back
// the reference-data repositories in production and stand in for the durable
// store in tests; semantics match the valkeystore implementations.
package memstore

import (
	"context"
	"sync"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
)

// PointRepository serves points from a fixed slice.
type PointRepository struct {
	byID  map[string]domain.Point
	order []domain.Point
}

func NewPointRepository(points []domain.Point) *PointRepository {
	r := &PointRepository{byID: make(map[string]domain.Point, len(points)), order: points}
	for _, p := range points {
		r.byID[p.ID] = p
	}
	return r
}

func (r *PointRepository) Point(_ context.Context, pointID string) (*domain.Point, error) {
	if p, ok := r.byID[pointID]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r *PointRepository) Points(_ context.Context) ([]domain.Point, error) {
	out := make([]domain.Point, len(r.order))
	copy(out, r.order)
	return out, nil
}

// RegionRepository serves regions from a fixed slice.
type RegionRepository struct {
	byKey map[string]domain.Region
	order []domain.Region
}

func NewRegionRepository(regions []domain.Region) *RegionRepository {
	r := &RegionRepository{byKey: make(map[string]domain.Region, len(regions)), order: regions}
	for _, region := range regions {
		r.byKey[region.Key] = region
	}
	return r
}

func (r *RegionRepository) Region(_ context.Context, regionKey string) (*domain.Region, error) {
	if region, ok := r.byKey[regionKey]; ok {
		return &region, nil
	}
	return nil, nil
}

func (r *RegionRepository) Regions(_ context.Context) ([]domain.Region, error) {
	out := make([]domain.Region, len(r.order))
	copy(out, r.order)
	return out, nil
}

// AlertLevelRepository serves the alert range table from a fixed slice,
// preserving file order for classification tie-breaks.
type AlertLevelRepository struct {
	byKey map[string]domain.AlertLevel
	order []domain.AlertLevel
}

func NewAlertLevelRepository(levels []domain.AlertLevel) *AlertLevelRepository {
	r := &AlertLevelRepository{byKey: make(map[string]domain.AlertLevel, len(levels)), order: levels}
	for _, l := range levels {
		r.byKey[l.Key] = l
	}
	return r
}

func (r *AlertLevelRepository) AlertLevel(_ context.Context, key string) (*domain.AlertLevel, error) {
	if l, ok := r.byKey[key]; ok {
		return &l, nil
	}
	return nil, nil
}

func (r *AlertLevelRepository) AlertLevels(_ context.Context) ([]domain.AlertLevel, error) {
	out := make([]domain.AlertLevel, len(r.order))
	copy(out, r.order)
	return out, nil
}

// ForecastRepository stores forecasts in a map. Expiry is not simulated;
// the durable store owns retention.
type ForecastRepository struct {
	mu        sync.RWMutex
	forecasts map[string]domain.Forecast
}

func NewForecastRepository() *ForecastRepository {
	return &ForecastRepository{forecasts: make(map[string]domain.Forecast)}
}

func (r *ForecastRepository) Forecast(_ context.Context, key string) (*domain.Forecast, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.forecasts[key]; ok {
		return &f, nil
	}
	return nil, nil
}

func (r *ForecastRepository) PutForecasts(_ context.Context, forecasts []domain.Forecast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range forecasts {
		r.forecasts[f.Key] = f
	}
	return nil
}

// SubscriberRepository stores settings keyed by user, preserving first-put
// order in AllSubscribers.
type SubscriberRepository struct {
	mu    sync.RWMutex
	byID  map[string]int
	order []domain.SubscriberSetting
}

func NewSubscriberRepository() *SubscriberRepository {
	return &SubscriberRepository{byID: make(map[string]int)}
}

func (r *SubscriberRepository) Subscriber(_ context.Context, userID string) (*domain.SubscriberSetting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i, ok := r.byID[userID]; ok {
		s := r.order[i]
		return &s, nil
	}
	return nil, nil
}

func (r *SubscriberRepository) AllSubscribers(_ context.Context) ([]domain.SubscriberSetting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SubscriberSetting, len(r.order))
	copy(out, r.order)
	return out, nil
}

func (r *SubscriberRepository) PutSubscriber(_ context.Context, setting domain.SubscriberSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.byID[setting.UserID]; ok {
		r.order[i] = setting
		return nil
	}
	r.byID[setting.UserID] = len(r.order)
	r.order = append(r.order, setting)
	return nil
}

func (r *SubscriberRepository) DeleteSubscriber(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteLocked(func(s domain.SubscriberSetting) bool { return s.UserID == userID })
	return nil
}

func (r *SubscriberRepository) DeleteSubscribersByDomain(_ context.Context, domainID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteLocked(func(s domain.SubscriberSetting) bool { return s.DomainID == domainID })
	return nil
}

func (r *SubscriberRepository) deleteLocked(drop func(domain.SubscriberSetting) bool) {
	kept := r.order[:0]
	for _, s := range r.order {
		if !drop(s) {
			kept = append(kept, s)
		}
	}
	r.order = kept
	r.byID = make(map[string]int, len(kept))
	for i, s := range kept {
		r.byID[s.UserID] = i
	}
}

// AccessTokenRepository stores one token per tenant.
type AccessTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]domain.AccessToken
}

func NewAccessTokenRepository() *AccessTokenRepository {
	return &AccessTokenRepository{tokens: make(map[string]domain.AccessToken)}
}

func (r *AccessTokenRepository) AccessToken(_ context.Context, domainID string) (*domain.AccessToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.tokens[domainID]; ok {
		return &t, nil
	}
	return nil, nil
}

func (r *AccessTokenRepository) PutAccessToken(_ context.Context, token domain.AccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.DomainID] = token
	return nil
}

func (r *AccessTokenRepository) DeleteAccessToken(_ context.Context, domainID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, domainID)
	return nil
}

// ClientCredentialRepository stores credentials keyed by (bot, tenant).
type ClientCredentialRepository struct {
	mu    sync.RWMutex
	creds map[string]domain.ClientCredential
}

func NewClientCredentialRepository() *ClientCredentialRepository {
	return &ClientCredentialRepository{creds: make(map[string]domain.ClientCredential)}
}

func credKey(botID, domainID string) string {
	return botID + "/" + domainID
}

func (r *ClientCredentialRepository) ClientCredential(_ context.Context, botID, domainID string) (*domain.ClientCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.creds[credKey(botID, domainID)]; ok {
		return &c, nil
	}
	return nil, nil
}

func (r *ClientCredentialRepository) PutClientCredential(_ context.Context, cred domain.ClientCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds[credKey(cred.BotID, cred.DomainID)] = cred
	return nil
}

// InstalledAppRepository stores install records per tenant.
type InstalledAppRepository struct {
	mu   sync.RWMutex
	apps map[string]domain.InstalledApp
}

func NewInstalledAppRepository() *InstalledAppRepository {
	return &InstalledAppRepository{apps: make(map[string]domain.InstalledApp)}
}

func (r *InstalledAppRepository) InstalledApp(_ context.Context, domainID string) (*domain.InstalledApp, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.apps[domainID]; ok {
		return &a, nil
	}
	return nil, nil
}

func (r *InstalledAppRepository) PutInstalledApp(_ context.Context, app domain.InstalledApp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[app.DomainID] = app
	return nil
}

func (r *InstalledAppRepository) DeleteInstalledApp(_ context.Context, domainID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.apps, domainID)
	return nil
}

// BotInfoRepository stores bot identities.
type BotInfoRepository struct {
	mu   sync.RWMutex
	bots map[string]domain.BotInfo
}

func NewBotInfoRepository() *BotInfoRepository {
	return &BotInfoRepository{bots: make(map[string]domain.BotInfo)}
}

func (r *BotInfoRepository) BotInfo(_ context.Context, botID string) (*domain.BotInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.bots[botID]; ok {
		return &b, nil
	}
	return nil, nil
}

func (r *BotInfoRepository) PutBotInfo(_ context.Context, info domain.BotInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bots[info.BotID] = info
	return nil
}
