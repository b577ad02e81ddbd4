// Package valkeystore implements the durable repositories on Valkey. Items
// are stored as hashes (flat field-to-string mappings); forecast keys carry
// a store-side expiry of updated_timestamp + 72h via EXPIREAT. A per-tenant
// index set supports bulk subscriber deletion on uninstall.
package valkeystore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/valkey-io/valkey-go"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
)

// Store groups the Valkey-backed repositories behind one client.
type Store struct {
	client valkey.Client
	prefix string
}

// New creates a Store. An empty prefix defaults to "wbgt".
func New(client valkey.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "wbgt"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, kind, id)
}

// getHash fetches a hash item; (nil, nil) when the key does not exist.
func (s *Store) getHash(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.Do(ctx, s.client.B().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

func (s *Store) putHash(ctx context.Context, key string, fields map[string]string) error {
	cmd := s.client.B().Hset().Key(key).FieldValue()
	for f, v := range fields {
		cmd = cmd.FieldValue(f, v)
	}
	if err := s.client.Do(ctx, cmd.Build()).Error(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

func (s *Store) deleteKey(ctx context.Context, key string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// --- forecasts ---

// ForecastRepository implements domain.ForecastRepository.
type ForecastRepository struct{ store *Store }

func (s *Store) Forecasts() *ForecastRepository {
	return &ForecastRepository{store: s}
}

func (r *ForecastRepository) Forecast(ctx context.Context, key string) (*domain.Forecast, error) {
	fields, err := r.store.getHash(ctx, r.store.key("forecast", key))
	if err != nil || fields == nil {
		return nil, err
	}
	f, err := parseForecast(fields)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", key, err)
	}
	return &f, nil
}

// PutForecasts writes a batch of forecasts, setting each key to expire at
// updated_timestamp + ForecastTTLSeconds. Overwriting an existing key
// slides its expiry forward.
func (r *ForecastRepository) PutForecasts(ctx context.Context, forecasts []domain.Forecast) error {
	if len(forecasts) == 0 {
		return nil
	}
	cmds := make([]valkey.Completed, 0, len(forecasts)*2)
	for _, f := range forecasts {
		key := r.store.key("forecast", f.Key)
		cmd := r.store.client.B().Hset().Key(key).FieldValue().
			FieldValue("forecast_key", f.Key).
			FieldValue("point_id", f.PointID).
			FieldValue("time_key", f.TimeKey).
			FieldValue("value", strconv.FormatFloat(f.Value, 'f', -1, 64)).
			FieldValue("updated_timestamp", strconv.FormatInt(f.UpdatedAt, 10)).
			Build()
		expire := r.store.client.B().Expireat().Key(key).
			Timestamp(f.UpdatedAt + domain.ForecastTTLSeconds).Build()
		cmds = append(cmds, cmd, expire)
	}
	for _, resp := range r.store.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("put forecasts: %w", err)
		}
	}
	return nil
}

func parseForecast(fields map[string]string) (domain.Forecast, error) {
	value, err := strconv.ParseFloat(fields["value"], 64)
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("bad value field: %w", err)
	}
	updated, err := strconv.ParseInt(fields["updated_timestamp"], 10, 64)
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("bad updated_timestamp field: %w", err)
	}
	return domain.Forecast{
		Key:       fields["forecast_key"],
		PointID:   fields["point_id"],
		TimeKey:   fields["time_key"],
		Value:     value,
		UpdatedAt: updated,
	}, nil
}

// --- subscribers ---

// SubscriberRepository implements domain.SubscriberRepository. Besides the
// per-user hash it maintains an insertion-ordered list of user IDs and a
// per-tenant index set for bulk deletion.
type SubscriberRepository struct{ store *Store }

func (s *Store) Subscribers() *SubscriberRepository {
	return &SubscriberRepository{store: s}
}

func (r *SubscriberRepository) indexKey() string {
	return r.store.prefix + ":subscribers"
}

func (r *SubscriberRepository) domainKey(domainID string) string {
	return r.store.key("subscribers:domain", domainID)
}

// memberKey guards the order list: SADD here decides atomically which
// writer appends a first-time user, so concurrent puts cannot double-index.
func (r *SubscriberRepository) memberKey() string {
	return r.store.prefix + ":subscribers:members"
}

func (r *SubscriberRepository) Subscriber(ctx context.Context, userID string) (*domain.SubscriberSetting, error) {
	fields, err := r.store.getHash(ctx, r.store.key("subscriber", userID))
	if err != nil || fields == nil {
		return nil, err
	}
	s := subscriberFromFields(fields)
	return &s, nil
}

func (r *SubscriberRepository) AllSubscribers(ctx context.Context) ([]domain.SubscriberSetting, error) {
	c := r.store.client
	ids, err := c.Do(ctx, c.B().Lrange().Key(r.indexKey()).Start(0).Stop(-1).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	out := make([]domain.SubscriberSetting, 0, len(ids))
	for _, id := range ids {
		s, err := r.Subscriber(ctx, id)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *SubscriberRepository) PutSubscriber(ctx context.Context, setting domain.SubscriberSetting) error {
	c := r.store.client
	key := r.store.key("subscriber", setting.UserID)

	if err := r.store.putHash(ctx, key, map[string]string{
		"user_id":         setting.UserID,
		"domain_id":       setting.DomainID,
		"region_key":      setting.RegionKey,
		"alert_level_key": setting.AlertLevelKey,
	}); err != nil {
		return err
	}

	added, err := c.Do(ctx, c.B().Sadd().Key(r.memberKey()).Member(setting.UserID).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("index subscriber %s: %w", setting.UserID, err)
	}
	if added == 1 {
		if err := c.Do(ctx, c.B().Rpush().Key(r.indexKey()).Element(setting.UserID).Build()).Error(); err != nil {
			return fmt.Errorf("index subscriber %s: %w", setting.UserID, err)
		}
	}
	if err := c.Do(ctx, c.B().Sadd().Key(r.domainKey(setting.DomainID)).Member(setting.UserID).Build()).Error(); err != nil {
		return fmt.Errorf("index subscriber domain %s: %w", setting.DomainID, err)
	}
	return nil
}

func (r *SubscriberRepository) DeleteSubscriber(ctx context.Context, userID string) error {
	existing, err := r.Subscriber(ctx, userID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	return r.remove(ctx, *existing)
}

func (r *SubscriberRepository) DeleteSubscribersByDomain(ctx context.Context, domainID string) error {
	c := r.store.client
	ids, err := c.Do(ctx, c.B().Smembers().Key(r.domainKey(domainID)).Build()).AsStrSlice()
	if err != nil {
		return fmt.Errorf("query subscribers for domain %s: %w", domainID, err)
	}
	for _, id := range ids {
		s, err := r.Subscriber(ctx, id)
		if err != nil {
			return err
		}
		if s != nil {
			if err := r.remove(ctx, *s); err != nil {
				return err
			}
		}
	}
	return r.store.deleteKey(ctx, r.domainKey(domainID))
}

func (r *SubscriberRepository) remove(ctx context.Context, setting domain.SubscriberSetting) error {
	c := r.store.client
	if err := r.store.deleteKey(ctx, r.store.key("subscriber", setting.UserID)); err != nil {
		return err
	}
	if err := c.Do(ctx, c.B().Srem().Key(r.memberKey()).Member(setting.UserID).Build()).Error(); err != nil {
		return fmt.Errorf("unindex subscriber %s: %w", setting.UserID, err)
	}
	if err := c.Do(ctx, c.B().Lrem().Key(r.indexKey()).Count(0).Element(setting.UserID).Build()).Error(); err != nil {
		return fmt.Errorf("unindex subscriber %s: %w", setting.UserID, err)
	}
	if err := c.Do(ctx, c.B().Srem().Key(r.domainKey(setting.DomainID)).Member(setting.UserID).Build()).Error(); err != nil {
		return fmt.Errorf("unindex subscriber domain %s: %w", setting.DomainID, err)
	}
	return nil
}

func subscriberFromFields(fields map[string]string) domain.SubscriberSetting {
	return domain.SubscriberSetting{
		UserID:        fields["user_id"],
		DomainID:      fields["domain_id"],
		RegionKey:     fields["region_key"],
		AlertLevelKey: fields["alert_level_key"],
	}
}

// --- access tokens ---

// AccessTokenRepository implements domain.AccessTokenRepository. Puts are
// last-write-wins; tokens are idempotently replaceable.
type AccessTokenRepository struct{ store *Store }

func (s *Store) AccessTokens() *AccessTokenRepository {
	return &AccessTokenRepository{store: s}
}

func (r *AccessTokenRepository) AccessToken(ctx context.Context, domainID string) (*domain.AccessToken, error) {
	fields, err := r.store.getHash(ctx, r.store.key("token", domainID))
	if err != nil || fields == nil {
		return nil, err
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("token %s: bad created_at: %w", domainID, err)
	}
	expires, err := strconv.ParseInt(fields["expired_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("token %s: bad expired_at: %w", domainID, err)
	}
	return &domain.AccessToken{
		DomainID:  fields["domain_id"],
		Token:     fields["access_token"],
		CreatedAt: created,
		ExpiresAt: expires,
	}, nil
}

func (r *AccessTokenRepository) PutAccessToken(ctx context.Context, token domain.AccessToken) error {
	return r.store.putHash(ctx, r.store.key("token", token.DomainID), map[string]string{
		"domain_id":    token.DomainID,
		"access_token": token.Token,
		"created_at":   strconv.FormatInt(token.CreatedAt, 10),
		"expired_at":   strconv.FormatInt(token.ExpiresAt, 10),
	})
}

func (r *AccessTokenRepository) DeleteAccessToken(ctx context.Context, domainID string) error {
	return r.store.deleteKey(ctx, r.store.key("token", domainID))
}

// --- client credentials ---

// ClientCredentialRepository implements domain.ClientCredentialRepository.
type ClientCredentialRepository struct{ store *Store }

func (s *Store) ClientCredentials() *ClientCredentialRepository {
	return &ClientCredentialRepository{store: s}
}

func (r *ClientCredentialRepository) credKey(botID, domainID string) string {
	return r.store.key("cred", botID+":"+domainID)
}

func (r *ClientCredentialRepository) ClientCredential(ctx context.Context, botID, domainID string) (*domain.ClientCredential, error) {
	fields, err := r.store.getHash(ctx, r.credKey(botID, domainID))
	if err != nil || fields == nil {
		return nil, err
	}
	return &domain.ClientCredential{
		BotID:          fields["bot_id"],
		DomainID:       fields["domain_id"],
		ClientID:       fields["client_id"],
		ClientSecret:   fields["client_secret"],
		ServiceAccount: fields["service_account"],
		PrivateKey:     fields["private_key"],
	}, nil
}

func (r *ClientCredentialRepository) PutClientCredential(ctx context.Context, cred domain.ClientCredential) error {
	return r.store.putHash(ctx, r.credKey(cred.BotID, cred.DomainID), map[string]string{
		"bot_id":          cred.BotID,
		"domain_id":       cred.DomainID,
		"client_id":       cred.ClientID,
		"client_secret":   cred.ClientSecret,
		"service_account": cred.ServiceAccount,
		"private_key":     cred.PrivateKey,
	})
}

// --- installed apps ---

// InstalledAppRepository implements domain.InstalledAppRepository.
type InstalledAppRepository struct{ store *Store }

func (s *Store) InstalledApps() *InstalledAppRepository {
	return &InstalledAppRepository{store: s}
}

func (r *InstalledAppRepository) InstalledApp(ctx context.Context, domainID string) (*domain.InstalledApp, error) {
	fields, err := r.store.getHash(ctx, r.store.key("app", domainID))
	if err != nil || fields == nil {
		return nil, err
	}
	return &domain.InstalledApp{
		DomainID:       fields["domain_id"],
		ServiceAccount: fields["service_account"],
		Version:        fields["ver"],
	}, nil
}

func (r *InstalledAppRepository) PutInstalledApp(ctx context.Context, app domain.InstalledApp) error {
	return r.store.putHash(ctx, r.store.key("app", app.DomainID), map[string]string{
		"domain_id":       app.DomainID,
		"service_account": app.ServiceAccount,
		"ver":             app.Version,
	})
}

func (r *InstalledAppRepository) DeleteInstalledApp(ctx context.Context, domainID string) error {
	return r.store.deleteKey(ctx, r.store.key("app", domainID))
}

// --- bot info ---

// BotInfoRepository implements domain.BotInfoRepository.
type BotInfoRepository struct{ store *Store }

func (s *Store) BotInfos() *BotInfoRepository {
	return &BotInfoRepository{store: s}
}

func (r *BotInfoRepository) BotInfo(ctx context.Context, botID string) (*domain.BotInfo, error) {
	fields, err := r.store.getHash(ctx, r.store.key("bot", botID))
	if err != nil || fields == nil {
		return nil, err
	}
	return &domain.BotInfo{
		BotID:            fields["bot_id"],
		ProviderDomainID: fields["provider_domain_id"],
		Secret:           fields["bot_secret"],
	}, nil
}

func (r *BotInfoRepository) PutBotInfo(ctx context.Context, info domain.BotInfo) error {
	return r.store.putHash(ctx, r.store.key("bot", info.BotID), map[string]string{
		"bot_id":             info.BotID,
		"provider_domain_id": info.ProviderDomainID,
		"bot_secret":         info.Secret,
	})
}
