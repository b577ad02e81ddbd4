package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
	"github.com/heatwatch/wbgt-alert-service/internal/observability"
)

// TokenExchanger trades tenant credentials for a bearer token.
type TokenExchanger interface {
	Exchange(ctx context.Context, cred domain.ClientCredential, serviceAccount string) (token string, expiresIn int64, err error)
}

// MessageSender pushes one message to a chat user.
type MessageSender interface {
	SendMessageToUser(ctx context.Context, token, botID, userID string, content json.RawMessage) error
}

// Deliverer consumes notification payloads and sends them to subscribers,
// refreshing tenant access tokens as needed. Tokens are cached in process
// and in the shared token repository; concurrent refreshes for the same
// tenant are harmless since the tokens are interchangeable.
type Deliverer struct {
	tokens  domain.AccessTokenRepository
	creds   domain.ClientCredentialRepository
	apps    domain.InstalledAppRepository
	bots    domain.BotInfoRepository
	auth    TokenExchanger
	sender  MessageSender
	botID   string
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu    sync.Mutex
	cache map[string]domain.AccessToken // domain ID -> token
}

func NewDeliverer(
	tokens domain.AccessTokenRepository,
	creds domain.ClientCredentialRepository,
	apps domain.InstalledAppRepository,
	bots domain.BotInfoRepository,
	auth TokenExchanger,
	sender MessageSender,
	botID string,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Deliverer {
	return &Deliverer{
		tokens:  tokens,
		creds:   creds,
		apps:    apps,
		bots:    bots,
		auth:    auth,
		sender:  sender,
		botID:   botID,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		cache:   make(map[string]domain.AccessToken),
	}
}

// HandleMessage delivers one notification. Missing tenant configuration is
// terminal; send failures bubble up for redelivery.
func (d *Deliverer) HandleMessage(ctx context.Context, raw domain.RawMessage) error {
	var payload domain.NotificationPayload
	if err := json.Unmarshal(raw.Value, &payload); err != nil {
		return fmt.Errorf("decode notification: %v: %w", err, domain.ErrMalformedMessage)
	}
	if payload.Subscriber.UserID == "" || payload.Subscriber.DomainID == "" {
		return fmt.Errorf("notification without subscriber identity: %w", domain.ErrMalformedMessage)
	}

	token, err := d.accessToken(ctx, payload.Subscriber.DomainID)
	if err != nil {
		return err
	}

	content, err := RenderMessage(payload)
	if err != nil {
		return fmt.Errorf("render notification for %s: %w", payload.Subscriber.UserID, err)
	}

	if err := d.sender.SendMessageToUser(ctx, token, d.botID, payload.Subscriber.UserID, content); err != nil {
		d.metrics.NotificationsFailed.Inc()
		return fmt.Errorf("send to %s: %w", payload.Subscriber.UserID, err)
	}

	d.metrics.NotificationsSent.Inc()
	d.logger.Info("notification delivered",
		"user_id", payload.Subscriber.UserID,
		"domain_id", payload.Subscriber.DomainID,
		"region", payload.Region.Key,
		"alert_level", payload.AlertLevel.Key,
	)
	return nil
}

// SendText pushes a plain text message to one user through the same token
// path the notification flow uses. The webhook handlers use it for
// greeting replies.
func (d *Deliverer) SendText(ctx context.Context, domainID, userID, text string) error {
	token, err := d.accessToken(ctx, domainID)
	if err != nil {
		return err
	}

	content, err := json.Marshal(map[string]any{
		"content": map[string]string{"type": "text", "text": text},
	})
	if err != nil {
		return fmt.Errorf("render text message: %w", err)
	}
	return d.sender.SendMessageToUser(ctx, token, d.botID, userID, content)
}

// accessToken returns a live bearer token for the tenant, checking the
// in-process cache, then the shared repository, then refreshing.
func (d *Deliverer) accessToken(ctx context.Context, domainID string) (string, error) {
	now := d.clock.Now().Unix()

	d.mu.Lock()
	cached, ok := d.cache[domainID]
	d.mu.Unlock()
	if ok && !cached.Expired(now) {
		return cached.Token, nil
	}

	stored, err := d.tokens.AccessToken(ctx, domainID)
	if err != nil {
		return "", fmt.Errorf("load access token for domain %s: %w", domainID, err)
	}
	if stored != nil && !stored.Expired(now) {
		d.remember(*stored)
		return stored.Token, nil
	}

	refreshed, err := d.refresh(ctx, domainID)
	if err != nil {
		return "", err
	}
	d.remember(refreshed)
	return refreshed.Token, nil
}

func (d *Deliverer) remember(token domain.AccessToken) {
	d.mu.Lock()
	d.cache[token.DomainID] = token
	d.mu.Unlock()
}

// refresh performs the token exchange and persists the result for other
// workers.
func (d *Deliverer) refresh(ctx context.Context, domainID string) (domain.AccessToken, error) {
	bot, err := d.bots.BotInfo(ctx, d.botID)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("load bot info: %w", err)
	}
	if bot == nil {
		return domain.AccessToken{}, fmt.Errorf("bot %s not registered: %w", d.botID, domain.ErrNotConfigured)
	}

	cred, err := d.creds.ClientCredential(ctx, d.botID, domainID)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("load credentials for domain %s: %w", domainID, err)
	}
	if cred == nil {
		return domain.AccessToken{}, fmt.Errorf("no client credentials for bot %s domain %s: %w", d.botID, domainID, domain.ErrNotConfigured)
	}

	app, err := d.apps.InstalledApp(ctx, domainID)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("load installed app for domain %s: %w", domainID, err)
	}
	if app == nil {
		return domain.AccessToken{}, fmt.Errorf("bot not installed in domain %s: %w", domainID, domain.ErrNotConfigured)
	}

	serviceAccount := cred.ServiceAccount
	if app.ServiceAccount != "" {
		serviceAccount = app.ServiceAccount
	}

	tokenValue, expiresIn, err := d.auth.Exchange(ctx, *cred, serviceAccount)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("token exchange for domain %s: %w", domainID, err)
	}

	now := d.clock.Now().Unix()
	token := domain.AccessToken{
		DomainID:  domainID,
		Token:     tokenValue,
		CreatedAt: now,
		ExpiresAt: now + expiresIn,
	}
	if err := d.tokens.PutAccessToken(ctx, token); err != nil {
		return domain.AccessToken{}, fmt.Errorf("store access token for domain %s: %w", domainID, err)
	}

	d.metrics.TokenRefreshes.Inc()
	d.logger.Info("access token refreshed", "domain_id", domainID, "expires_at", token.ExpiresAt)
	return token, nil
}
