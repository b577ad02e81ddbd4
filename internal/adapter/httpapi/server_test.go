package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatwatch/wbgt-alert-service/internal/adapter/memstore"
	"github.com/heatwatch/wbgt-alert-service/internal/domain"
)

const testBotID = "bot-1"

type readyFunc func(ctx context.Context) error

func (f readyFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

type fakeGreeter struct {
	mu   sync.Mutex
	sent []greeting
	err  error
}

type greeting struct {
	DomainID string
	UserID   string
	Text     string
}

func (g *fakeGreeter) SendText(_ context.Context, domainID, userID, text string) error {
	if g.err != nil {
		return g.err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, greeting{DomainID: domainID, UserID: userID, Text: text})
	return nil
}

type fixture struct {
	server      *Server
	subscribers *memstore.SubscriberRepository
	apps        *memstore.InstalledAppRepository
	tokens      *memstore.AccessTokenRepository
	bots        *memstore.BotInfoRepository
	greeter     *fakeGreeter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	subscribers := memstore.NewSubscriberRepository()
	apps := memstore.NewInstalledAppRepository()
	tokens := memstore.NewAccessTokenRepository()
	bots := memstore.NewBotInfoRepository()
	greeter := &fakeGreeter{}

	require.NoError(t, bots.PutBotInfo(context.Background(), domain.BotInfo{
		BotID: testBotID, ProviderDomainID: "100", Secret: "secret",
	}))

	server := NewServer(":0", Deps{
		Subscribers: subscribers,
		Regions: memstore.NewRegionRepository([]domain.Region{
			{Key: "tokyo", Name: "Tokyo", Points: []string{"44132"}},
			{Key: "osaka", Name: "Osaka", Points: []string{"62078"}},
		}),
		Levels: memstore.NewAlertLevelRepository([]domain.AlertLevel{
			{Key: "caution", MinValue: 25, MaxValue: 27, Priority: 1},
			{Key: "warning", MinValue: 28, MaxValue: 30, Priority: 2},
		}),
		Apps:    apps,
		Bots:    bots,
		Tokens:  tokens,
		Greeter: greeter,
		BotID:   testBotID,
		Ready:   readyFunc(func(context.Context) error { return nil }),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return &fixture{
		server:      server,
		subscribers: subscribers,
		apps:        apps,
		tokens:      tokens,
		bots:        bots,
		greeter:     greeter,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodGet, "/readyz", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		f := newFixture(t)
		notReady := NewServer(":0", Deps{
			Ready:  readyFunc(func(context.Context) error { return errors.New("no messages yet") }),
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
		f.server = notReady
		rec := f.do(t, http.MethodGet, "/readyz", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestSettingsLifecycle(t *testing.T) {
	f := newFixture(t)

	// No setting yet.
	rec := f.do(t, http.MethodGet, "/settings/user-1", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Save one.
	rec = f.do(t, http.MethodPut, "/settings/user-1",
		`{"domain_id":"400","region_key":"tokyo","alert_level_key":"caution"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Read it back.
	rec = f.do(t, http.MethodGet, "/settings/user-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var setting domain.SubscriberSetting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &setting))
	assert.Equal(t, "user-1", setting.UserID)
	assert.Equal(t, "tokyo", setting.RegionKey)
	assert.Equal(t, "caution", setting.AlertLevelKey)

	// Update in place.
	rec = f.do(t, http.MethodPut, "/settings/user-1",
		`{"domain_id":"400","region_key":"osaka","alert_level_key":"warning"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/settings/user-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &setting))
	assert.Equal(t, "osaka", setting.RegionKey)

	// Delete is idempotent.
	rec = f.do(t, http.MethodDelete, "/settings/user-1", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/settings/user-1", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/settings/user-1", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutSetting_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "bad json", body: `{{{`, want: "invalid JSON body"},
		{name: "missing domain", body: `{"region_key":"tokyo","alert_level_key":"caution"}`, want: "domain_id is required"},
		{name: "unknown region", body: `{"domain_id":"400","region_key":"mars","alert_level_key":"caution"}`, want: "unknown region_key"},
		{name: "unknown level", body: `{"domain_id":"400","region_key":"tokyo","alert_level_key":"apocalypse"}`, want: "unknown alert_level_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPut, "/settings/user-1", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestListReferenceData(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/regions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var regions []domain.Region
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &regions))
	assert.Len(t, regions, 2)

	rec = f.do(t, http.MethodGet, "/alert-levels", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var levels []domain.AlertLevel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &levels))
	assert.Len(t, levels, 2)
}

func sign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestCallback(t *testing.T) {
	body := `{"type":"message","source":{"userId":"user-1","domainId":400}}`

	t.Run("valid event gets greeting", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/callback", body, map[string]string{
			"X-Works-Botid":     testBotID,
			"X-Works-Signature": sign(body, "secret"),
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, f.greeter.sent, 1)
		assert.Equal(t, "400", f.greeter.sent[0].DomainID)
		assert.Equal(t, "user-1", f.greeter.sent[0].UserID)
	})

	t.Run("string domain id", func(t *testing.T) {
		f := newFixture(t)
		strBody := `{"type":"message","source":{"userId":"user-1","domainId":"500"}}`
		rec := f.do(t, http.MethodPost, "/callback", strBody, map[string]string{
			"X-Works-Botid":     testBotID,
			"X-Works-Signature": sign(strBody, "secret"),
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, f.greeter.sent, 1)
		assert.Equal(t, "500", f.greeter.sent[0].DomainID)
	})

	t.Run("wrong bot id", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/callback", body, map[string]string{
			"X-Works-Botid":     "other-bot",
			"X-Works-Signature": sign(body, "secret"),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.greeter.sent)
	})

	t.Run("bad signature is dropped silently", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/callback", body, map[string]string{
			"X-Works-Botid":     testBotID,
			"X-Works-Signature": "bogus",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, f.greeter.sent)
	})

	t.Run("greeting failure is reported", func(t *testing.T) {
		f := newFixture(t)
		f.greeter.err = errors.New("send failed")
		rec := f.do(t, http.MethodPost, "/callback", body, map[string]string{
			"X-Works-Botid":     testBotID,
			"X-Works-Signature": sign(body, "secret"),
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestInstallUpdate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/install-update", "", map[string]string{
		"Works-Domain-Id":                  "400",
		"Works-Install-Service-Account-Id": "sa@example",
		"Ver":                              "3",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	app, err := f.apps.InstalledApp(context.Background(), "400")
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, "sa@example", app.ServiceAccount)
	assert.Equal(t, "3", app.Version)
}

func TestInstallUpdate_MissingDomain(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/install-update", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUninstall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.apps.PutInstalledApp(ctx, domain.InstalledApp{DomainID: "400", ServiceAccount: "sa@example"}))
	require.NoError(t, f.tokens.PutAccessToken(ctx, domain.AccessToken{DomainID: "400", Token: "tok"}))
	require.NoError(t, f.subscribers.PutSubscriber(ctx, domain.SubscriberSetting{
		UserID: "user-1", DomainID: "400", RegionKey: "tokyo", AlertLevelKey: "caution",
	}))
	require.NoError(t, f.subscribers.PutSubscriber(ctx, domain.SubscriberSetting{
		UserID: "user-2", DomainID: "500", RegionKey: "osaka", AlertLevelKey: "caution",
	}))

	rec := f.do(t, http.MethodPost, "/uninstall", "", map[string]string{
		"Works-Domain-Id": "400",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	app, err := f.apps.InstalledApp(ctx, "400")
	require.NoError(t, err)
	assert.Nil(t, app)

	token, err := f.tokens.AccessToken(ctx, "400")
	require.NoError(t, err)
	assert.Nil(t, token)

	gone, err := f.subscribers.Subscriber(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	// The other tenant's subscriber survives.
	kept, err := f.subscribers.Subscriber(ctx, "user-2")
	require.NoError(t, err)
	require.NotNil(t, kept)
}
