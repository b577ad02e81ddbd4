// Package lineworks talks to the LINE WORKS bot platform: service-account
// token exchange, message delivery with retry, and callback signature
// verification.
package lineworks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
)

const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// assertionTTL is how long the signed assertion is valid for. The platform
// rejects assertions older than an hour.
const assertionTTL = time.Hour

// AuthClient implements pipeline.TokenExchanger against the platform's
// OAuth endpoint using the service-account JWT flow.
type AuthClient struct {
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *slog.Logger
}

func NewAuthClient(baseURL string, timeout time.Duration, clock clockwork.Clock, logger *slog.Logger) *AuthClient {
	return &AuthClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		clock:  clock,
		logger: logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in,string"`
	Scope       string `json:"scope"`
}

// Exchange signs a JWT assertion with the tenant's private key and trades
// it for a bearer token. Returns the token and its lifetime in seconds.
func (c *AuthClient) Exchange(ctx context.Context, cred domain.ClientCredential, serviceAccount string) (string, int64, error) {
	assertion, err := c.signAssertion(cred, serviceAccount)
	if err != nil {
		return "", 0, err
	}

	form := url.Values{
		"assertion":     {assertion},
		"grant_type":    {jwtBearerGrant},
		"client_id":     {cred.ClientID},
		"client_secret": {cred.ClientSecret},
		"scope":         {"bot"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/v2.0/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", 0, fmt.Errorf("token endpoint error: status %d: %s", resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", 0, fmt.Errorf("token endpoint returned empty access token")
	}

	c.logger.Debug("token exchanged", "client_id", cred.ClientID, "expires_in", tr.ExpiresIn)
	return tr.AccessToken, tr.ExpiresIn, nil
}

func (c *AuthClient) signAssertion(cred domain.ClientCredential, serviceAccount string) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cred.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse private key for client %s: %w", cred.ClientID, err)
	}

	now := c.clock.Now()
	claims := jwt.MapClaims{
		"iss": cred.ClientID,
		"sub": serviceAccount,
		"iat": now.Unix(),
		"exp": now.Add(assertionTTL).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}
