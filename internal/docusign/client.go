// Package docusign talks to the eSignature REST API with a JWT grant
// impersonating the integration user.
package docusign

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmehdipour/staffhooks/internal/config"
)

var ErrNotConfigured = errors.New("docusign: integration not configured")

const (
	jwtGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	scopes       = "signature impersonation"
	tokenSkew    = time.Minute
)

type Client struct {
	accountID      string
	integrationKey string
	userID         string
	authServer     string
	baseURL        string

	key  *rsa.PrivateKey
	http *http.Client
	now  func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// New reads the RSA key from cfg.PrivateKeyPath.
func New(cfg config.DocuSignConfig) (*Client, error) {
	if cfg.AccountID == "" || cfg.IntegrationKey == "" || cfg.UserID == "" {
		return nil, ErrNotConfigured
	}
	pem, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("docusign: read private key: %w", err)
	}
	return NewWithKey(cfg, pem)
}

func NewWithKey(cfg config.DocuSignConfig, keyPEM []byte) (*Client, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("docusign: parse private key: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Client{
		accountID:      cfg.AccountID,
		integrationKey: cfg.IntegrationKey,
		userID:         cfg.UserID,
		authServer:     strings.TrimRight(cfg.AuthServer, "/"),
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		key:            key,
		http:           &http.Client{Timeout: timeout},
		now:            time.Now,
	}, nil
}

// CombinedDocument downloads every document of the envelope as one PDF.
func (c *Client) CombinedDocument(ctx context.Context, envelopeID string) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v2.1/accounts/%s/envelopes/%s/documents/combined",
		c.baseURL, url.PathEscape(c.accountID), url.PathEscape(envelopeID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/pdf")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docusign: combined document: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized {
		c.invalidate()
	}
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("docusign: combined document envelope=%s status=%d body=%s", envelopeID, res.StatusCode, b)
	}

	return io.ReadAll(res.Body)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiry) {
		return c.token, nil
	}

	assertion, err := c.assertion()
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", jwtGrantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authServer+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("docusign: token: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", fmt.Errorf("docusign: token status=%d body=%s", res.StatusCode, b)
	}

	var tr tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("docusign: decode token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("docusign: empty access token")
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= tokenSkew {
		ttl = 2 * tokenSkew
	}
	c.token = tr.AccessToken
	c.expiry = c.now().Add(ttl - tokenSkew)

	return c.token, nil
}

func (c *Client) assertion() (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"iss":   c.integrationKey,
		"sub":   c.userID,
		"aud":   audience(c.authServer),
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"scope": scopes,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("docusign: sign assertion: %w", err)
	}
	return signed, nil
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// audience is the auth server host without scheme, e.g. account-d.docusign.com.
func audience(authServer string) string {
	if u, err := url.Parse(authServer); err == nil && u.Host != "" {
		return u.Host
	}
	return authServer
}
