// Package authority implements the protocol client for the national tax
// authority: the seed/sign/token handshake, signed document upload, and
// submission status queries.
package authority

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dte/backend/internal/domain/credential"
	"github.com/dte/backend/internal/domain/dte"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	seedPath   = "/recursos/v1/semilla"
	tokenPath  = "/recursos/v1/token"
	submitPath = "/recursos/v1/envios"
	statusPath = "/recursos/v1/envios/%s/estado"
)

// Authority status codes. Anything not listed is treated as still pending.
const (
	stateAccepted = "ACEPTADO"
	stateRejected = "RECHAZADO"
)

type seedResponse struct {
	XMLName xml.Name `xml:"RESPUESTA"`
	Seed    string   `xml:"RESP_BODY>SEMILLA"`
}

type tokenRequest struct {
	XMLName   xml.Name `xml:"getToken"`
	Seed      string   `xml:"item>Semilla"`
	Signature string   `xml:"Signature"`
}

type tokenResponse struct {
	XMLName xml.Name `xml:"RESPUESTA"`
	Token   string   `xml:"RESP_BODY>TOKEN"`
}

type submitResponse struct {
	TrackID json.Number `json:"trackid"`
}

type statusResponse struct {
	State  string `json:"estado"`
	Detail string `json:"detalle"`
}

// Client talks to the tax authority over HTTPS. Session tokens are cached
// per tenant and reused until near expiry; transport-level failures retry
// inside the configured budget and come back as *dte.TransientError so the
// orchestrator can distinguish them from terminal rejections.
type Client struct {
	cfg    Config
	http   *retryablehttp.Client
	certs  credential.CertificateRepository
	tokens *gocache.Cache
	logger *zap.Logger
}

// NewClient creates an authority Client
func NewClient(cfg Config, certs credential.CertificateRepository, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = cfg.RetryMax
	httpClient.HTTPClient.Timeout = cfg.RequestTimeout
	httpClient.Logger = nil

	return &Client{
		cfg:    cfg,
		http:   httpClient,
		certs:  certs,
		tokens: gocache.New(cfg.TokenTTL, cfg.TokenTTL/2),
		logger: logger,
	}, nil
}

// GetToken returns a valid session token for the tenant. The handshake is
// three steps: fetch a seed, sign it with the tenant certificate, exchange
// the signed seed for a token.
func (c *Client) GetToken(ctx context.Context, tenantID uuid.UUID) (string, error) {
	if cached, ok := c.tokens.Get(tenantID.String()); ok {
		return cached.(string), nil
	}

	seed, err := c.fetchSeed(ctx)
	if err != nil {
		return "", err
	}

	signature, err := c.signSeed(ctx, tenantID, seed)
	if err != nil {
		return "", err
	}

	token, err := c.exchangeToken(ctx, seed, signature)
	if err != nil {
		return "", err
	}

	c.tokens.Set(tenantID.String(), token, gocache.DefaultExpiration)
	c.logger.Debug("authority token refreshed", zap.String("tenant_id", tenantID.String()))

	return token, nil
}

// Submit uploads a signed document and returns the tracking identifier
func (c *Client) Submit(ctx context.Context, tenantID uuid.UUID, doc dte.SignedDocument) (string, error) {
	token, err := c.GetToken(ctx, tenantID)
	if err != nil {
		return "", err
	}

	body, err := c.doRequest(ctx, http.MethodPost, submitPath, token, tenantID.String(), doc.Payload)
	if err != nil {
		return "", err
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("authority: malformed submit response: %w", err)
	}
	if resp.TrackID.String() == "" {
		return "", fmt.Errorf("authority: submit response carries no track ID")
	}
	return resp.TrackID.String(), nil
}

// CheckStatus queries the resolution of a prior submission
func (c *Client) CheckStatus(ctx context.Context, tenantID uuid.UUID, trackID string) (dte.SubmissionStatus, error) {
	token, err := c.GetToken(ctx, tenantID)
	if err != nil {
		return dte.SubmissionStatus{}, err
	}

	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf(statusPath, trackID), token, tenantID.String(), nil)
	if err != nil {
		return dte.SubmissionStatus{}, err
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return dte.SubmissionStatus{}, fmt.Errorf("authority: malformed status response: %w", err)
	}

	switch resp.State {
	case stateAccepted:
		return dte.SubmissionStatus{State: dte.SubmissionAccepted, Reason: resp.Detail}, nil
	case stateRejected:
		return dte.SubmissionStatus{State: dte.SubmissionRejected, Reason: resp.Detail}, nil
	default:
		return dte.SubmissionStatus{State: dte.SubmissionPending, Reason: resp.Detail}, nil
	}
}

// fetchSeed asks the authority for a fresh challenge seed
func (c *Client) fetchSeed(ctx context.Context) (string, error) {
	body, err := c.doRequest(ctx, http.MethodGet, seedPath, "", "", nil)
	if err != nil {
		return "", err
	}

	var resp seedResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("authority: malformed seed response: %w", err)
	}
	if resp.Seed == "" {
		return "", fmt.Errorf("authority: seed response carries no seed")
	}
	return resp.Seed, nil
}

// signSeed signs the challenge seed with the tenant's certificate
func (c *Client) signSeed(ctx context.Context, tenantID uuid.UUID, seed string) (string, error) {
	cert, err := c.certs.FindActiveForTenant(ctx, tenantID, time.Now())
	if err != nil {
		return "", fmt.Errorf("authority: no signing certificate for tenant: %w", err)
	}

	key, err := parsePrivateKey(cert.PrivateKeyPEM)
	if err != nil {
		return "", fmt.Errorf("authority: bad certificate key material: %w", err)
	}

	digest := sha1.Sum([]byte(seed))
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, digest[:])
	if err != nil {
		return "", fmt.Errorf("authority: signing seed failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

// exchangeToken trades a signed seed for a session token
func (c *Client) exchangeToken(ctx context.Context, seed, signature string) (string, error) {
	payload, err := xml.Marshal(tokenRequest{Seed: seed, Signature: signature})
	if err != nil {
		return "", fmt.Errorf("authority: marshaling token request: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost, tokenPath, "", "", payload)
	if err != nil {
		return "", err
	}

	var resp tokenResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("authority: malformed token response: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("authority: token response carries no token")
	}
	return resp.Token, nil
}

// doRequest performs one HTTP call against the authority. Connection errors
// and 5xx answers are transient; a 401 drops the calling tenant's cached
// token since that session died server-side. tokenKey is the cache key the
// token was stored under, empty for unauthenticated handshake calls.
func (c *Client) doRequest(ctx context.Context, method, path, token, tokenKey string, body []byte) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("authority: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")
	if token != "" {
		req.Header.Set("Cookie", "TOKEN="+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &dte.TransientError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &dte.TransientError{Op: method + " " + path, Err: err}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &dte.TransientError{Op: method + " " + path, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusUnauthorized:
		if tokenKey != "" {
			c.tokens.Delete(tokenKey)
		}
		return nil, fmt.Errorf("authority: session rejected (HTTP 401)")
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("authority: request failed with HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	return respBody, nil
}

// parsePrivateKey reads an RSA private key in PKCS1 or PKCS8 PEM form
func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return key, nil
}
