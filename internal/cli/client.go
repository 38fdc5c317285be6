package cli

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/openclaw-gurusharan/ondc-seller/internal/auth"
	"github.com/openclaw-gurusharan/ondc-seller/internal/http/dto"
	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
	"github.com/openclaw-gurusharan/ondc-seller/internal/notary"
)

// Client talks to the escrow HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("escrow api unavailable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e dto.ErrorResponse
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) data(ctx context.Context, path string, out any) error {
	var env envelope
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return err
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) Challenge(ctx context.Context, wallet string) (*dto.ChallengeResponse, error) {
	var resp dto.ChallengeResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/challenge", dto.ChallengeRequest{WalletAddress: wallet}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Token exchanges req for a session token. A request without a signature only works
// against a server running in auth dev mode.
func (c *Client) Token(ctx context.Context, req dto.AuthWalletRequest) (*dto.AuthResponse, error) {
	var resp dto.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/wallet", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SignIn requests a challenge for key's address, signs it and returns the session token.
func (c *Client) SignIn(ctx context.Context, key *ecdsa.PrivateKey) (*dto.AuthResponse, error) {
	wallet := crypto.PubkeyToAddress(key.PublicKey).Hex()
	ch, err := c.Challenge(ctx, wallet)
	if err != nil {
		return nil, err
	}
	sig, err := auth.SignChallenge(key, ch.Message)
	if err != nil {
		return nil, fmt.Errorf("sign challenge: %w", err)
	}
	return c.Token(ctx, dto.AuthWalletRequest{
		WalletAddress: wallet,
		Nonce:         ch.Nonce,
		Timestamp:     ch.Timestamp,
		Signature:     sig,
	})
}

func (c *Client) Escrow(ctx context.Context, id string) (*models.EscrowAccount, error) {
	var acc models.EscrowAccount
	if err := c.data(ctx, "/api/v1/escrows/"+url.PathEscape(id), &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *Client) Escrows(ctx context.Context, wallet string) ([]models.EscrowAccount, error) {
	path := "/api/v1/escrows"
	if wallet != "" {
		path += "?wallet=" + url.QueryEscape(wallet)
	}
	var accounts []models.EscrowAccount
	if err := c.data(ctx, path, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *Client) Transactions(ctx context.Context, id string) ([]models.EscrowTransaction, error) {
	var txs []models.EscrowTransaction
	if err := c.data(ctx, "/api/v1/escrows/"+url.PathEscape(id)+"/transactions", &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (c *Client) AuditTrail(ctx context.Context, id string) ([]models.AuditTrailEntry, error) {
	var entries []models.AuditTrailEntry
	if err := c.data(ctx, "/api/v1/escrows/"+url.PathEscape(id)+"/audit", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) Verify(ctx context.Context, id string) (*dto.VerifyResponse, error) {
	var v dto.VerifyResponse
	if err := c.data(ctx, "/api/v1/escrows/"+url.PathEscape(id)+"/verify", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) Chain(ctx context.Context, id string) (*notary.ChainVerification, error) {
	var v notary.ChainVerification
	if err := c.data(ctx, "/api/v1/escrows/"+url.PathEscape(id)+"/chain", &v); err != nil {
		return nil, err
	}
	return &v, nil
}
