// Package horizon is the ledger gateway client. It issues account snapshot
// reads and transaction submissions against a Horizon-compatible HTTP API and
// normalizes gateway failures into domain error codes.
//
// The client performs no retries: retry policy lives with the caller, because
// only the caller knows whether a retry needs a fresh snapshot.
package horizon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/stellar-notepad/internal/platform/errors"
)

const (
	// DefaultBaseURL targets the public testnet gateway.
	DefaultBaseURL = "https://horizon-testnet.stellar.org"
	// defaultTimeout bounds a single gateway round trip.
	defaultTimeout = 30 * time.Second

	userAgent = "stellar-notepad/0.1"
)

// txBadSeq is the gateway result code for a sequence number that does not
// match the account's current expected value.
const txBadSeq = "tx_bad_seq"

// Snapshot is a point-in-time view of a ledger account. The sequence value is
// valid only for the instant it was fetched; building a transaction from a
// stale snapshot risks rejection.
type Snapshot struct {
	AccountID string
	Sequence  int64
	// Data maps entry name to the raw transport (base64) value.
	Data map[string]string
}

// SubmitResult reports a confirmed transaction submission.
type SubmitResult struct {
	Hash   string
	Ledger int64
}

// Client talks to a single Horizon-compatible gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient creates a gateway client for the given base URL. An empty base
// URL targets the public testnet gateway.
func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// accountResponse is the subset of the gateway account record this client reads.
type accountResponse struct {
	AccountID string            `json:"account_id"`
	Sequence  string            `json:"sequence"`
	Data      map[string]string `json:"data"`
}

// submitResponse is the subset of the gateway submission record this client reads.
type submitResponse struct {
	Hash   string `json:"hash"`
	Ledger int64  `json:"ledger"`
}

// problemResponse is the gateway's problem-details error body.
type problemResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Extras struct {
		ResultCodes struct {
			Transaction string   `json:"transaction"`
			Operations  []string `json:"operations"`
		} `json:"result_codes"`
	} `json:"extras"`
}

// FetchAccount loads the account snapshot for the given identity.
func (c *Client) FetchAccount(ctx context.Context, accountID string) (Snapshot, error) {
	endpoint := c.baseURL + "/accounts/" + url.PathEscape(accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("build account request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, errors.Wrap(errors.CodeGatewayUnavailable, "ledger gateway is unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Snapshot{}, errors.Wrap(errors.CodeGatewayUnavailable, "read gateway response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return Snapshot{}, errors.New(errors.CodeAccountNotFound, fmt.Sprintf("account %s does not exist on the ledger", accountID))
	default:
		// Fetching is a read. Any gateway status other than 404 means the
		// snapshot could not be served, not that the ledger rejected anything.
		return Snapshot{}, errors.New(errors.CodeGatewayUnavailable, gatewayReason(body, resp.StatusCode))
	}

	var account accountResponse
	if err := json.Unmarshal(body, &account); err != nil {
		return Snapshot{}, errors.Wrap(errors.CodeGatewayUnavailable, "decode account response", err)
	}
	sequence, err := strconv.ParseInt(account.Sequence, 10, 64)
	if err != nil {
		return Snapshot{}, errors.Wrap(errors.CodeGatewayUnavailable, fmt.Sprintf("account sequence %q is not an integer", account.Sequence), err)
	}

	data := account.Data
	if data == nil {
		data = map[string]string{}
	}
	return Snapshot{
		AccountID: accountID,
		Sequence:  sequence,
		Data:      data,
	}, nil
}

// Submit posts a signed transaction envelope (base64 wire form) to the
// gateway and reports the confirmation.
func (c *Client) Submit(ctx context.Context, envelopeBase64 string) (SubmitResult, error) {
	form := url.Values{}
	form.Set("tx", envelopeBase64)

	endpoint := c.baseURL + "/transactions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SubmitResult{}, errors.Wrap(errors.CodeGatewayUnavailable, "ledger gateway is unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return SubmitResult{}, errors.Wrap(errors.CodeGatewayUnavailable, "read gateway response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return SubmitResult{}, errors.New(errors.CodeGatewayUnavailable, fmt.Sprintf("ledger gateway returned status %d", resp.StatusCode))
	default:
		var problem problemResponse
		_ = json.Unmarshal(body, &problem)
		if problem.Extras.ResultCodes.Transaction == txBadSeq {
			return SubmitResult{}, errors.New(errors.CodeOrderingConflict, "transaction sequence does not match the account's current value")
		}
		return SubmitResult{}, errors.New(errors.CodeRejectedByLedger, gatewayReason(body, resp.StatusCode))
	}

	var submitted submitResponse
	if err := json.Unmarshal(body, &submitted); err != nil {
		return SubmitResult{}, errors.Wrap(errors.CodeGatewayUnavailable, "decode submit response", err)
	}
	if submitted.Hash == "" {
		return SubmitResult{}, errors.New(errors.CodeGatewayUnavailable, "submit response is missing the transaction hash")
	}
	return SubmitResult{Hash: submitted.Hash, Ledger: submitted.Ledger}, nil
}

// gatewayReason extracts a human-readable rejection reason from a problem body.
func gatewayReason(body []byte, statusCode int) string {
	var problem problemResponse
	if err := json.Unmarshal(body, &problem); err == nil {
		parts := make([]string, 0, 3)
		if problem.Title != "" {
			parts = append(parts, problem.Title)
		}
		if problem.Detail != "" {
			parts = append(parts, problem.Detail)
		}
		if code := problem.Extras.ResultCodes.Transaction; code != "" {
			parts = append(parts, "result_code="+code)
		}
		if len(problem.Extras.ResultCodes.Operations) > 0 {
			parts = append(parts, "operation_codes="+strings.Join(problem.Extras.ResultCodes.Operations, ","))
		}
		if len(parts) > 0 {
			return strings.Join(parts, ": ")
		}
	}
	return fmt.Sprintf("ledger gateway rejected the request with status %d", statusCode)
}
