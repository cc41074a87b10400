package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

const webpayTransactionsPath = "/rswebpaytransaction/api/webpay/v1.2/transactions"

// WebpayCreateRequest is the body of the Webpay Plus "create transaction" call.
type WebpayCreateRequest struct {
	BuyOrder  string          `json:"buy_order"`
	SessionID string          `json:"session_id"`
	Amount    decimal.Decimal `json:"amount"`
	ReturnURL string          `json:"return_url"`
}

// WebpayCreateResponse carries the token and the form URL the customer is redirected to.
type WebpayCreateResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// WebpayCommitResponse is the result of confirming a transaction.
// Status: "INITIALIZED" | "AUTHORIZED" | "REVERSED" | "FAILED" | "NULLIFIED" | ...
type WebpayCommitResponse struct {
	VCI               string          `json:"vci"`
	Amount            decimal.Decimal `json:"amount"`
	Status            string          `json:"status"`
	BuyOrder          string          `json:"buy_order"`
	SessionID         string          `json:"session_id"`
	AccountingDate    string          `json:"accounting_date"`
	TransactionDate   string          `json:"transaction_date"`
	AuthorizationCode string          `json:"authorization_code"`
	PaymentTypeCode   string          `json:"payment_type_code"`
	ResponseCode      *int            `json:"response_code"`
	CardDetail        *struct {
		CardNumber string `json:"card_number"`
	} `json:"card_detail,omitempty"`
}

// WebpayError is returned for transport failures, non-2xx answers and bodies
// that do not decode. Raw holds whatever the gateway sent back.
type WebpayError struct {
	StatusCode int
	Raw        []byte
	Err        error
}

func (e *WebpayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webpay: %v", e.Err)
	}
	return fmt.Sprintf("webpay: gateway returned %d", e.StatusCode)
}

func (e *WebpayError) Unwrap() error { return e.Err }

// WebpayClient talks to the Transbank Webpay Plus REST API.
type WebpayClient struct {
	baseURL      string
	commerceCode string
	apiKey       string
	httpClient   *http.Client
}

func NewWebpayClient(baseURL, commerceCode, apiKey string, timeout time.Duration) *WebpayClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebpayClient{
		baseURL:      baseURL,
		commerceCode: commerceCode,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Crear opens a transaction and returns the token + redirect URL.
func (c *WebpayClient) Crear(ctx context.Context, req WebpayCreateRequest) (*WebpayCreateResponse, []byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("webpay: marshal request: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPost, c.baseURL+webpayTransactionsPath, body)
	if err != nil {
		return nil, raw, err
	}
	var out WebpayCreateResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.Token == "" {
		if err == nil {
			err = fmt.Errorf("response without token")
		}
		return nil, raw, &WebpayError{StatusCode: http.StatusOK, Raw: raw, Err: err}
	}
	return &out, raw, nil
}

// Confirmar commits the transaction identified by token. The HTTP call is
// made once; callers decide whether to retry.
func (c *WebpayClient) Confirmar(ctx context.Context, token string) (*WebpayCommitResponse, []byte, error) {
	raw, err := c.do(ctx, http.MethodPut, c.baseURL+webpayTransactionsPath+"/"+url.PathEscape(token), nil)
	if err != nil {
		return nil, raw, err
	}
	var out WebpayCommitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, raw, &WebpayError{StatusCode: http.StatusOK, Raw: raw, Err: fmt.Errorf("decode commit: %w", err)}
	}
	return &out, raw, nil
}

func (c *WebpayClient) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return nil, fmt.Errorf("webpay: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Tbk-Api-Key-Id", c.commerceCode)
	req.Header.Set("Tbk-Api-Key-Secret", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &WebpayError{Err: fmt.Errorf("gateway unreachable: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &WebpayError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return raw, &WebpayError{StatusCode: resp.StatusCode, Raw: raw}
	}
	return raw, nil
}
