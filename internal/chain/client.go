package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/pointchain/internal/domain"
	"github.com/shopspring/decimal"
)

var chainCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pointchain_chain_calls_total",
	Help: "Chain gateway calls, labeled by method and outcome",
}, []string{"method", "outcome"})

// Options configure the gateway client.
type Options struct {
	GatewayURL  string
	APIKey      string
	CallTimeout time.Duration
	Enabled     bool
}

// Client speaks JSON-RPC over HTTP to an Ethereum-compatible gateway that
// fronts the loyalty and campaign contracts. With Enabled=false every chain
// call returns ErrDisabled and no network traffic occurs; wallet operations
// are local and keep working.
type Client struct {
	url     string
	apiKey  string
	enabled bool
	timeout time.Duration
	http    *http.Client
}

func NewClient(opts Options) *Client {
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:     opts.GatewayURL,
		apiKey:  opts.APIKey,
		enabled: opts.Enabled,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

// Close releases idle gateway connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcReceipt struct {
	TxHash          string `json:"txHash"`
	BlockNumber     int64  `json:"blockNumber"`
	ContractAddress string `json:"contractAddress"`
	Logs            []struct {
		Index int    `json:"index"`
		Ref   string `json:"ref"`
	} `json:"logs"`
}

type rpcResponse struct {
	Result *rpcReceipt `json:"result"`
	Error  *rpcError   `json:"error"`
}

// call performs one JSON-RPC round trip. Every transport, HTTP and
// contract-level failure collapses into ErrUnavailable so callers have a
// single retryable error to match on.
func (c *Client) call(ctx context.Context, method string, params ...any) (*domain.Receipt, error) {
	if !c.enabled {
		chainCallsTotal.WithLabelValues(method, "disabled").Inc()
		return nil, ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", ErrUnavailable, method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		chainCallsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		chainCallsTotal.WithLabelValues(method, "error").Inc()
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s: http %d", ErrUnavailable, method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		chainCallsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%w: %s: decode: %v", ErrUnavailable, method, err)
	}
	if rpcResp.Error != nil {
		chainCallsTotal.WithLabelValues(method, "reverted").Inc()
		return nil, fmt.Errorf("%w: %s: rpc %d: %s", ErrUnavailable, method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.Result == nil {
		chainCallsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%w: %s: empty result", ErrUnavailable, method)
	}

	chainCallsTotal.WithLabelValues(method, "ok").Inc()
	receipt := &domain.Receipt{
		TxHash:          rpcResp.Result.TxHash,
		BlockNumber:     rpcResp.Result.BlockNumber,
		ContractAddress: rpcResp.Result.ContractAddress,
	}
	for _, l := range rpcResp.Result.Logs {
		receipt.Logs = append(receipt.Logs, domain.ReceiptLog{Index: l.Index, Ref: l.Ref})
	}
	return receipt, nil
}

func (c *Client) RegisterMemberAccount(ctx context.Context, account string) (*domain.Receipt, error) {
	return c.call(ctx, "loyalty_registerMember", account)
}

func (c *Client) RegisterPartnerAccount(ctx context.Context, account string) (*domain.Receipt, error) {
	return c.call(ctx, "loyalty_registerPartner", account)
}

func (c *Client) EarnPoints(ctx context.Context, points int64, member, partner string) (*domain.Receipt, error) {
	return c.call(ctx, "loyalty_earnPoints", points, member, partner)
}

func (c *Client) RedeemPoints(ctx context.Context, points int64, member, partner string) (*domain.Receipt, error) {
	return c.call(ctx, "loyalty_redeemPoints", points, member, partner)
}

func (c *Client) RegisterCampaign(ctx context.Context, partner string, terms CampaignTerms) (*domain.Receipt, error) {
	return c.call(ctx, "microcredit_registerCampaign", partner, map[string]any{
		"quantitative": terms.Quantitative,
		"minAllowed":   terms.MinAllowed.String(),
		"maxAllowed":   terms.MaxAllowed.String(),
		"maxAmount":    terms.MaxAmount.String(),
		"stepAmount":   terms.StepAmount.String(),
		"startsAt":     terms.StartsAt.Unix(),
		"expiresAt":    terms.ExpiresAt.Unix(),
		"redeemStarts": terms.RedeemStarts.Unix(),
		"redeemEnds":   terms.RedeemEnds.Unix(),
	})
}

func (c *Client) PromiseFund(ctx context.Context, campaign, member string, amount decimal.Decimal) (*domain.Receipt, error) {
	return c.call(ctx, "microcredit_promiseFund", campaign, member, amount.String())
}

func (c *Client) ReceiveFund(ctx context.Context, campaign string, contractIndex int) (*domain.Receipt, error) {
	return c.call(ctx, "microcredit_receiveFund", campaign, contractIndex)
}

func (c *Client) RevertFund(ctx context.Context, campaign string, contractIndex int) (*domain.Receipt, error) {
	return c.call(ctx, "microcredit_revertFund", campaign, contractIndex)
}

func (c *Client) SpendFund(ctx context.Context, campaign, member string, tokens int64) (*domain.Receipt, error) {
	return c.call(ctx, "microcredit_spendFund", campaign, member, tokens)
}
