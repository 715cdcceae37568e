package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/berith-pool/poold/logging"
	"github.com/berith-pool/poold/pool"
	"github.com/berith-pool/poold/poolerr"
)

// JSONRPCClient is the production Client implementation: a JSON-RPC 2.0
// client over HTTP for account reads and transaction submission, plus a
// long-lived subscription goroutine feeding the rewards channel
// (SPEC_FULL.md §6 Chain RPC).
type JSONRPCClient struct {
	url        string
	httpClient *http.Client
	log        *logging.Logger

	poolAuthority pool.Pubkey
	busAddrs      []pool.Pubkey

	rewardsCh chan pool.RewardsEvent
	idSeq     uint64
}

// NewJSONRPCClient constructs a client bound to the given RPC endpoint. The
// caller supplies the pool authority and the fixed set of bus addresses
// fetched each round (SPEC_FULL.md §4.5); both are static per deployment.
func NewJSONRPCClient(url string, poolAuthority pool.Pubkey, busAddrs []pool.Pubkey, log *logging.Logger) *JSONRPCClient {
	return &JSONRPCClient{
		url:           url,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		log:           log,
		poolAuthority: poolAuthority,
		busAddrs:      busAddrs,
		rewardsCh:     make(chan pool.RewardsEvent, 8),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *JSONRPCClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	id := atomic.AddUint64(&c.idSeq, 1)
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return poolerr.Internal("marshal rpc request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return poolerr.TransientChain("build rpc request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return poolerr.TransientChain("rpc transport failure", err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return poolerr.TransientChain("decode rpc response", err)
	}
	if rpcResp.Error != nil {
		return poolerr.TransientChain(fmt.Sprintf("rpc error %d", rpcResp.Error.Code), fmt.Errorf("%s", rpcResp.Error.Message))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return poolerr.TransientChain("unmarshal rpc result", err)
	}
	return nil
}

type accountEnvelope struct {
	Data      []string `json:"data"`
	Lamports  uint64   `json:"lamports"`
	Exists    bool     `json:"exists"`
}

// GetPool fetches the pool account (SPEC_FULL.md §4.3, §6).
func (c *JSONRPCClient) GetPool(ctx context.Context) (PoolAccount, error) {
	var env accountEnvelope
	addr := pool.PoolPDA(c.poolAuthority)
	if err := c.call(ctx, "getAccountInfo", []interface{}{addr.String()}, &env); err != nil {
		return PoolAccount{}, err
	}
	dec, err := decodeAccountData(env)
	if err != nil {
		return PoolAccount{}, poolerr.TransientChain("decode pool account", err)
	}
	var out PoolAccount
	if err := json.Unmarshal(dec, &out); err != nil {
		return PoolAccount{}, poolerr.TransientChain("unmarshal pool account", err)
	}
	return out, nil
}

// GetProof fetches the proof account (SPEC_FULL.md §4.7).
func (c *JSONRPCClient) GetProof(ctx context.Context) (ProofAccount, error) {
	var env accountEnvelope
	addr := pool.PoolPDA(c.poolAuthority)
	if err := c.call(ctx, "getAccountInfo", []interface{}{addr.String(), "proof"}, &env); err != nil {
		return ProofAccount{}, err
	}
	dec, err := decodeAccountData(env)
	if err != nil {
		return ProofAccount{}, poolerr.TransientChain("decode proof account", err)
	}
	var out ProofAccount
	if err := json.Unmarshal(dec, &out); err != nil {
		return ProofAccount{}, poolerr.TransientChain("unmarshal proof account", err)
	}
	return out, nil
}

// GetBusBalances fetches every bus account's balance in one round trip
// (SPEC_FULL.md §4.5).
func (c *JSONRPCClient) GetBusBalances(ctx context.Context) ([]BusAccount, error) {
	addrs := make([]interface{}, len(c.busAddrs))
	for i, a := range c.busAddrs {
		addrs[i] = a.String()
	}
	var envs []accountEnvelope
	if err := c.call(ctx, "getMultipleAccounts", []interface{}{addrs}, &envs); err != nil {
		return nil, err
	}
	out := make([]BusAccount, len(c.busAddrs))
	for i, env := range envs {
		out[i].Address = c.busAddrs[i]
		if !env.Exists {
			continue
		}
		dec, err := decodeAccountData(env)
		if err != nil {
			c.log.Warn("unreadable bus account", "bus", c.busAddrs[i].String(), "err", err)
			continue
		}
		var bus struct {
			Rewards uint64 `json:"rewards"`
		}
		if err := json.Unmarshal(dec, &bus); err != nil {
			c.log.Warn("unparseable bus account", "bus", c.busAddrs[i].String(), "err", err)
			continue
		}
		out[i].Rewards = bus.Rewards
		out[i].Readable = true
	}
	return out, nil
}

// GetStakers fetches the staker balances for one boost mint.
func (c *JSONRPCClient) GetStakers(ctx context.Context, mint pool.Pubkey) (pool.StakerBalances, error) {
	var raw map[string]uint64
	if err := c.call(ctx, "getProgramAccounts", []interface{}{mint.String(), "stakers"}, &raw); err != nil {
		return nil, err
	}
	out := make(pool.StakerBalances, len(raw))
	for addr, bal := range raw {
		pk, err := pool.ParsePubkey(addr)
		if err != nil {
			continue
		}
		out[pk] = bal
	}
	return out, nil
}

// Submit dispatches a signed instruction bundle and awaits confirmation
// (SPEC_FULL.md §4.4).
func (c *JSONRPCClient) Submit(ctx context.Context, ixs []Instruction, cuLimit, cuPriceMicroLamports uint64) (string, error) {
	encoded := make([]string, len(ixs))
	for i, ix := range ixs {
		encoded[i] = ix.Tag + ":" + base64.StdEncoding.EncodeToString(ix.Data)
	}
	var sig string
	params := []interface{}{encoded, cuLimit, cuPriceMicroLamports}
	if err := c.call(ctx, "sendAndConfirmTransaction", params, &sig); err != nil {
		return "", err
	}
	return sig, nil
}

// AttributeMembers invokes the on-chain batch attribution call
// (SPEC_FULL.md §4.8).
func (c *JSONRPCClient) AttributeMembers(ctx context.Context) error {
	return c.call(ctx, "attributeMembers", []interface{}{c.poolAuthority.String()}, nil)
}

// Rewards returns the consumer side of the rewards subscription channel.
func (c *JSONRPCClient) Rewards() <-chan pool.RewardsEvent {
	return c.rewardsCh
}

// RunRewardsSubscription polls the chain for new settlement events and
// forwards them to the rewards channel until ctx is cancelled. It is run as
// the single long-lived reward-event-listener goroutine (SPEC_FULL.md §5).
func (c *JSONRPCClient) RunRewardsSubscription(ctx context.Context, pollInterval time.Duration) {
	defer close(c.rewardsCh)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var ev *pool.RewardsEvent
			if err := c.call(ctx, "pollRewardsEvent", []interface{}{c.poolAuthority.String()}, &ev); err != nil {
				c.log.Warn("rewards poll failed", "err", err)
				continue
			}
			if ev != nil {
				c.rewardsCh <- *ev
			}
		}
	}
}

func decodeAccountData(env accountEnvelope) ([]byte, error) {
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("empty account data")
	}
	return base64.StdEncoding.DecodeString(env.Data[0])
}
