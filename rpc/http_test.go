package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"stakehub/crypto"
	"stakehub/native/pool"
	"stakehub/native/token"
	"stakehub/storage/pooldb"
)

const testAuthToken = "test-secret"

func testAddr(fill byte) crypto.Address {
	b := make([]byte, 20)
	for i := range b {
		b[i] = fill
	}
	return crypto.MustNewAddress(crypto.AccountPrefix, b)
}

func testToken(fill byte) crypto.Address {
	b := make([]byte, 20)
	for i := range b {
		b[i] = fill
	}
	return crypto.MustNewAddress(crypto.TokenPrefix, b)
}

type rpcEnv struct {
	ts    *httptest.Server
	now   *uint64
	owner crypto.Address
	user  crypto.Address
	asset crypto.Address
	claim crypto.Address
}

func newRPCEnv(t *testing.T) *rpcEnv {
	t.Helper()
	t.Setenv("STAKEHUB_RPC_TOKEN", testAuthToken)

	owner := testAddr(0x01)
	contract := testAddr(0x02)
	now := uint64(1_000)

	engine := pool.NewEngine(owner, contract)
	engine.SetState(pooldb.NewMemoryState())
	engine.SetLedger(token.NewMemoryLedger(contract))
	engine.SetNowFunc(func() uint64 { return now })

	server := NewServer(engine)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &rpcEnv{
		ts:    ts,
		now:   &now,
		owner: owner,
		user:  testAddr(0x03),
		asset: testToken(0x0a),
		claim: testToken(0x0b),
	}
}

type rpcReply struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (env *rpcEnv) call(t *testing.T, authToken, method string, params ...interface{}) (int, rpcReply) {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
		"params":  params,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	httpReq, err := http.NewRequest(http.MethodPost, env.ts.URL, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+authToken)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var reply rpcReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, reply
}

func (env *rpcEnv) createPool(t *testing.T) uint64 {
	t.Helper()
	status, reply := env.call(t, testAuthToken, "pool_create", map[string]interface{}{
		"caller": env.owner.String(),
		"pool": map[string]interface{}{
			"name":            "locked-yield",
			"type":            "staking",
			"apy":             "50",
			"quarterlyPayout": false,
			"token":           env.asset.String(),
			"collateralToken": env.claim.String(),
			"depositLimiters": map[string]interface{}{
				"duration":       31_536_000_000,
				"startTime":      1_000,
				"endTime":        2_000,
				"limitPerUser":   "1000000000",
				"capacity":       "10000000000",
				"maxUtilisation": "100",
			},
		},
	})
	if status != http.StatusOK || reply.Error != nil {
		t.Fatalf("pool_create status=%d err=%+v", status, reply.Error)
	}
	var pid uint64
	if err := json.Unmarshal(reply.Result, &pid); err != nil {
		t.Fatalf("decode pid: %v", err)
	}
	return pid
}

func TestAdminMethodsRequireAuth(t *testing.T) {
	env := newRPCEnv(t)

	status, reply := env.call(t, "", "pool_create", map[string]interface{}{})
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
	if reply.Error == nil || reply.Error.Code != codeUnauthorized {
		t.Fatalf("error = %+v, want code %d", reply.Error, codeUnauthorized)
	}

	status, reply = env.call(t, "wrong-token", "pool_setPaused", map[string]interface{}{})
	if status != http.StatusUnauthorized || reply.Error == nil {
		t.Fatalf("status = %d err = %+v, want 401", status, reply.Error)
	}
}

func TestPoolCreateAndInfo(t *testing.T) {
	env := newRPCEnv(t)
	pid := env.createPool(t)
	if pid != 0 {
		t.Fatalf("pid = %d, want 0", pid)
	}

	status, reply := env.call(t, "", "pool_totalPools")
	if status != http.StatusOK || reply.Error != nil {
		t.Fatalf("pool_totalPools status=%d err=%+v", status, reply.Error)
	}
	var total uint64
	if err := json.Unmarshal(reply.Result, &total); err != nil {
		t.Fatalf("decode total: %v", err)
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}

	status, reply = env.call(t, "", "pool_info", map[string]interface{}{"poolId": pid})
	if status != http.StatusOK || reply.Error != nil {
		t.Fatalf("pool_info status=%d err=%+v", status, reply.Error)
	}
	var info struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(reply.Result, &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.Name != "locked-yield" || info.Type != "staking" {
		t.Fatalf("info = %+v", info)
	}
}

func TestPoolStakeAndPositions(t *testing.T) {
	env := newRPCEnv(t)
	pid := env.createPool(t)
	*env.now = 1_500

	status, reply := env.call(t, "", "pool_onTransfer", map[string]interface{}{
		"sender": env.user.String(),
		"token":  env.asset.String(),
		"amount": "1000000",
		"msg":    fmt.Sprintf("staking:%d", pid),
	})
	if status != http.StatusOK || reply.Error != nil {
		t.Fatalf("pool_onTransfer status=%d err=%+v", status, reply.Error)
	}
	var result poolOnTransferResult
	if err := json.Unmarshal(reply.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Code != pool.ResultStaked {
		t.Fatalf("code = %d, want %d", result.Code, pool.ResultStaked)
	}

	status, reply = env.call(t, "", "pool_positionCount", map[string]interface{}{
		"poolId":  pid,
		"account": env.user.String(),
	})
	if status != http.StatusOK || reply.Error != nil {
		t.Fatalf("pool_positionCount status=%d err=%+v", status, reply.Error)
	}
	var count int
	if err := json.Unmarshal(reply.Result, &count); err != nil {
		t.Fatalf("decode count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	status, reply = env.call(t, "", "pool_positions", map[string]interface{}{
		"poolId":  pid,
		"account": env.user.String(),
		"from":    0,
		"to":      1,
	})
	if status != http.StatusOK || reply.Error != nil {
		t.Fatalf("pool_positions status=%d err=%+v", status, reply.Error)
	}
	var positions []struct {
		Kind   string `json:"kind"`
		Amount int64  `json:"amount"`
	}
	if err := json.Unmarshal(reply.Result, &positions); err != nil {
		t.Fatalf("decode positions: %v", err)
	}
	if len(positions) != 1 || positions[0].Kind != "staking" || positions[0].Amount != 1_000_000 {
		t.Fatalf("positions = %+v", positions)
	}
}

func TestEngineRejectionsMapToInvalidParams(t *testing.T) {
	env := newRPCEnv(t)
	pid := env.createPool(t)

	// Deposit before the window opens.
	*env.now = 500
	status, reply := env.call(t, "", "pool_onTransfer", map[string]interface{}{
		"sender": env.user.String(),
		"token":  env.asset.String(),
		"amount": "100",
		"msg":    fmt.Sprintf("staking:%d", pid),
	})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if reply.Error == nil || reply.Error.Code != codeInvalidParams {
		t.Fatalf("error = %+v, want code %d", reply.Error, codeInvalidParams)
	}

	// Malformed router command.
	*env.now = 1_500
	status, reply = env.call(t, "", "pool_onTransfer", map[string]interface{}{
		"sender": env.user.String(),
		"token":  env.asset.String(),
		"amount": "100",
		"msg":    "gibberish",
	})
	if status != http.StatusBadRequest || reply.Error == nil || reply.Error.Code != codeInvalidParams {
		t.Fatalf("status = %d error = %+v", status, reply.Error)
	}
}

func TestUnknownMethod(t *testing.T) {
	env := newRPCEnv(t)
	status, reply := env.call(t, "", "pool_unknown")
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if reply.Error == nil || reply.Error.Code != codeMethodNotFound {
		t.Fatalf("error = %+v, want code %d", reply.Error, codeMethodNotFound)
	}
}

func TestMalformedRequestBodies(t *testing.T) {
	env := newRPCEnv(t)

	resp, err := http.Post(env.ts.URL, "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Post(env.ts.URL, "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
