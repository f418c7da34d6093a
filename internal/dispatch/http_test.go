package dispatch

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/oracle/stub"
	"pooled-vault/internal/storage/memory"
	"pooled-vault/internal/vault"
)

type httpFixture struct {
	server *httptest.Server
	hub    *EventHub
	orc    *stub.Oracle

	owner      domain.Address
	underlying domain.Address
	alice      domain.Address
}

func setupHTTPServer(t *testing.T) *httpFixture {
	t.Helper()

	f := &httpFixture{
		orc:        stub.NewOracle(),
		owner:      testAddr(t, 0x01),
		underlying: testAddr(t, 0x02),
		alice:      testAddr(t, 0x03),
	}

	engine := vault.New(memory.NewLedgerStore(), memory.NewConfigStore(), f.orc)
	f.hub = NewEventHub(nil, nil)
	dispatcher := NewDispatcher(engine, memory.NewOperationStore(), f.hub, nil)

	mux := http.NewServeMux()
	dispatcher.RegisterRoutes(mux)
	mux.HandleFunc("/ws", f.hub.HandleWS)

	f.server = httptest.NewServer(mux)
	t.Cleanup(func() {
		f.server.Close()
		f.hub.Close()
	})
	return f
}

// postJSON marshals body and POSTs it, returning the raw response.
func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

// decodeJSON decodes the response body into out and closes it.
func decodeJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// instantiateHTTP creates the vault through the API.
func (f *httpFixture) instantiateHTTP(t *testing.T) *domain.VaultConfig {
	t.Helper()
	resp := postJSON(t, f.server.URL+"/v1/instantiate", InstantiateRequest{
		Owner:           f.owner,
		UnderlyingToken: f.underlying,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out InstantiateResponse
	decodeJSON(t, resp, &out)
	return out.Config
}

func TestHTTPVaultLifecycle(t *testing.T) {
	f := setupHTTPServer(t)

	cfg := f.instantiateHTTP(t)
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.VaultAddress.Validate())

	// Deposit
	resp := postJSON(t, f.server.URL+"/v1/deposit", DepositRequest{
		Depositor: f.alice,
		Amount:    math.NewInt(100),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dep DepositResponse
	decodeJSON(t, resp, &dep)
	assert.Equal(t, math.NewInt(100), dep.SharesMinted)
	assert.Equal(t, cfg.VaultAddress, dep.VaultAddress)
	require.Len(t, dep.Instructions, 1)
	assert.Equal(t, domain.KindTransferFrom, dep.Instructions[0].Kind)

	// Supply query
	getResp, err := http.Get(f.server.URL + "/v1/supply")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var supply TotalSupplyResponse
	decodeJSON(t, getResp, &supply)
	assert.Equal(t, math.NewInt(100), supply.TotalSupply)

	// Balance query
	getResp, err = http.Get(f.server.URL + "/v1/balance?holder=" + string(f.alice))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var balance BalanceOfResponse
	decodeJSON(t, getResp, &balance)
	assert.Equal(t, math.NewInt(100), balance.Balance)

	// Config echo
	getResp, err = http.Get(f.server.URL + "/v1/vault")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var info VaultInfoResponse
	decodeJSON(t, getResp, &info)
	assert.Equal(t, cfg.VaultAddress, info.Config.VaultAddress)

	// Conservation check
	getResp, err = http.Get(f.server.URL + "/v1/invariant")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var report InvariantResponse
	decodeJSON(t, getResp, &report)
	assert.True(t, report.Consistent)
}

func TestHTTPErrorMapping(t *testing.T) {
	f := setupHTTPServer(t)
	f.instantiateHTTP(t)

	resp := postJSON(t, f.server.URL+"/v1/deposit", DepositRequest{
		Depositor: f.alice,
		Amount:    math.NewInt(100),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	cases := []struct {
		name   string
		do     func() *http.Response
		status int
		code   string
	}{
		{
			name: "zero amount deposit",
			do: func() *http.Response {
				return postJSON(t, f.server.URL+"/v1/deposit", DepositRequest{
					Depositor: f.alice,
					Amount:    math.NewInt(0),
				})
			},
			status: http.StatusBadRequest,
			code:   "invalid_amount",
		},
		{
			name: "overdrawn withdraw",
			do: func() *http.Response {
				return postJSON(t, f.server.URL+"/v1/withdraw", WithdrawRequest{
					Holder: f.alice,
					Shares: math.NewInt(1000),
				})
			},
			status: http.StatusUnprocessableEntity,
			code:   "insufficient_shares",
		},
		{
			name: "second instantiate",
			do: func() *http.Response {
				return postJSON(t, f.server.URL+"/v1/instantiate", InstantiateRequest{
					Owner:           f.owner,
					UnderlyingToken: f.underlying,
				})
			},
			status: http.StatusConflict,
			code:   "already_initialized",
		},
		{
			name: "malformed holder",
			do: func() *http.Response {
				resp, err := http.Get(f.server.URL + "/v1/balance?holder=not-base58!")
				require.NoError(t, err)
				return resp
			},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := tc.do()
			assert.Equal(t, tc.status, resp.StatusCode)

			// Decode into a raw map: failures must carry the error
			// shape and never instructions
			var body map[string]interface{}
			decodeJSON(t, resp, &body)
			assert.Equal(t, tc.code, body["code"])
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body, "instructions")
		})
	}
}

func TestHTTPOracleFailure(t *testing.T) {
	f := setupHTTPServer(t)
	f.instantiateHTTP(t)

	f.orc.FailTokenBalance(assert.AnError)

	resp := postJSON(t, f.server.URL+"/v1/deposit", DepositRequest{
		Depositor: f.alice,
		Amount:    math.NewInt(100),
	})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body ErrorResponse
	decodeJSON(t, resp, &body)
	assert.Equal(t, "external_query_error", body.Code)
}

func TestHTTPDepositBeforeInstantiate(t *testing.T) {
	f := setupHTTPServer(t)

	resp := postJSON(t, f.server.URL+"/v1/deposit", DepositRequest{
		Depositor: f.alice,
		Amount:    math.NewInt(100),
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var body ErrorResponse
	decodeJSON(t, resp, &body)
	assert.Equal(t, "not_initialized", body.Code)
}

func TestHTTPMethodNotAllowed(t *testing.T) {
	f := setupHTTPServer(t)

	resp, err := http.Get(f.server.URL + "/v1/deposit")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = postJSON(t, f.server.URL+"/v1/supply", struct{}{})
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHTTPMalformedBody(t *testing.T) {
	f := setupHTTPServer(t)

	resp, err := http.Post(f.server.URL+"/v1/deposit", "application/json",
		strings.NewReader(`{"depositor": `))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body ErrorResponse
	decodeJSON(t, resp, &body)
	assert.Equal(t, "bad_request", body.Code)
}

func TestWSOperationFeed(t *testing.T) {
	f := setupHTTPServer(t)
	f.instantiateHTTP(t)

	// Subscribe after instantiate so the first event seen is the deposit
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return f.hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp := postJSON(t, f.server.URL+"/v1/deposit", DepositRequest{
		Depositor: f.alice,
		Amount:    math.NewInt(100),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var op domain.Operation
	require.NoError(t, json.Unmarshal(payload, &op))
	assert.Equal(t, domain.OpDeposit, op.Kind)
	assert.Equal(t, f.alice, op.Actor)
	assert.Equal(t, math.NewInt(100), op.Amount)
	assert.Equal(t, 1, op.Instructions)
}
