package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"stakehub/crypto"
	"stakehub/native/pool"
)

type poolIDParams struct {
	PoolID uint64 `json:"poolId"`
}

type poolRangeParams struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

type poolAccountParams struct {
	PoolID  uint64 `json:"poolId"`
	Account string `json:"account"`
}

type poolPositionsParams struct {
	PoolID  uint64 `json:"poolId"`
	Account string `json:"account"`
	From    int    `json:"from"`
	To      int    `json:"to"`
}

type poolInterestParams struct {
	Account string `json:"account"`
	PoolID  uint64 `json:"poolId"`
	Index   int    `json:"index"`
	Amount  string `json:"amount"`
}

type poolOnTransferParams struct {
	Sender string `json:"sender"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
	Msg    string `json:"msg"`
}

type poolWithdrawParams struct {
	Caller string `json:"caller"`
	PoolID uint64 `json:"poolId"`
	Index  int    `json:"index"`
	Amount string `json:"amount"`
}

type poolBorrowParams struct {
	Caller string `json:"caller"`
	PoolID uint64 `json:"poolId"`
	Amount string `json:"amount"`
}

type poolClaimParams struct {
	Caller string `json:"caller"`
	PoolID uint64 `json:"poolId"`
	Index  int    `json:"index"`
}

type poolLimitsPayload struct {
	Duration       uint64 `json:"duration"`
	StartTime      uint64 `json:"startTime"`
	EndTime        uint64 `json:"endTime"`
	LimitPerUser   string `json:"limitPerUser"`
	Capacity       string `json:"capacity"`
	MaxUtilisation string `json:"maxUtilisation"`
}

type poolPayload struct {
	Name            string            `json:"name"`
	Type            string            `json:"type"`
	APY             string            `json:"apy"`
	QuarterlyPayout bool              `json:"quarterlyPayout"`
	Token           string            `json:"token"`
	CollateralToken string            `json:"collateralToken"`
	Limits          poolLimitsPayload `json:"depositLimiters"`
}

type poolCreateParams struct {
	Caller string      `json:"caller"`
	Pool   poolPayload `json:"pool"`
}

type poolEditParams struct {
	Caller string      `json:"caller"`
	PoolID uint64      `json:"poolId"`
	Pool   poolPayload `json:"pool"`
}

type poolSetPausedParams struct {
	Caller string `json:"caller"`
	PoolID uint64 `json:"poolId"`
	Paused bool   `json:"paused"`
}

type poolWhitelistParams struct {
	Caller  string `json:"caller"`
	PoolID  uint64 `json:"poolId"`
	Account string `json:"account"`
	Status  bool   `json:"status"`
}

type poolRecoverParams struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type poolTxResult struct {
	TxHash string `json:"txHash"`
}

type poolOnTransferResult struct {
	Code int `json:"code"`
}

func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected a single parameter object", nil)
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return false
	}
	return true
}

func parseAddressParam(w http.ResponseWriter, req *RPCRequest, field, value string) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("invalid %s address", field), err.Error())
		return crypto.Address{}, false
	}
	return addr, true
}

func parseAmountParam(w http.ResponseWriter, req *RPCRequest, field, value string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("invalid %s amount", field), value)
		return nil, false
	}
	return amount, true
}

func buildPoolTemplate(w http.ResponseWriter, req *RPCRequest, payload poolPayload) (*pool.Pool, bool) {
	var poolType pool.PoolType
	if err := poolType.UnmarshalText([]byte(payload.Type)); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid pool type", payload.Type)
		return nil, false
	}
	apy, ok := parseAmountParam(w, req, "apy", payload.APY)
	if !ok {
		return nil, false
	}
	tokenAddr, ok := parseAddressParam(w, req, "token", payload.Token)
	if !ok {
		return nil, false
	}
	collateral, ok := parseAddressParam(w, req, "collateralToken", payload.CollateralToken)
	if !ok {
		return nil, false
	}
	limitPerUser, ok := parseAmountParam(w, req, "limitPerUser", payload.Limits.LimitPerUser)
	if !ok {
		return nil, false
	}
	capacity, ok := parseAmountParam(w, req, "capacity", payload.Limits.Capacity)
	if !ok {
		return nil, false
	}
	maxUtil, ok := parseAmountParam(w, req, "maxUtilisation", payload.Limits.MaxUtilisation)
	if !ok {
		return nil, false
	}
	return &pool.Pool{
		Name:            payload.Name,
		Type:            poolType,
		APY:             apy,
		QuarterlyPayout: payload.QuarterlyPayout,
		TokenInfo: pool.TokenInfo{
			Token:           tokenAddr,
			CollateralToken: collateral,
		},
		Limits: pool.DepositLimiters{
			Duration:       payload.Limits.Duration,
			StartTime:      payload.Limits.StartTime,
			EndTime:        payload.Limits.EndTime,
			LimitPerUser:   limitPerUser,
			Capacity:       capacity,
			MaxUtilisation: maxUtil,
		},
	}, true
}

func (s *Server) handlePoolTotalPools(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	total, modErr := s.pool.TotalPools()
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, total)
}

func (s *Server) handlePoolInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	p, modErr := s.pool.PoolInfo(params.PoolID)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, p)
}

func (s *Server) handlePoolList(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolRangeParams
	if !decodeParams(w, req, &params) {
		return
	}
	pools, modErr := s.pool.PoolInfoRange(params.From, params.To)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, pools)
}

func (s *Server) handlePoolUtilisation(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	util, modErr := s.pool.PoolUtilisation(params.PoolID)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, util.String())
}

func (s *Server) handlePoolInterest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolInterestParams
	if !decodeParams(w, req, &params) {
		return
	}
	account, ok := parseAddressParam(w, req, "account", params.Account)
	if !ok {
		return
	}
	amount, ok := parseAmountParam(w, req, "amount", params.Amount)
	if !ok {
		return
	}
	interest, modErr := s.pool.CalculateInterest(account, params.PoolID, params.Index, amount)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, interest.String())
}

func (s *Server) handlePoolPositionCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolAccountParams
	if !decodeParams(w, req, &params) {
		return
	}
	account, ok := parseAddressParam(w, req, "account", params.Account)
	if !ok {
		return
	}
	count, modErr := s.pool.TotalStakesOfUser(params.PoolID, account)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, count)
}

func (s *Server) handlePoolPositions(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolPositionsParams
	if !decodeParams(w, req, &params) {
		return
	}
	account, ok := parseAddressParam(w, req, "account", params.Account)
	if !ok {
		return
	}
	list, modErr := s.pool.UserStakes(params.PoolID, account, params.From, params.To)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, list)
}

func (s *Server) handlePoolOnTransfer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolOnTransferParams
	if !decodeParams(w, req, &params) {
		return
	}
	sender, ok := parseAddressParam(w, req, "sender", params.Sender)
	if !ok {
		return
	}
	tokenAddr, ok := parseAddressParam(w, req, "token", params.Token)
	if !ok {
		return
	}
	amount, ok := parseAmountParam(w, req, "amount", params.Amount)
	if !ok {
		return
	}
	code, modErr := s.pool.OnTransfer(sender, tokenAddr, amount, params.Msg)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, poolOnTransferResult{Code: code})
}

func (s *Server) handlePoolWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolWithdrawParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddressParam(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	amount, ok := parseAmountParam(w, req, "amount", params.Amount)
	if !ok {
		return
	}
	txHash, modErr := s.pool.Withdraw(caller, params.PoolID, params.Index, amount)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, poolTxResult{TxHash: txHash})
}

func (s *Server) handlePoolEmergencyWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolWithdrawParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddressParam(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	amount, ok := parseAmountParam(w, req, "amount", params.Amount)
	if !ok {
		return
	}
	txHash, modErr := s.pool.EmergencyWithdraw(caller, params.PoolID, params.Index, amount)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, poolTxResult{TxHash: txHash})
}

func (s *Server) handlePoolBorrow(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolBorrowParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddressParam(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	amount, ok := parseAmountParam(w, req, "amount", params.Amount)
	if !ok {
		return
	}
	txHash, modErr := s.pool.Borrow(caller, params.PoolID, amount)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, poolTxResult{TxHash: txHash})
}

func (s *Server) handlePoolClaimQuarterly(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolClaimParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddressParam(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	claimed, modErr := s.pool.ClaimQuarterlyPayout(caller, params.PoolID, params.Index)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, claimed.String())
}

func (s *Server) handlePoolCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolCreateParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddressParam(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	template, ok := buildPoolTemplate(w, req, params.Pool)
	if !ok {
		return
	}
	pid, modErr := s.pool.CreatePool(caller, template)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, pid)
}

func (s *Server) handlePoolEdit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolEditParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddressParam(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	template, ok := buildPoolTemplate(w, req, params.Pool)
	if !ok {
		return
	}
	if modErr := s.pool.EditPool(caller, params.PoolID, template); modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handlePoolSetPaused(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolSetPausedParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddressParam(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	if modErr := s.pool.SetPoolPaused(caller, params.PoolID, params.Paused); modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handlePoolSetWhitelist(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolWhitelistParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddressParam(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	account, ok := parseAddressParam(w, req, "account", params.Account)
	if !ok {
		return
	}
	if modErr := s.pool.SetWhitelist(caller, params.PoolID, account, params.Status); modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handlePoolRecoverToken(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolRecoverParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddressParam(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	tokenAddr, ok := parseAddressParam(w, req, "token", params.Token)
	if !ok {
		return
	}
	amount, ok := parseAmountParam(w, req, "amount", params.Amount)
	if !ok {
		return
	}
	txHash, modErr := s.pool.RecoverToken(caller, tokenAddr, amount)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, poolTxResult{TxHash: txHash})
}
