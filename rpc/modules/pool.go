package modules

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"stakehub/crypto"
	"stakehub/native/pool"
	"stakehub/observability/metrics"
)

// PoolModule adapts the accounting engine to the JSON-RPC surface: it maps
// engine errors onto transport status codes and records per-method metrics.
type PoolModule struct {
	engine *pool.Engine
}

func NewPoolModule(engine *pool.Engine) *PoolModule {
	return &PoolModule{engine: engine}
}

func (m *PoolModule) moduleUnavailable() *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "pool module not available"}
}

// wrapError classifies engine and router rejections as caller mistakes;
// anything else is a server-side failure.
func (m *PoolModule) wrapError(method string, err error) *ModuleError {
	if err == nil {
		return nil
	}
	status := http.StatusInternalServerError
	code := codeServerError
	message := err.Error()
	if strings.HasPrefix(message, "pool engine:") || strings.HasPrefix(message, "pool router:") {
		status = http.StatusBadRequest
		code = codeInvalidParams
		metrics.Pool().Rejected(method)
	}
	return &ModuleError{HTTPStatus: status, Code: code, Message: message}
}

func poolLabel(pid uint64) string { return strconv.FormatUint(pid, 10) }

func (m *PoolModule) makeTxHash(kind, primary string, amounts ...*big.Int) string {
	parts := []string{kind, primary}
	for _, amount := range amounts {
		if amount != nil {
			parts = append(parts, amount.String())
		}
	}
	parts = append(parts, fmt.Sprintf("%d", time.Now().UTC().UnixNano()))
	payload := strings.Join(parts, "|")
	hash := ethcrypto.Keccak256([]byte(payload))
	return "0x" + hex.EncodeToString(hash)
}

func (m *PoolModule) TotalPools() (uint64, *ModuleError) {
	if m == nil || m.engine == nil {
		return 0, m.moduleUnavailable()
	}
	total, err := m.engine.TotalPools()
	if err != nil {
		return 0, m.wrapError("pool_totalPools", err)
	}
	return total, nil
}

func (m *PoolModule) PoolInfo(pid uint64) (*pool.Pool, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	p, err := m.engine.PoolInfo(pid)
	if err != nil {
		return nil, m.wrapError("pool_info", err)
	}
	return p, nil
}

func (m *PoolModule) PoolInfoRange(from, to uint64) ([]*pool.Pool, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	pools, err := m.engine.PoolInfoRange(from, to)
	if err != nil {
		return nil, m.wrapError("pool_list", err)
	}
	return pools, nil
}

func (m *PoolModule) PoolUtilisation(pid uint64) (*big.Int, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	util, err := m.engine.PoolUtilisation(pid)
	if err != nil {
		return nil, m.wrapError("pool_utilisation", err)
	}
	return util, nil
}

func (m *PoolModule) CalculateInterest(account crypto.Address, pid uint64, index int, amount *big.Int) (*big.Int, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	interest, err := m.engine.CalculateInterest(account, pid, index, amount)
	if err != nil {
		return nil, m.wrapError("pool_interest", err)
	}
	return interest, nil
}

func (m *PoolModule) TotalStakesOfUser(pid uint64, account crypto.Address) (int, *ModuleError) {
	if m == nil || m.engine == nil {
		return 0, m.moduleUnavailable()
	}
	n, err := m.engine.TotalStakesOfUser(pid, account)
	if err != nil {
		return 0, m.wrapError("pool_positionCount", err)
	}
	return n, nil
}

func (m *PoolModule) UserStakes(pid uint64, account crypto.Address, from, to int) ([]pool.Position, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	list, err := m.engine.UserStakes(pid, account, from, to)
	if err != nil {
		return nil, m.wrapError("pool_positions", err)
	}
	return list, nil
}

func (m *PoolModule) OnTransfer(sender, token crypto.Address, amount *big.Int, msg string) (int, *ModuleError) {
	if m == nil || m.engine == nil {
		return 0, m.moduleUnavailable()
	}
	code, err := m.engine.OnTransfer(sender, token, amount, msg)
	if err != nil {
		return 0, m.wrapError("pool_onTransfer", err)
	}
	if cmd, parseErr := pool.ParseTransferMessage(msg); parseErr == nil {
		label := poolLabel(cmd.PoolID)
		switch code {
		case pool.ResultStaked:
			metrics.Pool().Deposit(label)
		case pool.ResultRepaid:
			metrics.Pool().Repay(label)
		}
	}
	return code, nil
}

func (m *PoolModule) Withdraw(caller crypto.Address, pid uint64, index int, amount *big.Int) (string, *ModuleError) {
	if m == nil || m.engine == nil {
		return "", m.moduleUnavailable()
	}
	if err := m.engine.Withdraw(caller, pid, index, amount); err != nil {
		return "", m.wrapError("pool_withdraw", err)
	}
	metrics.Pool().Withdrawal(poolLabel(pid), "standard")
	return m.makeTxHash("withdraw", caller.String(), amount), nil
}

func (m *PoolModule) EmergencyWithdraw(caller crypto.Address, pid uint64, index int, amount *big.Int) (string, *ModuleError) {
	if m == nil || m.engine == nil {
		return "", m.moduleUnavailable()
	}
	if err := m.engine.EmergencyWithdraw(caller, pid, index, amount); err != nil {
		return "", m.wrapError("pool_emergencyWithdraw", err)
	}
	metrics.Pool().Withdrawal(poolLabel(pid), "emergency")
	return m.makeTxHash("emergencyWithdraw", caller.String(), amount), nil
}

func (m *PoolModule) Borrow(caller crypto.Address, pid uint64, amount *big.Int) (string, *ModuleError) {
	if m == nil || m.engine == nil {
		return "", m.moduleUnavailable()
	}
	if err := m.engine.Borrow(caller, pid, amount); err != nil {
		return "", m.wrapError("pool_borrow", err)
	}
	metrics.Pool().Borrow(poolLabel(pid))
	return m.makeTxHash("borrow", caller.String(), amount), nil
}

func (m *PoolModule) ClaimQuarterlyPayout(caller crypto.Address, pid uint64, index int) (*big.Int, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	claimed, err := m.engine.ClaimQuarterlyPayout(caller, pid, index)
	if err != nil {
		return nil, m.wrapError("pool_claimQuarterly", err)
	}
	if claimed.Sign() > 0 {
		metrics.Pool().RewardsPaid(poolLabel(pid))
	}
	return claimed, nil
}

func (m *PoolModule) CreatePool(caller crypto.Address, template *pool.Pool) (uint64, *ModuleError) {
	if m == nil || m.engine == nil {
		return 0, m.moduleUnavailable()
	}
	pid, err := m.engine.CreatePool(caller, template)
	if err != nil {
		return 0, m.wrapError("pool_create", err)
	}
	return pid, nil
}

func (m *PoolModule) EditPool(caller crypto.Address, pid uint64, template *pool.Pool) *ModuleError {
	if m == nil || m.engine == nil {
		return m.moduleUnavailable()
	}
	if err := m.engine.EditPool(caller, pid, template); err != nil {
		return m.wrapError("pool_edit", err)
	}
	return nil
}

func (m *PoolModule) SetPoolPaused(caller crypto.Address, pid uint64, paused bool) *ModuleError {
	if m == nil || m.engine == nil {
		return m.moduleUnavailable()
	}
	if err := m.engine.SetPoolPaused(caller, pid, paused); err != nil {
		return m.wrapError("pool_setPaused", err)
	}
	return nil
}

func (m *PoolModule) SetWhitelist(caller crypto.Address, pid uint64, account crypto.Address, status bool) *ModuleError {
	if m == nil || m.engine == nil {
		return m.moduleUnavailable()
	}
	if err := m.engine.SetWhitelist(caller, pid, account, status); err != nil {
		return m.wrapError("pool_setWhitelist", err)
	}
	return nil
}

func (m *PoolModule) RecoverToken(caller, token crypto.Address, amount *big.Int) (string, *ModuleError) {
	if m == nil || m.engine == nil {
		return "", m.moduleUnavailable()
	}
	if err := m.engine.RecoverToken(caller, token, amount); err != nil {
		return "", m.wrapError("pool_recoverToken", err)
	}
	return m.makeTxHash("recoverToken", token.String(), amount), nil
}
