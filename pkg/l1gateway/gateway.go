// Copyright 2025 Certen Protocol
//
// L1Gateway wraps an Ethereum-compatible JSON-RPC client for the rollup's
// safe-height mint reads, settlement submission, and burn-substitution
// payouts. Grounded directly on pkg/ethereum/client.go: ethclient.Client,
// abi.JSON + contractABI.Pack/Unpack for contract reads, types.SignTx with
// an EIP-155 signer for every send, receipt polling in WaitForConfirm, and
// the gas-price-floor + escalating-retry logic of
// SendContractTransactionWithRetry.

package l1gateway

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	paytypes "github.com/SatsBridge/payy/pkg/types"
)

// rollupABI covers the subset of the rollup contract's surface this node
// consumes: mint registrations, the rollup's last settled block height,
// and block settlement submission.
var rollupABI = mustParseABI(`[
	{"name":"getMint","type":"function","stateMutability":"view",
	 "inputs":[{"name":"mintHash","type":"bytes32"}],
	 "outputs":[{"name":"amount","type":"uint256"},{"name":"noteKind","type":"uint32"},{"name":"exists","type":"bool"}]},
	{"name":"blockHeight","type":"function","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"submitBlock","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"height","type":"uint256"},{"name":"rootHash","type":"bytes32"},{"name":"blockData","type":"bytes"}],
	 "outputs":[]}
]`)

// usdcABI covers the ERC20 surface BurnSubstitutor needs.
var usdcABI = mustParseABI(`[
	{"name":"balanceOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"transfer","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`)

func mustParseABI(j string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(j))
	if err != nil {
		panic(fmt.Sprintf("l1gateway: invalid embedded ABI: %v", err))
	}
	return parsed
}

// MintRegistration is a read-only L1 mint entry.
type MintRegistration struct {
	Amount   *big.Int
	NoteKind paytypes.NoteKind
}

// Gateway is a thin, stateless-above-its-HTTP-client wrapper around an
// Ethereum JSON-RPC endpoint: ethclient.Client is already safe for
// concurrent use, so Gateway adds no locking of its own.
type Gateway struct {
	client        *ethclient.Client
	chainID       *big.Int
	rollupAddr    common.Address
	usdcAddr      common.Address
	signerKey     *ecdsa.PrivateKey
	signerAddress common.Address
}

// Config bundles the gateway's construction parameters.
type Config struct {
	RPCURL     string
	ChainID    int64
	RollupAddr common.Address
	USDCAddr   common.Address
	SignerHex  string // hex-encoded ECDSA private key, no 0x prefix required
}

// New dials the RPC endpoint and derives the signer's public address.
func New(cfg Config) (*Gateway, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("l1gateway: dial: %w", err)
	}

	g := &Gateway{
		client:     client,
		chainID:    big.NewInt(cfg.ChainID),
		rollupAddr: cfg.RollupAddr,
		usdcAddr:   cfg.USDCAddr,
	}

	if cfg.SignerHex != "" {
		key, err := gethcrypto.HexToECDSA(strings.TrimPrefix(cfg.SignerHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("l1gateway: parse signer key: %w", err)
		}
		g.signerKey = key
		pub, ok := key.Public().(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("l1gateway: signer public key is not ECDSA")
		}
		g.signerAddress = gethcrypto.PubkeyToAddress(*pub)
	}

	return g, nil
}

// SignerAddress returns the node's on-chain signer address.
func (g *Gateway) SignerAddress() common.Address { return g.signerAddress }

// BlockNumber returns the current L1 block height.
func (g *Gateway) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := g.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("l1gateway: block number: %w", err)
	}
	return n, nil
}

// GetMintAt reads a mint registration as of L1 block atHeight (the safe
// height computed by the caller), returning ok=false if the mint has not
// been registered by that height.
func (g *Gateway) GetMintAt(ctx context.Context, mintHash paytypes.Element, atHeight uint64) (MintRegistration, bool, error) {
	callData, err := rollupABI.Pack("getMint", [32]byte(mintHash))
	if err != nil {
		return MintRegistration{}, false, fmt.Errorf("l1gateway: pack getMint: %w", err)
	}

	blockNumber := new(big.Int).SetUint64(atHeight)
	result, err := g.client.CallContract(ctx, ethereum.CallMsg{
		To:   &g.rollupAddr,
		Data: callData,
	}, blockNumber)
	if err != nil {
		return MintRegistration{}, false, fmt.Errorf("l1gateway: call getMint: %w", err)
	}

	outputs, err := rollupABI.Unpack("getMint", result)
	if err != nil {
		return MintRegistration{}, false, fmt.Errorf("l1gateway: unpack getMint: %w", err)
	}
	amount := outputs[0].(*big.Int)
	noteKind := outputs[1].(uint32)
	exists := outputs[2].(bool)
	if !exists {
		return MintRegistration{}, false, nil
	}
	return MintRegistration{Amount: amount, NoteKind: paytypes.NoteKind(noteKind)}, true, nil
}

// RollupBlockHeight returns the last rollup block height settled on L1.
func (g *Gateway) RollupBlockHeight(ctx context.Context) (uint64, error) {
	callData, err := rollupABI.Pack("blockHeight")
	if err != nil {
		return 0, fmt.Errorf("l1gateway: pack blockHeight: %w", err)
	}
	result, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &g.rollupAddr, Data: callData}, nil)
	if err != nil {
		return 0, fmt.Errorf("l1gateway: call blockHeight: %w", err)
	}
	outputs, err := rollupABI.Unpack("blockHeight", result)
	if err != nil {
		return 0, fmt.Errorf("l1gateway: unpack blockHeight: %w", err)
	}
	return outputs[0].(*big.Int).Uint64(), nil
}

// minGasPriceWei floors every submitted transaction's gas price, following
// SendContractTransactionWithRetry's 5 Gwei floor.
var minGasPriceWei = big.NewInt(5 * 1_000_000_000)

// SubmitSettlement submits a finalized rollup block's root for settlement,
// retrying with escalating gas price on replacement/nonce races, exactly as
// SendContractTransactionWithRetry does.
func (g *Gateway) SubmitSettlement(ctx context.Context, height uint64, rootHash paytypes.Element, blockData []byte) (common.Hash, error) {
	callData, err := rollupABI.Pack("submitBlock", new(big.Int).SetUint64(height), [32]byte(rootHash), blockData)
	if err != nil {
		return common.Hash{}, fmt.Errorf("l1gateway: pack submitBlock: %w", err)
	}
	return g.sendWithRetry(ctx, g.rollupAddr, callData, 500_000, 5)
}

// SubstituteBurn transfers amount of the USDC-equivalent token from the
// signer to recipient, fronting a pending burn ahead of L1 settlement.
func (g *Gateway) SubstituteBurn(ctx context.Context, recipient common.Address, amount *big.Int) (common.Hash, error) {
	callData, err := usdcABI.Pack("transfer", recipient, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("l1gateway: pack transfer: %w", err)
	}
	return g.sendWithRetry(ctx, g.usdcAddr, callData, 100_000, 5)
}

// USDCBalanceOf reads the token balance of addr.
func (g *Gateway) USDCBalanceOf(ctx context.Context, addr common.Address) (*big.Int, error) {
	callData, err := usdcABI.Pack("balanceOf", addr)
	if err != nil {
		return nil, fmt.Errorf("l1gateway: pack balanceOf: %w", err)
	}
	result, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &g.usdcAddr, Data: callData}, nil)
	if err != nil {
		return nil, fmt.Errorf("l1gateway: call balanceOf: %w", err)
	}
	outputs, err := usdcABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("l1gateway: unpack balanceOf: %w", err)
	}
	return outputs[0].(*big.Int), nil
}

func (g *Gateway) sendWithRetry(ctx context.Context, to common.Address, callData []byte, gasLimit uint64, maxRetries int) (common.Hash, error) {
	if g.signerKey == nil {
		return common.Hash{}, fmt.Errorf("l1gateway: no signer configured")
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		nonce, err := g.client.PendingNonceAt(ctx, g.signerAddress)
		if err != nil {
			return common.Hash{}, fmt.Errorf("l1gateway: nonce: %w", err)
		}

		gasPrice, err := g.client.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("l1gateway: gas price: %w", err)
		}
		if gasPrice.Cmp(minGasPriceWei) < 0 {
			gasPrice = new(big.Int).Set(minGasPriceWei)
		}
		if attempt > 0 {
			multiplier := big.NewInt(int64(100 + 20*attempt))
			gasPrice = new(big.Int).Div(new(big.Int).Mul(gasPrice, multiplier), big.NewInt(100))
		}

		tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, callData)
		signedTx, err := types.SignTx(tx, types.NewEIP155Signer(g.chainID), g.signerKey)
		if err != nil {
			return common.Hash{}, fmt.Errorf("l1gateway: sign tx: %w", err)
		}

		err = g.client.SendTransaction(ctx, signedTx)
		if err != nil {
			if attempt < maxRetries-1 && isRetryable(err) {
				time.Sleep(2 * time.Second)
				continue
			}
			return common.Hash{}, fmt.Errorf("l1gateway: send tx (attempt %d): %w", attempt+1, err)
		}
		return signedTx.Hash(), nil
	}
	return common.Hash{}, fmt.Errorf("l1gateway: exhausted %d send attempts", maxRetries)
}

func isRetryable(err error) bool {
	s := err.Error()
	return strings.Contains(s, "replacement transaction underpriced") ||
		strings.Contains(s, "nonce too low") ||
		strings.Contains(s, "already known")
}

// WaitForConfirm blocks until tx is mined or timeout elapses.
func (g *Gateway) WaitForConfirm(ctx context.Context, tx common.Hash, timeout time.Duration) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		receipt, err := g.client.TransactionReceipt(ctx, tx)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("l1gateway: wait for confirm: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
}

// bindAuth builds a *bind.TransactOpts for the configured signer, retained
// for callers (e.g. future contract bindings) that want the bind package's
// richer transaction-options surface instead of the raw send path above.
func (g *Gateway) bindAuth() (*bind.TransactOpts, error) {
	if g.signerKey == nil {
		return nil, fmt.Errorf("l1gateway: no signer configured")
	}
	return bind.NewKeyedTransactorWithChainID(g.signerKey, g.chainID)
}
