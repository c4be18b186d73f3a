package withdraw

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	domainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)
	withdrawTypeHash = ethcrypto.Keccak256(
		[]byte("Withdraw(address user,uint256 amount,uint256 nonce,uint256 expiry)"),
	)
)

const (
	domainName    = "KMarketVault"
	domainVersion = "1"
)

// Signer assina cupons de saque EIP-712 que o contrato do vault valida
type Signer struct {
	key       *ecdsa.PrivateKey
	address   common.Address
	domainSep []byte
}

func NewSigner(privateKeyHex string, chainID int64, vault string) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("withdraw signer: invalid private key: %w", err)
	}
	if !common.IsHexAddress(vault) {
		return nil, fmt.Errorf("withdraw signer: invalid vault address %q", vault)
	}
	return &Signer{
		key:     pk,
		address: ethcrypto.PubkeyToAddress(pk.PublicKey),
		domainSep: ethcrypto.Keccak256(
			domainTypeHash,
			ethcrypto.Keccak256([]byte(domainName)),
			ethcrypto.Keccak256([]byte(domainVersion)),
			word(big.NewInt(chainID)),
			common.LeftPadBytes(common.HexToAddress(vault).Bytes(), 32),
		),
	}, nil
}

func (s *Signer) Address() common.Address { return s.address }

// Digest devolve o hash EIP-712 do cupom: keccak256("\x19\x01" || domain || struct)
func (s *Signer) Digest(user common.Address, amount, nonce, expiry *big.Int) []byte {
	structHash := ethcrypto.Keccak256(
		withdrawTypeHash,
		common.LeftPadBytes(user.Bytes(), 32),
		word(amount),
		word(nonce),
		word(expiry),
	)
	return ethcrypto.Keccak256([]byte{0x19, 0x01}, s.domainSep, structHash)
}

// Sign retorna a assinatura r||s||v em hex com v em {27,28}
func (s *Signer) Sign(user common.Address, amount, nonce, expiry *big.Int) (string, error) {
	sig, err := ethcrypto.Sign(s.Digest(user, amount, nonce, expiry), s.key)
	if err != nil {
		return "", fmt.Errorf("withdraw signer: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

func word(n *big.Int) []byte {
	return common.LeftPadBytes(n.Bytes(), 32)
}
