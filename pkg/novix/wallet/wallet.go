package wallet

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"golang.org/x/crypto/sha3"
)

const privateKeyLen = 32

// Wallet is a signer derived from a secp256k1 private key
type Wallet struct {
	key     *secp256k1.PrivateKey
	address string
	network string
}

// FromPrivateKey parses a hex encoded private key (optional 0x prefix)
func FromPrivateKey(secret, network string) (*Wallet, error) {
	raw := strings.TrimSpace(secret)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	if raw == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidCredential, "private key is required", nil)
	}

	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidCredential, "private key must be hex encoded", err)
	}
	if len(b) != privateKeyLen {
		return nil, apperrors.New(apperrors.ErrCodeInvalidCredential,
			fmt.Sprintf("private key must be %d bytes, got %d", privateKeyLen, len(b)), nil)
	}

	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(b); overflow || scalar.IsZero() {
		return nil, apperrors.New(apperrors.ErrCodeInvalidCredential, "private key is out of range", nil)
	}

	key := secp256k1.NewPrivateKey(&scalar)
	return &Wallet{
		key:     key,
		address: deriveAddress(key.PubKey()),
		network: network,
	}, nil
}

// Address returns the EIP-55 checksummed address
func (w *Wallet) Address() string {
	return w.address
}

// Network returns the network the wallet is configured for
func (w *Wallet) Network() string {
	return w.network
}

// PublicKey returns the uncompressed public key, hex encoded
func (w *Wallet) PublicKey() string {
	return "0x" + hex.EncodeToString(w.key.PubKey().SerializeUncompressed())
}

// SignMessage signs msg with the personal_sign prefix and returns the
// 65-byte R||S||V signature, hex encoded.
func (w *Wallet) SignMessage(msg string) string {
	hash := keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)))

	// compact signatures lead with the recovery byte
	compact := ecdsa.SignCompact(w.key, hash, false)
	sig := make([]byte, 0, 65)
	sig = append(sig, compact[1:]...)
	sig = append(sig, compact[0])
	return "0x" + hex.EncodeToString(sig)
}

// String never includes key material
func (w *Wallet) String() string {
	return fmt.Sprintf("Wallet(%s on %s)", w.address, w.network)
}

func deriveAddress(pub *secp256k1.PublicKey) string {
	hash := keccak256(pub.SerializeUncompressed()[1:])
	return checksumAddress(hash[12:])
}

func checksumAddress(addr []byte) string {
	lower := hex.EncodeToString(addr)
	hash := keccak256([]byte(lower))

	out := make([]byte, len(lower))
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if c >= 'a' && c <= 'f' && nibble >= 8 {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
