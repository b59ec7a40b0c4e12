package gift

import (
	"encoding/binary"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// claimDomainTag separates reassignment digests from any other signed
// payloads produced by receiver keys.
const claimDomainTag = "GIFTLEDGER_CLAIM_V1"

// ClaimDigest builds the digest an original receiver signs to authorize a
// one-time receiver reassignment at claim time. The instance identifier
// binds the authorization to a single ledger deployment.
func ClaimDigest(instanceID [32]byte, giftID uint64, newReceiver [20]byte) []byte {
	var idBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], giftID)
	return ethcrypto.Keccak256([]byte(claimDomainTag), instanceID[:], idBytes[:], newReceiver[:])
}

// recoverClaimSigner recovers the address that signed the reassignment
// authorization. Signatures are 65-byte [R || S || V] triples.
func recoverClaimSigner(instanceID [32]byte, giftID uint64, newReceiver [20]byte, sig []byte) ([20]byte, error) {
	if len(sig) != 65 {
		return [20]byte{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}
	digest := ClaimDigest(instanceID, giftID, newReceiver)
	pubKey, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	signer := ethcrypto.PubkeyToAddress(*pubKey)
	return [20]byte(signer), nil
}
