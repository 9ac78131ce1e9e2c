// Package wallet normalizes EVM wallet addresses so lookups do not depend on
// the casing a client happened to send.
package wallet

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ErrInvalidAddress is returned for anything that is not a 20-byte hex address.
var ErrInvalidAddress = errors.New("invalid wallet address")

// Checksum returns the EIP-55 mixed-case form of addr.
func Checksum(addr string) (string, error) {
	lower := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X"))
	if len(lower) != 40 {
		return "", ErrInvalidAddress
	}
	if _, err := hex.DecodeString(lower); err != nil {
		return "", ErrInvalidAddress
	}

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		// nibble i of the hash decides the case of character i
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out), nil
}

// Equal reports whether two addresses refer to the same wallet.
func Equal(a, b string) bool {
	ca, err := Checksum(a)
	if err != nil {
		return false
	}
	cb, err := Checksum(b)
	return err == nil && ca == cb
}
