package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	// reference vectors from EIP-55
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, want := range vectors {
		got, err := Checksum(want)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		got, err = Checksum("0x" + lowerHex(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestChecksumRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "0x1234", "0xzzAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "not-a-wallet"} {
		_, err := Checksum(in)
		assert.ErrorIs(t, err, ErrInvalidAddress, in)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED"))
	assert.False(t, Equal("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"))
	assert.False(t, Equal("", ""))
}

func lowerHex(addr string) string {
	b := []byte(addr[2:])
	for i, c := range b {
		if c >= 'A' && c <= 'F' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}
