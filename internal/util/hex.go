// Package util holds low-level helpers shared by chainclient and the
// ingestor: hex/byte conversion, ABI loading and two's-complement decoding
// for the signed int24/int256 fields Algebra/Uniswap-v3-style pools emit.
package util

import (
	"encoding/hex"
	"math/big"
	"strings"
)

// Hex2Bytes strips an optional "0x" prefix and decodes the remaining hex.
// Malformed input decodes to nil rather than panicking; callers treat a
// decode failure as a PermanentProtocolError upstream.
func Hex2Bytes(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil
	}
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// TwosComplementToBigInt interprets a big-endian byte slice of the given bit
// width as a two's-complement signed integer, matching the encoding Solidity
// uses for int24/int128/int256 log fields.
func TwosComplementToBigInt(b []byte, bits int) *big.Int {
	v := new(big.Int).SetBytes(b)
	signBit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	if v.Cmp(signBit) >= 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(bits))
		v.Sub(v, mod)
	}
	return v
}

// Int24FromWord extracts a signed 24-bit tick value packed into the low 24
// bits of a 32-byte ABI word, as emitted by Swap/tick-change logs.
func Int24FromWord(word []byte) int32 {
	if len(word) < 32 {
		return 0
	}
	return int32(TwosComplementToBigInt(word[29:32], 24).Int64())
}
