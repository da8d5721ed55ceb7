package imageprocessor

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "imagededup/errors"
	"imagededup/types"

	"github.com/corona10/goimagehash"
)

// newHash packs bits MSB-first into 64-bit words
func newHash(alg types.Algorithm, bits []bool) *goimagehash.ExtImageHash {
	words := make([]uint64, (len(bits)+63)/64)
	for i, set := range bits {
		if set {
			words[i/64] |= 1 << (63 - uint(i%64))
		}
	}
	return goimagehash.NewExtImageHash(words, alg.Kind(), len(bits))
}

// HexString encodes a hash as ceil(bits/4) hex digits
func HexString(h *goimagehash.ExtImageHash) string {
	if h == nil {
		return ""
	}
	var b strings.Builder
	for _, w := range h.GetHash() {
		fmt.Fprintf(&b, "%016x", w)
	}
	return b.String()[:(h.Bits()+3)/4]
}

// ParseHash is the inverse of HexString
func ParseHash(alg types.Algorithm, hexStr string, bits int) (*goimagehash.ExtImageHash, error) {
	if bits <= 0 || len(hexStr) != (bits+3)/4 {
		return nil, apperrors.NewLengthMismatchError(
			fmt.Sprintf("hex string of %d digits cannot hold %d bits", len(hexStr), bits), nil)
	}

	padded := hexStr + strings.Repeat("0", (16-len(hexStr)%16)%16)
	words := make([]uint64, 0, len(padded)/16)
	for i := 0; i < len(padded); i += 16 {
		w, err := strconv.ParseUint(padded[i:i+16], 16, 64)
		if err != nil {
			return nil, apperrors.NewInternalError("malformed hash", err)
		}
		words = append(words, w)
	}
	return goimagehash.NewExtImageHash(words, alg.Kind(), bits), nil
}

// Distance returns the Hamming distance between two hashes of the same
// algorithm and bit length
func Distance(a, b *goimagehash.ExtImageHash) (int, error) {
	if a == nil || b == nil {
		return 0, apperrors.NewInternalError("cannot compare missing hash", nil)
	}
	if a.Bits() != b.Bits() {
		return 0, apperrors.NewLengthMismatchError(
			fmt.Sprintf("cannot compare %d-bit hash with %d-bit hash", a.Bits(), b.Bits()), nil)
	}
	if a.GetKind() != b.GetKind() {
		return 0, apperrors.NewInternalError("cannot compare hashes of different algorithms", nil)
	}

	d, err := a.Distance(b)
	if err != nil {
		return 0, apperrors.NewInternalError("hamming distance failed", err)
	}
	return d, nil
}
