package store

import (
	"fmt"
	"strings"
)

// Pebble key schema. Prefix-based so every query the service needs is a
// single range scan; sequence numbers are zero-padded to 20 digits so
// lexicographic key order equals numeric sequence order.
//
//	ord:{order_id}            → order record (JSON)
//	usr:{user_id}:{seq}       → order id
//	sym:{symbol}:{seq}        → order id
//	open:{symbol}:{seq}       → order id, present only while non-terminal
//	fill:{symbol}:{seq}       → fill record (JSON)
//	meta:maxseq               → highest sequence persisted (8-byte big endian)
const (
	prefixOrder = "ord:"
	prefixUser  = "usr:"
	prefixSym   = "sym:"
	prefixOpen  = "open:"
	prefixFill  = "fill:"
	keyMaxSeq   = "meta:maxseq"
)

func orderKey(id string) []byte {
	return []byte(prefixOrder + id)
}

func userKey(userID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixUser, userID, seq))
}

func userPrefix(userID string) []byte {
	return []byte(prefixUser + userID + ":")
}

func symKey(symbol string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixSym, symbol, seq))
}

func symPrefix(symbol string) []byte {
	return []byte(prefixSym + symbol + ":")
}

func openKey(symbol string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixOpen, symbol, seq))
}

func openPrefix(symbol string) []byte {
	return []byte(prefixOpen + symbol + ":")
}

func fillKey(symbol string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixFill, symbol, seq))
}

func fillPrefix(symbol string) []byte {
	return []byte(prefixFill + symbol + ":")
}

// openKeySymbol extracts the symbol from an open-index key.
func openKeySymbol(key []byte) string {
	rest := strings.TrimPrefix(string(key), prefixOpen)
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// keyUpperBound returns the exclusive upper bound for a prefix scan by
// incrementing the prefix's last byte.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
