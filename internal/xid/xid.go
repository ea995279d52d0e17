// Package xid generates opaque identifiers for drafts and requests.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var fallback atomic.Uint64

// New returns "<prefix>_<24 hex chars>".
func New(prefix string) string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		n := fallback.Add(1)
		return prefix + "_" + strconv.FormatInt(time.Now().UnixNano(), 16) + strconv.FormatUint(n, 16)
	}
	return prefix + "_" + hex.EncodeToString(buf)
}

// HasPrefix reports whether id was generated by New with prefix.
func HasPrefix(id string, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	return ok && rest != ""
}
