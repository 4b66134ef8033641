package cache

import (
	"encoding/hex"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a canonical hash identifying a request by its kind and
// normalized parameters. Parameter order never affects the result, so two
// semantically identical requests always map to the same cache entry.
func Fingerprint(kind string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h, _ := blake2b.New256(nil)
	h.Write([]byte(kind))
	h.Write([]byte{0})
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{1})
		h.Write([]byte(params[k]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
