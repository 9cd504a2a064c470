package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// keyPayload is the canonical form hashed into a cache key. Arguments are
// stringified so SDK objects and other non-comparable values still key
// deterministically; json.Marshal emits map keys in sorted order, which makes
// the key insensitive to keyword-argument order.
type keyPayload struct {
	Func   string            `json:"func"`
	Args   []string          `json:"args"`
	Kwargs map[string]string `json:"kwargs"`
}

// DeriveKey builds the cache key for one tool invocation from the operation
// name, its positional arguments, and its keyword arguments. The derivation
// is pure and never fails: two calls with equal arguments always produce the
// same key, and unprintable arguments degrade to a placeholder rather than
// aborting the request.
func DeriveKey(op string, args []any, kwargs map[string]any) string {
	strArgs := make([]string, len(args))
	for i, a := range args {
		strArgs[i] = stringify(a)
	}

	strKwargs := make(map[string]string, len(kwargs))
	for name, v := range kwargs {
		strKwargs[name] = stringify(v)
	}

	data, err := json.Marshal(keyPayload{Func: op, Args: strArgs, Kwargs: strKwargs})
	if err != nil {
		// Marshal of string-only fields cannot fail; keep a stable key anyway.
		data = []byte(op)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func stringify(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = "<unprintable>"
		}
	}()
	return fmt.Sprint(v)
}
