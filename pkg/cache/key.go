package cache

import (
	"bytes"
	"crypto/md5" // #nosec G501 -- key fingerprint, not a security boundary
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DefaultMaxKeyLength is the canonical-form length above which DeriveKey hashes.
const DefaultMaxKeyLength = 200

type keyOptions struct {
	hash      bool
	maxLength int
}

// KeyOption customizes DeriveKey.
type KeyOption func(*keyOptions)

// WithHashing forces the MD5 form regardless of length.
func WithHashing() KeyOption {
	return func(o *keyOptions) { o.hash = true }
}

// WithMaxKeyLength overrides DefaultMaxKeyLength. Non-positive values are ignored.
func WithMaxKeyLength(n int) KeyOption {
	return func(o *keyOptions) {
		if n > 0 {
			o.maxLength = n
		}
	}
}

// DeriveKey builds a deterministic cache key for params.
//
// params is normalized to canonical JSON with object keys sorted at every depth,
// so two logically equal requests produce the same key whatever their field or
// map order. The result is "prefix:<canonical>" or, when the canonical form is
// longer than the maximum key length or hashing is requested, "prefix:<md5 hex>".
//
// Examples:
//   - DeriveKey("cover", map[string]any{"b": 1, "a": 2}) -> `cover:{"a":2,"b":1}`
//   - DeriveKey("cover", req, WithHashing())            -> "cover:<32 hex chars>"
func DeriveKey(prefix string, params any, opts ...KeyOption) (string, error) {
	o := keyOptions{maxLength: DefaultMaxKeyLength}
	for _, opt := range opts {
		opt(&o)
	}

	canonical, err := canonicalJSON(params)
	if err != nil {
		return "", fmt.Errorf("cache: failed to derive key for %s: %w", prefix, err)
	}

	if o.hash || len(canonical) > o.maxLength {
		sum := md5.Sum(canonical) // #nosec G401
		return prefix + ":" + hex.EncodeToString(sum[:]), nil
	}
	return prefix + ":" + string(canonical), nil
}

// canonicalJSON re-encodes v through a generic tree. encoding/json writes map
// keys in sorted order, which gives structs and maps one canonical form.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}
