package plumbing

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"sort"
)

const (
	HASH_DIGEST_SIZE = 20
	HASH_HEX_SIZE    = 40
	MIN_PREFIX_LEN   = 4
	reverseHexTable  = "" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\x00\x01\x02\x03\x04\x05\x06\x07\x08\x09\xff\xff\xff\xff\xff\xff" +
		"\xff\x0a\x0b\x0c\x0d\x0e\x0f\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\x0a\x0b\x0c\x0d\x0e\x0f\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff"
)

const (
	// BLANK_BLOB is the sha1 of an empty blob ("blob 0\x00").
	BLANK_BLOB = "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"
	ZERO_OID   = "0000000000000000000000000000000000000000"
)

// Hash is a git object name: the SHA-1 of an object's canonical bytes.
type Hash [HASH_DIGEST_SIZE]byte

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	hashBytes, _ := hex.DecodeString(s)
	copy(h[:], hashBytes)
	return nil
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	hashBytes, _ := hex.DecodeString(string(text))
	copy(h[:], hashBytes)
	return nil
}

// ZeroHash is Hash with value zero
var ZeroHash Hash

// NewHash returns a new Hash from a hexadecimal hash representation. Invalid
// or short input decodes to whatever bytes hex.DecodeString manages to
// produce, followed by zero bytes up to the full width; callers that must reject malformed input
// should use NewHashEx.
func NewHash(s string) Hash {
	b, _ := hex.DecodeString(s)

	var h Hash
	copy(h[:], b)

	return h
}

func (h Hash) IsZero() bool {
	var empty Hash
	return h == empty
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Shorten returns the number of leading bytes needed to keep this hash
// distinguishable from the zero hash; used only for cosmetic rendering,
// never for prefix-lookup width (which is governed by MIN_PREFIX_LEN and
// the caller-supplied prefix length).
func (h Hash) Shorten() int {
	i := HASH_DIGEST_SIZE - 1
	for ; i >= 4; i-- {
		if h[i] != 0 {
			return i + 1
		}
	}
	return i + 1
}

func (h Hash) Prefix() string {
	return hex.EncodeToString(h[:h.Shorten()])
}

// HashesSort sorts a slice of Hashes in increasing order.
func HashesSort(a []Hash) {
	sort.Sort(HashSlice(a))
}

// HashSlice attaches the methods of sort.Interface to []Hash, sorting in
// increasing order.
type HashSlice []Hash

func (p HashSlice) Len() int           { return len(p) }
func (p HashSlice) Less(i, j int) bool { return bytes.Compare(p[i][:], p[j][:]) < 0 }
func (p HashSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

// ValidateHashHex returns true if the given string is a well-formed full
// hex object name.
func ValidateHashHex(s string) bool {
	if len(s) != HASH_HEX_SIZE {
		return false
	}
	return validateHexBytes(s)
}

// ValidateHashPrefixHex returns true if s is a hex string of at least
// MIN_PREFIX_LEN and at most HASH_HEX_SIZE characters, suitable for
// abbreviated object name resolution.
func ValidateHashPrefixHex(s string) bool {
	if len(s) < MIN_PREFIX_LEN || len(s) > HASH_HEX_SIZE {
		return false
	}
	return validateHexBytes(s)
}

func validateHexBytes(s string) bool {
	bs := []byte(s)
	for _, b := range bs {
		if c := reverseHexTable[b]; c > 0x0f {
			return false
		}
	}
	return true
}

func NewHashEx(s string) (Hash, error) {
	if !ValidateHashHex(s) {
		return ZeroHash, fmt.Errorf("gitcore: '%s' not a valid object name", s)
	}
	return NewHash(s), nil
}

// IsLooseDir reports whether s looks like a loose-object fanout directory
// name: exactly two lowercase hex digits.
func IsLooseDir(s string) bool {
	if len(s) != 2 {
		return false
	}
	bs := []byte(s)
	for _, b := range bs {
		if !(b >= '0' && b <= '9' || b >= 'a' && b <= 'f') {
			return false
		}
	}
	return true
}

// Hasher wraps a hash.Hash and yields a Hash from its running sum.
type Hasher struct {
	hash.Hash
}

func NewHasher() Hasher {
	return Hasher{Hash: sha1.New()}
}

func (h Hasher) Sum() (hash Hash) {
	copy(hash[:], h.Hash.Sum(nil))
	return
}
