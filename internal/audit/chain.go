package audit

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"time"
)

// computeHash links e to its predecessor. Every field except Hash is
// length-prefixed so that adjacent values cannot be shifted into each other.
func computeHash(e Entry) string {
	h := sha256.New()
	writeField(h, strconv.FormatUint(e.Sequence, 10))
	writeField(h, e.TraceID)
	writeField(h, e.Timestamp.UTC().Format(time.RFC3339Nano))
	writeField(h, e.Accessor.String())
	writeField(h, e.TenantID.String())
	writeField(h, string(e.Action))
	writeField(h, e.MaskedReference.String())
	writeField(h, e.TimeContext)
	writeField(h, string(e.Status))
	writeField(h, strconv.FormatInt(e.ExecutionTimeMs, 10))
	writeField(h, e.Detail.Message())
	writeField(h, e.Detail.Stack())
	writeField(h, e.PrevHash)
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, v string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(v)))
	h.Write(n[:])
	h.Write([]byte(v))
}

// ChainError reports the first entry whose link does not verify.
type ChainError struct {
	Sequence uint64
	Reason   string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain broken at sequence %d: %s", e.Sequence, e.Reason)
}

// verifyChain checks entries ordered oldest first.
func verifyChain(entries []Entry) error {
	for i, e := range entries {
		if computeHash(e) != e.Hash {
			return &ChainError{Sequence: e.Sequence, Reason: "hash mismatch"}
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if e.PrevHash != prev.Hash {
			return &ChainError{Sequence: e.Sequence, Reason: "previous hash mismatch"}
		}
		if e.Sequence != prev.Sequence+1 {
			return &ChainError{Sequence: e.Sequence, Reason: "sequence gap"}
		}
	}
	return nil
}
