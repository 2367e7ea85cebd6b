package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier.
func New() string {
	return newAt(time.Now())
}

func newAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// SubmissionNumber returns a human-facing manuscript number such as
// "MS-2026-01JB8X...". The ULID suffix keeps numbers unique and sortable.
func SubmissionNumber(t time.Time) string {
	return "MS-" + t.UTC().Format("2006") + "-" + newAt(t)
}

// PaymentReference returns a bank-transfer reference for an APC invoice.
func PaymentReference(t time.Time) string {
	return "APC-" + newAt(t)
}

// Time extracts the timestamp encoded in a reference produced by this package.
func Time(ref string) (time.Time, bool) {
	idx := strings.LastIndex(ref, "-")
	id, err := ulid.ParseStrict(ref[idx+1:])
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(id.Time()), true
}
