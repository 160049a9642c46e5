package domain

import "time"

// Chain identifiers. The audit chain and the financial chain are
// independent sequences so reconciliation is not coupled to audit volume.
const (
	ChainAudit     = "audit"
	ChainFinancial = "financial"
)

// GenesisHash is the previous-hash sentinel of the first record in a chain.
const GenesisHash = ""

// ChainRecord is one link of a hash chain as stored. Payload holds the
// canonical bytes the hash and signature were computed over; it is the
// only representation that ever gets hashed, so verification recomputes
// from it exactly.
type ChainRecord struct {
	ChainID    string
	Position   int64
	Hash       string
	PrevHash   string
	Signature  string
	Algorithm  string
	KeyVersion string
	Payload    []byte
	RecordedAt time.Time
}

// ChainQuery bounds a range read over a chain. Zero times mean unbounded.
type ChainQuery struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// VerificationResult reports the outcome of walking a chain. A broken
// chain is a result, not an error: the record at FirstInvalidPosition and
// everything after it is considered compromised and must be flagged for
// forensic review, never rejected or repaired.
type VerificationResult struct {
	ChainID              string
	Valid                bool
	FirstInvalidPosition *int64
	CheckedCount         int64
	VerifiedAt           time.Time
}

// ExportBundle is a self-verifying handoff of a chain range. BundleHash
// covers the ordered record hashes; Signature covers BundleHash so the
// receiver can prove the bundle was not truncated or reordered.
type ExportBundle struct {
	ChainID     string
	From        time.Time
	To          time.Time
	RecordCount int
	Records     []*ChainRecord
	BundleHash  string
	Signature   string
	Algorithm   string
	KeyVersion  string
	ExportedAt  time.Time
}
