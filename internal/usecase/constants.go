package usecase

import (
	"time"

	"github.com/iho/chainledger/internal/domain"
)

const (
	// DefaultAppendRetries bounds the CAS retry loop on chain appends.
	DefaultAppendRetries = 3

	// IdempotencyKeyTTL is how long idempotency keys are cached.
	IdempotencyKeyTTL = 24 * time.Hour

	// BalanceCacheTTL is how long a computed balance view may be served
	// from cache before re-reading the store.
	BalanceCacheTTL = 5 * time.Second
)

// Signing purposes looked up against the key provider. A chain's purpose
// is its chain ID; exports use their own key so bundle signatures can be
// rotated independently of chain signatures.
const (
	PurposeAudit     = domain.ChainAudit
	PurposeFinancial = domain.ChainFinancial
	PurposeExport    = "export"
)
