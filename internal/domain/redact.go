package domain

import "strings"

// RedactionMarker replaces the value of any sensitive detail key.
const RedactionMarker = "[REDACTED]"

// sensitiveKeys is the fixed deny list applied to event details before
// hashing. Matching is case-insensitive on normalized key names so that
// "cardNumber", "card_number" and "CARDNUMBER" all redact.
var sensitiveKeys = map[string]bool{
	"password":      true,
	"passphrase":    true,
	"token":         true,
	"secret":        true,
	"key":           true,
	"apikey":        true,
	"privatekey":    true,
	"signingkey":    true,
	"ssn":           true,
	"cardnumber":    true,
	"cvv":           true,
	"pin":           true,
	"accountnumber": true,
	"routingnumber": true,
	"iban":          true,
}

// RedactDetails returns a copy of details with sensitive values replaced
// by the redaction marker. It runs before hashing, so redacted and
// unredacted payloads never both exist in a signed record.
func RedactDetails(details JSON) JSON {
	if details == nil {
		return nil
	}

	out := make(JSON, len(details))
	for k, v := range details {
		if isSensitiveKey(k) {
			out[k] = RedactionMarker
			continue
		}
		out[k] = v
	}

	return out
}

func isSensitiveKey(key string) bool {
	normalized := strings.ToLower(key)
	normalized = strings.NewReplacer("_", "", "-", "", " ", "").Replace(normalized)
	return sensitiveKeys[normalized]
}
