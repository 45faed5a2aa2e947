package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditTimeLayout is the timestamp layout used inside audit log entries.
// It matches the ISO-8601 millisecond form consumers already parse.
const AuditTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func init() {
	// Amounts travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// GenerateUUIDWithSuffix generates a UUID with a given module name as a suffix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New() // Generate a new UUID.
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr) // Append the module as a suffix to the UUID.
	return idWithSuffix
}

// FormatAuditEntry renders a single audit log line as "[timestamp] message".
func FormatAuditEntry(at time.Time, message string) string {
	return fmt.Sprintf("[%s] %s", at.UTC().Format(AuditTimeLayout), message)
}
