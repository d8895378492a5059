package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a value that matched a SQL injection pattern.
type InjectionCheckResult struct {
	Field       string
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckForInjection runs libinjection over a user-supplied value that ends up
// in generated SQL or search documents, such as a chorus view name.
// Returns nil when the value is clean.
//
//	CheckForInjection("name", "monthly_revenue")          // nil
//	CheckForInjection("name", "x' OR '1'='1")              // Fingerprint "s&sos" (or similar)
func CheckForInjection(field, value string) *InjectionCheckResult {
	if value == "" {
		return nil
	}
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{Field: field, Fingerprint: string(fingerprint)}
}
