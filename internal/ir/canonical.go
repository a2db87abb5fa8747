package ir

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// KeySeparator joins the parts of a composite key ("address-denom").
const KeySeparator = "-"

// NormalizeKey returns the canonical form of a primary key.
// Keys are NFC normalized so that visually identical identifiers written by
// different tools compare equal against the existing-key snapshot.
func NormalizeKey(key string) string {
	if norm.NFC.IsNormalString(key) {
		return key
	}
	return norm.NFC.String(key)
}

// CompositeKey joins parts with KeySeparator and normalizes the result.
func CompositeKey(parts ...string) string {
	return NormalizeKey(strings.Join(parts, KeySeparator))
}

// NormalizeRow normalizes every non-null value of r in place, so columns
// that repeat a key (balances.account_id) stay equal to the key they reference.
func NormalizeRow(r Row) Row {
	for i, v := range r {
		if v.Valid {
			r[i] = Text(NormalizeKey(v.Str))
		}
	}
	return r
}
