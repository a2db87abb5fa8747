package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainDocument = "genesis/document/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentDigest identifies a genesis document by content. Two runs reporting
// the same digest loaded byte-identical documents.
func DocumentDigest(raw []byte) string {
	return hashWithDomain(DomainDocument, raw)
}
