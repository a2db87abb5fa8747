// Package ir provides the data model shared by every genesis loader package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// data model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types for amounts - numeric values travel as decimal strings
//   - Column order is the single source of truth for DDL and bulk-row order
//   - Primary keys are NFC-normalized and derived without randomness or time
//   - A KeySet is a snapshot; nothing in the loader mutates one after reading it
package ir
