// Package entity defines the logical record types loaded from a genesis
// document and turns a document into ordered candidate rows.
//
// A Definition is plain data plus three pure functions: an optional Explode
// that fans one raw record out into several, a Key rule, and a Row mapper.
// Built-in definitions cover accounts, balances and contracts; more can be
// declared in CUE (see package compiler) without code changes.
//
// Definitions declare dependencies by name. The Registry orders them into
// waves: every definition in a wave depends only on definitions of earlier
// waves, so a wave can be loaded concurrently.
package entity
