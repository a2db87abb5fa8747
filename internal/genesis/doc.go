// Package genesis decodes genesis documents and resolves the JSON paths the
// entity extractors read from.
//
// A Document is immutable once decoded. It is shared by reference between
// concurrently running entity pipelines without any locking.
//
// Numbers are decoded with UseNumber so that balances of any size reach the
// database as the exact decimal text found in the file.
package genesis
