// Package docstore persists a single typed document per file, encrypted
// under a password-derived key.
//
// A file holds only a storage.Envelope: XChaCha20-Poly1305 ciphertext of the
// CBOR-encoded document plus an authenticated header carrying the document
// label and a save generation. Saves replace the file atomically.
//
// A Store is owned by one goroutine at a time. Callers that share a Store
// must serialize access themselves.
package docstore
