// Package storage owns the on-disk layout of finalized artifacts and the
// relocation of pipeline outputs into it.
//
// Finalized artifacts live at content/{fileId}/{VARIANT}.{ext}, derived
// purely from those three values. The tree is append-only per file id: once
// the atomic claim has serialized ownership of an id, no cross-worker
// locking is needed to write under it.
//
// Relocation order matters for catalog consistency: bytes reach their final
// path before any variant row is written, so a variant row never references
// an artifact that does not exist yet.
package storage
