// Package resourcehub provides the storage subsystem behind the college
// resource hub: uploaded course files (notes, papers) tagged with subject,
// semester, type and uploader.
//
// It exposes a single Service interface that maps an inbound file plus its
// metadata into durable storage, assigns identity, and resolves that identity
// back to bytes while keeping per-resource download counts. Implementations
// of the metadata Repository (memory, Postgres, MongoDB) and of the BlobStore
// (memory, filesystem, S3) are provided under subpackages.
//
// Storage Layout
//
// Blob bytes live in a BlobStore under a key produced by an
// objectkey.Generator. The key is recorded on the Resource as StoragePath and
// is never exposed to callers. The Repository owns the Resource records and
// is the only place where the download counter is mutated, always through a
// single atomic increment.
package resourcehub
