// Package snapshot stores whole-table dataset snapshots.
//
// A snapshot is one Parquet file per dataset kind, addressed by a fixed
// filename. Snapshots are written and read wholesale; there are no partial
// updates.
//
// # Tiers
//
//   - [Dir]: the local snapshot directory (first tier)
//   - [Remote]: a shared snapshot store (second tier), implemented by the
//     hub client, the S3 store, and any [cache.Cache] through [FromCache]
//
// # Encoding
//
// [Encode] and [Decode] convert a slice of tagged structs to and from
// Parquet bytes. A payload that fails to decode is reported with the
// SNAPSHOT_CORRUPT error code.
//
// [cache.Cache]: github.com/matzehuels/shelfmark/pkg/cache.Cache
package snapshot
