// Package dataset assembles and caches the catalog tables.
//
// Three tables are produced: books, book categories and store locations.
// Each is described by a [Spec] naming its kind, its snapshot filename and
// the origin fetch that builds it. The [Assembler] provides the fetches; the
// tiered [Store] resolves a Spec through the local snapshot directory, the
// shared remote store and finally the origin; the [Manager] memoizes the
// result for the life of the process.
//
// # Lookup order
//
// [Load] checks, in order:
//
//  1. The local snapshot file. If present and decodable it is returned.
//  2. The shared remote store. If the snapshot exists it is downloaded,
//     written locally and returned.
//  3. The origin. The fetched table is written locally and published to the
//     shared store.
//
// Presence alone short-circuits the chain; snapshots are never re-validated.
// Invalidation is external: delete the local file (see [Store.Invalidate])
// or the shared copy.
//
// # Usage
//
//	asm := dataset.NewAssembler(gramedia.NewClient(gramedia.Options{}), dataset.AssemblerOptions{})
//	store := dataset.NewStore(snapshot.NewDir(""), remote, dataset.PublishBestEffort, logger)
//	m := dataset.NewManager(store, asm)
//
//	books, err := m.Books(ctx)
package dataset
