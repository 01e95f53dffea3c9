// Package eventio is an event-data persistency toolkit for scientific
// datasets: collections of typed records that reference each other and are
// written to, and read back from, columnar storage, tolerating schema
// changes between the writer and the reader of a file.
//
// # Model
//
// User code builds handles (small copyable values sharing a payload),
// appends them to collections, and registers collections with a Store
// under a name. A collection owns the canonical contiguous record buffers;
// relations between records are stored as index ranges into shared target
// columns, so per-record storage stays fixed-width and serializable.
//
// # Storage
//
// Storage backends exchange typed buffer views with collections
// (Buffers on the write path, registered makers on the read path) and are
// otherwise free in how they lay bytes out. Buffers read from a file
// written under an older datamodel version pass through the schema
// evolution registry before a collection is constructed from them.
//
// # Basic usage
//
//	store := eventio.NewStore()
//	hits := datamodel.NewHitCollection()
//	_ = store.Register("hits", hits)
//
//	h := datamodel.NewHitWith(1, 2, 3, 4.2)
//	_ = hits.Append(h)
//
//	_ = store.PrepareForWrite()
//	// hand the store to a backend writer
package eventio
