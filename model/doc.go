// Package model defines core identity types used throughout eventio.
//
// # Identity Types
//
//   - CollectionID: Store-assigned identifier of a collection (uint32)
//   - ObjectID: Stable (collection, index) pair identifying a record
//   - SchemaVersion: Datamodel schema version number (uint32)
//
// ObjectID is the durable form of a relation: a record that references
// other records stores their ObjectIDs, which can be resolved back to live
// handles through a collection lookup after a storage roundtrip.
package model
