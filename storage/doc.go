// Package storage defines the persistence interfaces the pipeline depends on
// and the binary serialization of stored records. The badger subpackage is
// the KV implementation; the sqlite subpackage holds the relational audit-job
// and feedback tables.
package storage
