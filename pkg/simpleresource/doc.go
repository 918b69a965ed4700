// Package simpleresource provides a small resource service for uploaded
// images: a titled binary payload is written to a pluggable blob store and
// described by a record in a pluggable metadata repository.
//
// The Service interface orchestrates creation, lookup and listing of
// resources. Repository implementations (SQLite, Postgres, memory) live
// under repo/, blob store implementations (filesystem, S3, memory) under
// storage/, and the storage key generator under objectkey/.
//
// # Creation Ordering
//
// A resource record is inserted only after its blob has been written.
// When the insert fails the service deletes the blob it just wrote, so a
// record never points at a missing blob and a failed request leaves
// nothing behind.
package simpleresource
