// Package storage describes where task artifacts and synthesis caches live
// under the storage root, and converts between the relative paths stored on
// results and absolute filesystem paths.
package storage
