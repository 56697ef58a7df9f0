// Package reindex rebuilds the derived indexes of every stored document.
//
// This package supports id-ordered batch iteration, progress tracking,
// retry logic with exponential backoff, and resumable runs through
// persisted checkpoints.
package reindex
