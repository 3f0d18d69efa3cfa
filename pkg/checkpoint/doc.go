// Package checkpoint saves and restores the progress of a collection run.
//
// A checkpoint holds the continuation cursor, the number of page attempts
// made and every token collected so far, so an interrupted run can pick up
// where it stopped. Files live under the XDG data directory by default
// (~/.local/share/tokenimages/checkpoints on Linux), one per chain and
// contract, and are written atomically.
package checkpoint
