// doc.go - top level documentation
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

// Package fmph implements a succinct rank/select bit-vector index
// (RankSelect101111) and two fingerprinting-based minimal perfect hash
// functions for large, static key sets:
//
//  1. FMPH - a level-wise fingerprint MPHF in the spirit of the classic
//     "hash, displace, compress" family, tuned for minimal memory
//     footprint at the cost of build-time iteration over stagnant levels.
//  2. FMPHGO - a grouped variant of FMPH that stores one small seed per
//     group of fragments, chosen at build time by trying every candidate
//     seed for the group; its build runs on a single goroutine.
//
// Both MPHFs are generic over any key type via the Hasher[K]
// and KeySet[K] abstractions, and both can be written to and read back
// from a compact binary format (see the Write/Read methods on FMPH and
// FMPHGO).
//
// RankSelect101111 is the rank/select index the two MPHFs build on top
// of internally, and is also exported directly for callers that need a
// general-purpose succinct bit vector with O(1) rank and O(log n) (or
// better, with sampling) select.
//
// The constdb sub-package wires FMPH/FMPHGO into a mmap-backed, single
// file, append-only "constant database" for serving static key/value
// pairs with minimal working-set memory.
package fmph
