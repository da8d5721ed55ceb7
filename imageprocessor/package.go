// Package imageprocessor provides the hash primitives used to build image
// signatures: decoding, geometric transforms, dHash/pHash/aHash, the
// uniform-color test and Hamming distance over packed hashes.
package imageprocessor
