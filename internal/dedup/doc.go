// Package dedup contains the data model shared by all restore stages: chunk
// fingerprints, chunks and file markers, segments, containers and the
// interfaces of the recipe store, container store and segmenter
// collaborators.
package dedup
