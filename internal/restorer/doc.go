// Package restorer restores backup versions from a recipe store and a
// container store.
//
// A restore runs three stages connected by two bounded channels:
//
//	recipe reader --(recipe queue)--> fetch strategy --(chunk queue)--> files writer
//
// The recipe reader turns the file recipes of a backup version into a stream
// of chunks: a FileStart marker carrying the path, one unresolved reference
// per recipe entry and a FileEnd marker. The fetch strategy resolves the
// references by reading containers and forwards all chunks in recipe order.
// The files writer replays the stream to disk.
//
// Reading containers dominates the cost of a restore, so the strategies differ
// in how they cache and batch container reads:
//
//	lru           caches whole containers, the baseline
//	optimal       evicts the container referenced farthest in the future
//	assembly      fills an assembly area with one read per container
//	pattern       reads only the chunks needed by the current and next segment
//	pattern-plus  like pattern, but fetches and caches whole containers once
//	              most of their chunks are wanted
//
// Every stage owns the chunks it holds; sending a chunk on a channel hands it
// over to the next stage.
package restorer
