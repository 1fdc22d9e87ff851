package wire

// PageSize is the fixed byte size of every page transferred on a GetPage/
// CommitPage exchange. All segment storage is page-aligned and
// page-multiple.
const PageSize = 4096

// HashSize is the byte size of one accumulator proof element on the wire.
const HashSize = 32

// DefaultMaxChunkBytes bounds how many proof hashes a single GetPageProof/
// CommitPage response chunk carries before the device must issue a
// *Continued request for the rest. The original Ledger transport observed a
// 251-byte content budget per reply envelope (255 minus a 4-byte header);
// this is generalized into a configurable value since a carrier-agnostic
// transport may have a larger or smaller MTU.
const DefaultMaxChunkBytes = 251

// MaxHashesPerChunk returns how many HashSize hashes fit within
// maxChunkBytes, always at least 1 so a proof chunker never stalls.
func MaxHashesPerChunk(maxChunkBytes int) int {
	n := maxChunkBytes / HashSize
	if n < 1 {
		n = 1
	}
	return n
}
