// Package container implements the on-disk format of containers.
//
// A container is laid out as follows:
//
//	Container  == Data || Meta || Trailer
//	Data       == the chunk contents, back to back, in container order
//	Meta       == zstd(CBOR([]Entry))
//	Entry      == [Fingerprint, Offset, Length]
//	Trailer    == MetaLength (uint32) || Checksum (uint64) || EntryCount (uint32)
//
// All integers are little endian. Checksum is the xxhash64 of Meta. The
// trailer is read first; it locates the metadata, which in turn locates every
// chunk in the data section.
package container
