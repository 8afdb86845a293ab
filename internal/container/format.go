package container

import (
	"encoding/binary"
	"io"

	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// TrailerSize is the size of the fixed-length container trailer.
const TrailerSize = 4 + 8 + 4

// maxMetaSize bounds the metadata section accepted by the decoder.
const maxMetaSize = 16 << 20

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("container: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		MaxArrayElements: 1 << 20,
	}.DecMode()
	if err != nil {
		panic("container: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic("container: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0), zstd.WithDecoderMaxMemory(maxMetaSize*4))
	if err != nil {
		panic("container: zstd decoder initialization failed: " + err.Error())
	}
}

type entry struct {
	_ struct{} `cbor:",toarray"`

	Fingerprint dedup.Fingerprint
	Offset      int64
	Length      int
}

// Trailer is the fixed-size tail of a container file.
type Trailer struct {
	MetaLength uint32
	Checksum   uint64
	EntryCount uint32
}

// MarshalBinary encodes the trailer.
func (t Trailer) MarshalBinary() ([]byte, error) {
	buf := make([]byte, TrailerSize)
	binary.LittleEndian.PutUint32(buf[0:4], t.MetaLength)
	binary.LittleEndian.PutUint64(buf[4:12], t.Checksum)
	binary.LittleEndian.PutUint32(buf[12:16], t.EntryCount)
	return buf, nil
}

// ParseTrailer decodes the last TrailerSize bytes of buf.
func ParseTrailer(buf []byte) (Trailer, error) {
	if len(buf) < TrailerSize {
		return Trailer{}, errors.Errorf("container too short: %d bytes", len(buf))
	}
	buf = buf[len(buf)-TrailerSize:]
	return Trailer{
		MetaLength: binary.LittleEndian.Uint32(buf[0:4]),
		Checksum:   binary.LittleEndian.Uint64(buf[4:12]),
		EntryCount: binary.LittleEndian.Uint32(buf[12:16]),
	}, nil
}

func encodeMeta(entries []dedup.MetaEntry) ([]byte, error) {
	list := make([]entry, 0, len(entries))
	for _, e := range entries {
		list = append(list, entry{Fingerprint: e.Fingerprint, Offset: e.Offset, Length: e.Length})
	}

	raw, err := encMode.Marshal(list)
	if err != nil {
		return nil, errors.Wrap(err, "cbor.Marshal")
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

// DecodeMeta verifies and decodes the metadata section of container id.
func DecodeMeta(id dedup.ContainerID, meta []byte, t Trailer) (*dedup.ContainerMeta, error) {
	if uint32(len(meta)) != t.MetaLength {
		return nil, errors.Errorf("container %d: metadata length %d, trailer says %d", id, len(meta), t.MetaLength)
	}

	if sum := xxhash.Sum64(meta); sum != t.Checksum {
		return nil, errors.Consistency("container %d: metadata checksum mismatch, want %016x, got %016x", id, t.Checksum, sum)
	}

	raw, err := zstdDecoder.DecodeAll(meta, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "container %d: decompress metadata", id)
	}

	var list []entry
	if err := decMode.Unmarshal(raw, &list); err != nil {
		return nil, errors.Wrapf(err, "container %d: decode metadata", id)
	}

	if uint32(len(list)) != t.EntryCount {
		return nil, errors.Consistency("container %d: %d entries, trailer says %d", id, len(list), t.EntryCount)
	}

	entries := make([]dedup.MetaEntry, 0, len(list))
	for _, e := range list {
		if e.Offset < 0 || e.Length < 0 {
			return nil, errors.Consistency("container %d: invalid entry %v at offset %d", id, e.Fingerprint.Str(), e.Offset)
		}
		entries = append(entries, dedup.MetaEntry{Fingerprint: e.Fingerprint, Offset: e.Offset, Length: e.Length})
	}

	return dedup.NewContainerMeta(id, entries), nil
}

// Decode parses a complete container file held in buf. The returned container
// references buf for its data section.
func Decode(id dedup.ContainerID, buf []byte) (*dedup.Container, error) {
	t, err := ParseTrailer(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "container %d", id)
	}

	metaEnd := len(buf) - TrailerSize
	metaStart := metaEnd - int(t.MetaLength)
	if t.MetaLength > maxMetaSize || metaStart < 0 {
		return nil, errors.Consistency("container %d: invalid metadata length %d", id, t.MetaLength)
	}

	meta, err := DecodeMeta(id, buf[metaStart:metaEnd], t)
	if err != nil {
		return nil, err
	}

	data := buf[:metaStart]
	if size := meta.DataSize(); size > int64(len(data)) {
		return nil, errors.Consistency("container %d: entries reference %d bytes, data section has %d", id, size, len(data))
	}

	return &dedup.Container{Meta: meta, Data: data}, nil
}

// ReadTrailer reads the trailer of the container of the given size from rd
// and returns it with the size of the data section.
func ReadTrailer(rd io.ReaderAt, size int64, id dedup.ContainerID) (Trailer, int64, error) {
	if size < TrailerSize {
		return Trailer{}, 0, errors.Consistency("container %d too short: %d bytes", id, size)
	}

	buf := make([]byte, TrailerSize)
	if err := ReadAt(rd, buf, size-TrailerSize); err != nil {
		return Trailer{}, 0, errors.Wrapf(err, "container %d: read trailer", id)
	}

	t, err := ParseTrailer(buf)
	if err != nil {
		return Trailer{}, 0, err
	}

	dataSize := size - TrailerSize - int64(t.MetaLength)
	if t.MetaLength > maxMetaSize || dataSize < 0 {
		return Trailer{}, 0, errors.Consistency("container %d: invalid metadata length %d", id, t.MetaLength)
	}
	return t, dataSize, nil
}

// ReadMeta reads the trailer and metadata of the container of the given size
// from rd.
func ReadMeta(rd io.ReaderAt, size int64, id dedup.ContainerID) (*dedup.ContainerMeta, error) {
	t, dataSize, err := ReadTrailer(rd, size, id)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, t.MetaLength)
	if err := ReadAt(rd, buf, dataSize); err != nil {
		return nil, errors.Wrapf(err, "container %d: read metadata", id)
	}

	meta, err := DecodeMeta(id, buf, t)
	if err != nil {
		return nil, err
	}

	if n := meta.DataSize(); n > dataSize {
		return nil, errors.Consistency("container %d: entries reference %d bytes, data section has %d", id, n, dataSize)
	}
	return meta, nil
}

// ReadAt fills buf from rd at off. A file ending early is reported as a short
// read.
func ReadAt(rd io.ReaderAt, buf []byte, off int64) error {
	n, err := rd.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return errors.Wrapf(io.ErrUnexpectedEOF, "read %d of %d bytes at offset %d", n, len(buf), off)
	}
	return errors.WithStack(err)
}

func xxhashSum(buf []byte) uint64 {
	return xxhash.Sum64(buf)
}
