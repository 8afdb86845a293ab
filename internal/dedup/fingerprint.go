package dedup

import (
	"encoding/hex"
	"fmt"

	"github.com/fdl66/chongshan/internal/errors"

	"github.com/zeebo/blake3"
)

// fingerprintSize is the size of a Fingerprint in bytes.
const fingerprintSize = 32

// Fingerprint identifies chunk content.
type Fingerprint [fingerprintSize]byte

// Hash returns the fingerprint of data.
func Hash(data []byte) Fingerprint {
	return blake3.Sum256(data)
}

// ParseFingerprint converts the given hex string to a Fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Fingerprint{}, errors.Wrap(err, "hex.DecodeString")
	}

	if len(b) != fingerprintSize {
		return Fingerprint{}, errors.New("invalid length for fingerprint")
	}

	var fp Fingerprint
	copy(fp[:], b)
	return fp, nil
}

func (fp Fingerprint) String() string {
	return hex.EncodeToString(fp[:])
}

const shortStr = 4

// Str returns the shortened string version of fp.
func (fp *Fingerprint) Str() string {
	if fp == nil {
		return "[nil]"
	}

	if fp.IsNull() {
		return "[null]"
	}

	return hex.EncodeToString(fp[:shortStr])
}

// IsNull returns true iff fp only consists of null bytes.
func (fp Fingerprint) IsNull() bool {
	return fp == Fingerprint{}
}

// ContainerID identifies a container in the container store.
type ContainerID int64

// TemporaryContainerID marks chunks that have not been assigned a container.
const TemporaryContainerID ContainerID = -1

func (id ContainerID) String() string {
	return fmt.Sprintf("%d", int64(id))
}

// Str returns id formatted for log messages.
func (id ContainerID) Str() string {
	return fmt.Sprintf("container %d", int64(id))
}
