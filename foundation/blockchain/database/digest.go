package database

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Digest represents the raw bytes of a block hash.
type Digest []byte

// Bytes returns the raw digest bytes.
func (d Digest) Bytes() []byte {
	return []byte(d)
}

// Hex returns the 0x prefixed hex encoding of the digest.
func (d Digest) Hex() string {
	return hexutil.Encode(d)
}

// String implements the fmt.Stringer interface.
func (d Digest) String() string {
	return d.Hex()
}

// Equal reports whether the two digests are the same bytes.
func (d Digest) Equal(other Digest) bool {
	return bytes.Equal(d, other)
}

// MarshalText implements the encoding.TextMarshaler interface so a digest
// is represented as a hex string in JSON.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(d)), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (d *Digest) UnmarshalText(text []byte) error {
	b, err := hexutil.Decode(string(text))
	if err != nil {
		return err
	}

	*d = b
	return nil
}

// ToDigest converts a 0x prefixed hex string into a digest.
func ToDigest(hex string) (Digest, error) {
	b, err := hexutil.Decode(hex)
	if err != nil {
		return nil, err
	}

	return b, nil
}

// =============================================================================

// hasher produces block digests. Everything but the nonce is encoded once
// so the mining loop only appends the nonce before each sum.
type hasher struct {
	buf   []byte
	nonce int
	width int
}

func newHasher(b Block) *hasher {
	buf := make([]byte, 0, 8+8+len(b.PrevHash)+5*8+8+len(b.Data)+8)

	buf = binary.BigEndian.AppendUint64(buf, b.Index)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(b.PrevHash)))
	buf = append(buf, b.PrevHash...)

	buf = binary.BigEndian.AppendUint64(buf, uint64(b.Difficulty.HashWidth))
	buf = binary.BigEndian.AppendUint64(buf, uint64(b.Difficulty.BaseTargetBits))
	buf = binary.BigEndian.AppendUint64(buf, uint64(b.Difficulty.Step))
	buf = binary.BigEndian.AppendUint64(buf, uint64(b.Difficulty.Level))
	buf = binary.BigEndian.AppendUint64(buf, uint64(b.Difficulty.NonceWidth))

	buf = binary.BigEndian.AppendUint64(buf, uint64(len(b.Data)))
	buf = append(buf, b.Data...)

	nonce := len(buf)
	buf = binary.BigEndian.AppendUint64(buf, 0)

	return &hasher{
		buf:   buf,
		nonce: nonce,
		width: digestWidth(b.Difficulty),
	}
}

// sum returns the digest of the encoded block with the specified nonce.
func (h *hasher) sum(nonce uint64) Digest {
	binary.BigEndian.PutUint64(h.buf[h.nonce:], nonce)
	sum := sha256.Sum256(h.buf)

	d := make(Digest, h.width)
	copy(d, sum[:h.width])
	return d
}

// digestWidth returns the number of hash bytes kept for the difficulty. An
// unusable width falls back to the full hash so every block has a digest.
func digestWidth(d difficulty.Difficulty) int {
	if d.HashWidth == 0 || d.HashWidth > difficulty.MaxHashWidth {
		return difficulty.MaxHashWidth
	}

	return int(d.HashWidth)
}
