// Package fairness derives game outcomes from committed server seeds.
//
// Everything here is pure: the same server seed, client seed, nonce, game tag
// and configuration always produce the same outcome, so results can be
// recomputed by anyone once the server seed is revealed.
package fairness

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"strconv"
)

const BlockSize = sha256.Size

// Source is the draw interface decoders consume.
type Source interface {
	NextUint32() uint32
	NextFloat01() float64
}

// NextBytes returns block counter of the stream:
// HMAC-SHA256(serverSeed, clientSeed:nonce:gameTag:counter).
func NextBytes(serverSeed []byte, clientSeed string, nonce uint64, tag GameTag, counter uint64) [BlockSize]byte {
	h := hmac.New(sha256.New, serverSeed)
	h.Write(streamMessage(clientSeed, nonce, tag, counter))

	var out [BlockSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

func streamMessage(clientSeed string, nonce uint64, tag GameTag, counter uint64) []byte {
	msg := make([]byte, 0, len(clientSeed)+len(tag)+44)
	msg = append(msg, clientSeed...)
	msg = append(msg, ':')
	msg = strconv.AppendUint(msg, nonce, 10)
	msg = append(msg, ':')
	msg = append(msg, string(tag)...)
	msg = append(msg, ':')
	msg = strconv.AppendUint(msg, counter, 10)
	return msg
}

// Stream is the lazily extended concatenation of NextBytes blocks for
// counter 0, 1, 2, ... It is not safe for concurrent use; each round gets
// its own Stream.
type Stream struct {
	serverSeed []byte
	clientSeed string
	nonce      uint64
	tag        GameTag

	counter uint64
	block   [BlockSize]byte
	pos     int
}

func NewStream(serverSeed []byte, clientSeed string, nonce uint64, tag GameTag) *Stream {
	return NewStreamAt(serverSeed, clientSeed, nonce, tag, 0)
}

// NewStreamAt starts the stream at the first byte of block counter.
func NewStreamAt(serverSeed []byte, clientSeed string, nonce uint64, tag GameTag, counter uint64) *Stream {
	s := &Stream{
		serverSeed: append([]byte(nil), serverSeed...),
		clientSeed: clientSeed,
		nonce:      nonce,
		tag:        tag,
		counter:    counter,
	}
	s.block = NextBytes(s.serverSeed, clientSeed, nonce, tag, counter)
	return s
}

func (s *Stream) nextByte() byte {
	if s.pos == BlockSize {
		s.counter++
		s.block = NextBytes(s.serverSeed, s.clientSeed, s.nonce, s.tag, s.counter)
		s.pos = 0
	}
	b := s.block[s.pos]
	s.pos++
	return b
}

// Read fills p from the stream. It never fails.
func (s *Stream) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = s.nextByte()
	}
	return len(p), nil
}

// NextUint32 reads four bytes as a big-endian integer. The bytes may span
// two blocks.
func (s *Stream) NextUint32() uint32 {
	var b [4]byte
	s.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

// NextFloat01 returns NextUint32 / 2^32, in [0, 1).
func (s *Stream) NextFloat01() float64 {
	return float64(s.NextUint32()) / (1 << 32)
}
