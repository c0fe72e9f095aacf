package fairness

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSeed = []byte("0123456789abcdef0123456789abcdef")

// scriptedSource replays fixed draws so decoder rules can be pinned down.
type scriptedSource struct {
	draws []uint32
	i     int
}

func (s *scriptedSource) NextUint32() uint32 {
	if s.i >= len(s.draws) {
		return 0
	}
	v := s.draws[s.i]
	s.i++
	return v
}

func (s *scriptedSource) NextFloat01() float64 {
	return float64(s.NextUint32()) / (1 << 32)
}

func TestNextBytesMatchesHMAC(t *testing.T) {
	h := hmac.New(sha256.New, testSeed)
	h.Write([]byte("player-seed:42:dice:3"))
	want := h.Sum(nil)

	got := NextBytes(testSeed, "player-seed", 42, GameDice, 3)
	assert.Equal(t, want, got[:])
}

func TestNextBytesIsDeterministic(t *testing.T) {
	for _, tag := range GameTags {
		a := NextBytes(testSeed, "client", 7, tag, 0)
		b := NextBytes(testSeed, "client", 7, tag, 0)
		assert.Equal(t, a, b, tag)
	}

	assert.NotEqual(t,
		NextBytes(testSeed, "client", 7, GameDice, 0),
		NextBytes(testSeed, "client", 8, GameDice, 0))
	assert.NotEqual(t,
		NextBytes(testSeed, "client", 7, GameDice, 0),
		NextBytes(testSeed, "client", 7, GameLimbo, 0))
}

func TestStreamConcatenatesBlocks(t *testing.T) {
	s := NewStream(testSeed, "client", 1, GamePlinko)

	buf := make([]byte, 2*BlockSize+8)
	n, err := s.Read(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	b0 := NextBytes(testSeed, "client", 1, GamePlinko, 0)
	b1 := NextBytes(testSeed, "client", 1, GamePlinko, 1)
	b2 := NextBytes(testSeed, "client", 1, GamePlinko, 2)
	assert.Equal(t, b0[:], buf[:BlockSize])
	assert.Equal(t, b1[:], buf[BlockSize:2*BlockSize])
	assert.Equal(t, b2[:8], buf[2*BlockSize:])
}

func TestStreamUint32SpansBlocks(t *testing.T) {
	s := NewStream(testSeed, "client", 9, GameMinesweeper)
	skip := make([]byte, BlockSize-2)
	s.Read(skip)

	b0 := NextBytes(testSeed, "client", 9, GameMinesweeper, 0)
	b1 := NextBytes(testSeed, "client", 9, GameMinesweeper, 1)
	want := binary.BigEndian.Uint32([]byte{b0[30], b0[31], b1[0], b1[1]})
	assert.Equal(t, want, s.NextUint32())
}

func TestStreamRestartsAtCounter(t *testing.T) {
	full := NewStream(testSeed, "client", 5, GameBaccarat)
	skip := make([]byte, 3*BlockSize)
	full.Read(skip)

	restarted := NewStreamAt(testSeed, "client", 5, GameBaccarat, 3)
	for i := 0; i < 20; i++ {
		assert.Equal(t, full.NextUint32(), restarted.NextUint32())
	}
}

func TestNextFloat01(t *testing.T) {
	s := NewStream(testSeed, "client", 0, GameLimbo)
	b0 := NextBytes(testSeed, "client", 0, GameLimbo, 0)
	want := float64(binary.BigEndian.Uint32(b0[:4])) / 4294967296.0

	f := s.NextFloat01()
	assert.Equal(t, want, f)
	assert.GreaterOrEqual(t, f, 0.0)
	assert.Less(t, f, 1.0)

	src := &scriptedSource{draws: []uint32{0, 1 << 31, ^uint32(0)}}
	assert.Equal(t, 0.0, src.NextFloat01())
	assert.Equal(t, 0.5, src.NextFloat01())
	assert.Less(t, src.NextFloat01(), 1.0)
}

func TestShuffleIsPermutation(t *testing.T) {
	s := NewStream(testSeed, "client", 3, GameMinesweeper)
	perm := Shuffle(s, 100)

	seen := make(map[int]bool, len(perm))
	for _, v := range perm {
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 100)
		require.False(t, seen[v], "duplicate %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, 100)

	again := Shuffle(NewStream(testSeed, "client", 3, GameMinesweeper), 100)
	assert.Equal(t, perm, again)
}

func TestShuffleFollowsDraws(t *testing.T) {
	target := []int{4, 0, 3}
	src := &scriptedSource{draws: drawsFor(target, 5)}
	perm := Shuffle(src, 5)
	assert.Equal(t, target, perm[:3])
}

// drawsFor returns the draws that make Shuffle(n) start with target.
func drawsFor(target []int, n int) []uint32 {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	draws := make([]uint32, 0, n-1)
	for i, want := range target {
		j := i
		for perm[j] != want {
			j++
		}
		draws = append(draws, uint32(j-i))
		perm[i], perm[j] = perm[j], perm[i]
	}
	for len(draws) < n-1 {
		draws = append(draws, 0)
	}
	return draws
}
