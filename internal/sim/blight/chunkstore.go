package blight

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
)

// BlockWorld is the terrain collaborator: single-block reads and writes by
// world coordinate. The engine owns a ChunkStore but tests substitute
// scripted worlds.
type BlockWorld interface {
	GetBlock(pos Vec3i) uint16
	SetBlock(pos Vec3i, b uint16)
}

type ChunkKey struct {
	CX int
	CZ int
}

type Chunk struct {
	CX, CZ int
	Height int
	Blocks []uint16 // len = 16*16*Height

	dirty bool
	hash  [32]byte
}

func (c *Chunk) index(x, y, z int) int {
	// x fastest, then z, then y
	return x + z*16 + y*256
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

type WorldGen struct {
	Seed      int64
	BoundaryR int // blocks
	Height    int

	// Palette ids for the terrain blocks worldgen places.
	Air        uint16
	Dirt       uint16
	Grass      uint16
	Sand       uint16
	Sandstone  uint16
	Gravel     uint16
	Stone      uint16
	Clay       uint16
	LogOak     uint16
	LogPine    uint16
	LeavesOak  uint16
	LeavesPine uint16
}

type ChunkStore struct {
	gen WorldGen
	// Accessed only from the engine loop goroutine.
	chunks map[ChunkKey]*Chunk
}

func NewChunkStore(gen WorldGen) *ChunkStore {
	if gen.Height <= 0 {
		gen.Height = 64
	}
	return &ChunkStore{
		gen:    gen,
		chunks: map[ChunkKey]*Chunk{},
	}
}

func (s *ChunkStore) Height() int { return s.gen.Height }

func (s *ChunkStore) inBounds(pos Vec3i) bool {
	if pos.Y < 0 || pos.Y >= s.gen.Height {
		return false
	}
	if s.gen.BoundaryR > 0 {
		if pos.X < -s.gen.BoundaryR || pos.X > s.gen.BoundaryR || pos.Z < -s.gen.BoundaryR || pos.Z > s.gen.BoundaryR {
			return false
		}
	}
	return true
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

func (s *ChunkStore) ChunkAt(k ChunkKey) (*Chunk, bool) {
	ch, ok := s.chunks[k]
	return ch, ok
}

// ImportChunk installs a restored chunk, replacing whatever worldgen would
// have produced for that key.
func (s *ChunkStore) ImportChunk(cx, cz int, blocks []uint16) {
	ch := &Chunk{CX: cx, CZ: cz, Height: s.gen.Height, Blocks: blocks, dirty: true}
	_ = ch.Digest()
	s.chunks[ChunkKey{CX: cx, CZ: cz}] = ch
}

func (s *ChunkStore) GetBlock(pos Vec3i) uint16 {
	if !s.inBounds(pos) {
		return s.gen.Air
	}
	cx := floorDiv(pos.X, 16)
	cz := floorDiv(pos.Z, 16)
	lx := mod(pos.X, 16)
	lz := mod(pos.Z, 16)
	ch := s.getOrGenChunk(cx, cz)
	return ch.Get(lx, pos.Y, lz)
}

func (s *ChunkStore) SetBlock(pos Vec3i, b uint16) {
	if !s.inBounds(pos) {
		return
	}
	cx := floorDiv(pos.X, 16)
	cz := floorDiv(pos.Z, 16)
	lx := mod(pos.X, 16)
	lz := mod(pos.Z, 16)
	ch := s.getOrGenChunk(cx, cz)
	ch.Set(lx, pos.Y, lz, b)
}

func (s *ChunkStore) getOrGenChunk(cx, cz int) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	if ch, ok := s.chunks[k]; ok {
		return ch
	}
	ch := &Chunk{
		CX:     cx,
		CZ:     cz,
		Height: s.gen.Height,
		Blocks: make([]uint16, 16*16*s.gen.Height),
	}
	s.generateChunk(ch)
	ch.dirty = true
	_ = ch.Digest() // initialize digest
	s.chunks[k] = ch
	return ch
}

// generateChunk builds a deterministic column-height terrain: stone core,
// soil cover, biome-dependent surface, occasional gravel and clay patches,
// sparse trees in forest columns. Just enough landscape to host the
// simulation; no ores, no caves.
func (s *ChunkStore) generateChunk(ch *Chunk) {
	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			wx := ch.CX*16 + x
			wz := ch.CZ*16 + z

			h := s.columnHeight(wx, wz)
			biome := biomeFrom(hash2(s.gen.Seed^0x5eed, wx/48, wz/48))

			for y := 0; y < h-3; y++ {
				ch.Blocks[ch.index(x, y, z)] = s.gen.Stone
			}
			for y := h - 3; y < h; y++ {
				if y < 0 {
					continue
				}
				switch biome {
				case "DESERT":
					if y == h-3 {
						ch.Blocks[ch.index(x, y, z)] = s.gen.Sandstone
					} else {
						ch.Blocks[ch.index(x, y, z)] = s.gen.Sand
					}
				default:
					ch.Blocks[ch.index(x, y, z)] = s.gen.Dirt
				}
			}

			top := h
			if top >= s.gen.Height {
				top = s.gen.Height - 1
			}
			switch biome {
			case "DESERT":
				ch.Blocks[ch.index(x, top, z)] = s.gen.Sand
			default:
				ch.Blocks[ch.index(x, top, z)] = s.gen.Grass
			}

			roll := hash2(s.gen.Seed^0x9ab, wx, wz) % 1000
			switch {
			case roll < 25:
				ch.Blocks[ch.index(x, top, z)] = s.gen.Gravel
			case roll < 40 && h < 12:
				ch.Blocks[ch.index(x, top, z)] = s.gen.Clay
			case roll < 55 && biome == "FOREST":
				s.plantTree(ch, x, top+1, z, hash2(s.gen.Seed^0x7ee, wx, wz))
			}
		}
	}
}

func (s *ChunkStore) columnHeight(wx, wz int) int {
	// Two octaves of hashed noise over coarse cells, bilinear enough for
	// rolling hills without a real noise library.
	coarse := int(hash2(s.gen.Seed, floorDiv(wx, 32), floorDiv(wz, 32)) % 14)
	fine := int(hash2(s.gen.Seed^0x11, floorDiv(wx, 8), floorDiv(wz, 8)) % 6)
	h := 8 + coarse + fine
	if h > s.gen.Height-10 {
		h = s.gen.Height - 10
	}
	return h
}

func (s *ChunkStore) plantTree(ch *Chunk, x, y, z int, noise uint64) {
	log, leaves := s.gen.LogOak, s.gen.LeavesOak
	if noise%2 == 1 {
		log, leaves = s.gen.LogPine, s.gen.LeavesPine
	}
	trunk := 4 + int(noise%2)
	for i := 0; i < trunk && y+i < s.gen.Height; i++ {
		ch.Blocks[ch.index(x, y+i, z)] = log
	}
	// Leaf cap clipped to the chunk; trees near the border come out
	// lopsided, which nobody has ever noticed.
	for dy := trunk - 2; dy <= trunk && y+dy < s.gen.Height; dy++ {
		for dz := -1; dz <= 1; dz++ {
			for dx := -1; dx <= 1; dx++ {
				lx, lz := x+dx, z+dz
				if lx < 0 || lx > 15 || lz < 0 || lz > 15 {
					continue
				}
				i := ch.index(lx, y+dy, lz)
				if ch.Blocks[i] == s.gen.Air {
					ch.Blocks[i] = leaves
				}
			}
		}
	}
}

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

func biomeFrom(noise uint64) string {
	// 3-way split.
	switch noise % 3 {
	case 0:
		return "PLAINS"
	case 1:
		return "FOREST"
	default:
		return "DESERT"
	}
}
