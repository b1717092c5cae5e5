package services

import (
	"sync"

	"mapsmith/models"
)

// DefaultChunkSize is the side length of a chunk in cells
const DefaultChunkSize = 16

// Chunk is a square tile of the map text. X and Y are chunk coordinates;
// edge chunks are cut short where the grid ends.
type Chunk struct {
	X    int      `json:"x"`
	Y    int      `json:"y"`
	Rows []string `json:"rows"`
}

type chunkKey struct{ x, y int }

// ChunkManager cuts the session grid into chunks so clients can fetch the
// area around their viewport instead of the whole map. Cut chunks are cached
// until the grid is replaced or a cell inside them is painted.
type ChunkManager struct {
	size   int
	radius int
	grid   *models.Grid
	cache  map[chunkKey]*Chunk
	mutex  sync.RWMutex
}

// NewChunkManager creates a manager cutting size x size chunks and serving
// radius chunks on every side of the requested one
func NewChunkManager(size, radius int) *ChunkManager {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &ChunkManager{
		size:   size,
		radius: max(radius, 0),
		cache:  make(map[chunkKey]*Chunk),
	}
}

// ChunkSize returns the chunk side length
func (cm *ChunkManager) ChunkSize() int { return cm.size }

// SetGrid replaces the grid and drops every cached chunk
func (cm *ChunkManager) SetGrid(grid *models.Grid) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.grid = grid
	clear(cm.cache)
}

// Invalidate drops the cached chunk holding cell (x, y) after an edit
func (cm *ChunkManager) Invalidate(x, y int) {
	key := cm.keyFor(x, y)
	cm.mutex.Lock()
	delete(cm.cache, key)
	cm.mutex.Unlock()
}

// keyFor maps a cell to its chunk, flooring negative coordinates
func (cm *ChunkManager) keyFor(x, y int) chunkKey {
	return chunkKey{floorDiv(x, cm.size), floorDiv(y, cm.size)}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

// GetChunk returns the chunk holding cell (x, y), or nil outside the grid
func (cm *ChunkManager) GetChunk(x, y int) *Chunk {
	return cm.chunk(cm.keyFor(x, y))
}

func (cm *ChunkManager) chunk(key chunkKey) *Chunk {
	cm.mutex.RLock()
	c, ok := cm.cache[key]
	cm.mutex.RUnlock()
	if ok {
		return c
	}

	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	if c, ok := cm.cache[key]; ok {
		return c
	}
	c = cm.cut(key)
	if c != nil {
		cm.cache[key] = c
	}
	return c
}

// cut copies the chunk out of the grid; callers hold the write lock
func (cm *ChunkManager) cut(key chunkKey) *Chunk {
	if cm.grid == nil {
		return nil
	}
	x0, y0 := key.x*cm.size, key.y*cm.size
	if x0 < 0 || y0 < 0 || x0 >= cm.grid.Width || y0 >= cm.grid.Height {
		return nil
	}

	w := min(cm.size, cm.grid.Width-x0)
	h := min(cm.size, cm.grid.Height-y0)
	rows := make([]string, h)
	line := make([]rune, w)
	for j := range rows {
		for i := range line {
			line[i] = cm.grid.Get(x0+i, y0+j)
		}
		rows[j] = string(line)
	}
	return &Chunk{X: key.x, Y: key.y, Rows: rows}
}

// LoadChunksAround returns the chunks within the radius of the chunk holding
// cell (x, y), row by row, skipping those outside the grid
func (cm *ChunkManager) LoadChunksAround(x, y int) []*Chunk {
	center := cm.keyFor(x, y)

	var out []*Chunk
	for cy := center.y - cm.radius; cy <= center.y+cm.radius; cy++ {
		for cx := center.x - cm.radius; cx <= center.x+cm.radius; cx++ {
			if c := cm.chunk(chunkKey{cx, cy}); c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}
