package provider

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/pthm-cable/gridsoup/renderer"
)

// maxCandidate bounds the numbers the prime calculator draws.
const maxCandidate = 10_000_000

// cacheItem is a cached number and how often it divided a later candidate.
type cacheItem struct {
	value    int
	priority int
}

// divides reports whether the item divides num, raising its priority if so.
func (c *cacheItem) divides(num int) bool {
	if c.value != 0 && num%c.value == 0 {
		c.priority++
		return true
	}
	return false
}

func (c *cacheItem) geneValue() string {
	return fmt.Sprintf("%d%d", c.value, c.priority)
}

// CacheManager keeps a bounded set of numbers, evicting the least useful one.
type CacheManager struct {
	items        []*cacheItem
	size         int
	genomeLength int
	rng          *rand.Rand
}

// NewCacheManager creates a cache of the given size producing genomes of genomeLength digits.
func NewCacheManager(seed int64, size, genomeLength int) *CacheManager {
	return &CacheManager{
		size:         size,
		genomeLength: genomeLength,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// Add offers num to the cache. It is stored only if no cached number divides it.
func (m *CacheManager) Add(num int) bool {
	for _, item := range m.items {
		if item.divides(num) {
			return false
		}
	}
	m.store(num)
	return true
}

func (m *CacheManager) store(num int) {
	item := &cacheItem{value: num}
	if len(m.items) < m.size {
		m.items = append(m.items, item)
		return
	}
	lowest := 0
	for i, it := range m.items {
		if it.priority < m.items[lowest].priority {
			lowest = i
		}
	}
	m.items[lowest] = item
}

// ProduceGenome concatenates value and priority of every item, then
// shuffles the cache for the next call.
func (m *CacheManager) ProduceGenome() string {
	var sb strings.Builder
	for _, item := range m.items {
		sb.WriteString(item.geneValue())
	}
	m.rng.Shuffle(len(m.items), func(i, j int) {
		m.items[i], m.items[j] = m.items[j], m.items[i]
	})
	genome := sb.String()
	if len(genome) > m.genomeLength {
		genome = genome[:m.genomeLength]
	}
	return genome
}

// Len returns the number of cached numbers.
func (m *CacheManager) Len() int { return len(m.items) }

// Clear empties the cache.
func (m *CacheManager) Clear() { m.items = m.items[:0] }

func (m *CacheManager) String() string {
	parts := make([]string, len(m.items))
	for i, item := range m.items {
		parts[i] = fmt.Sprintf("%d(%d)", item.value, item.priority)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Cache grows genome material from a cache of composite numbers: each
// calculation draws a random candidate and offers it to the cache once for
// every divisor it has between 2 and its square root.
type Cache struct {
	rng          *rand.Rand
	manager      *CacheManager
	calculations int
	genome       string
}

// NewCache creates a cache provider running calculations draws per request.
func NewCache(seed int64, cacheSize, calculations, genomeLength int) *Cache {
	return &Cache{
		rng:          rand.New(rand.NewSource(seed)),
		manager:      NewCacheManager(seed, cacheSize, genomeLength),
		calculations: calculations,
	}
}

// RequestNewData runs the configured number of calculations and produces a genome.
func (c *Cache) RequestNewData(ctx context.Context) error {
	for i := 0; i < c.calculations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.calculate()
	}
	c.genome = c.manager.ProduceGenome()
	return nil
}

func (c *Cache) calculate() {
	num := c.rng.Intn(maxCandidate + 1)
	for i := int(math.Sqrt(float64(num))); i > 1; i-- {
		if num%i == 0 {
			c.manager.Add(num)
		}
	}
}

// RawData returns the last produced genome.
func (c *Cache) RawData() (string, error) {
	if c.genome == "" {
		return "", ErrNoData
	}
	return c.genome, nil
}

// PreparedData returns the last produced genome as a color, or black
// before enough material exists.
func (c *Cache) PreparedData() (renderer.RGB, error) {
	if len(c.genome) < 9 {
		return renderer.RGB{}, nil
	}
	return tripleFromDigits(c.genome)
}

// Manager exposes the underlying cache.
func (c *Cache) Manager() *CacheManager { return c.manager }
