package objectkey

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator defines the interface for storage path generation strategies
type Generator interface {
	// GenerateKey creates a storage-unique key for an uploaded file name
	GenerateKey(fileName string) string
}

// TimestampGenerator prefixes the file name with the current Unix time in
// milliseconds: 1718000000000_notes.pdf. Two uploads of the same name in the
// same millisecond collide; prefer UniqueGenerator.
type TimestampGenerator struct {
	Now func() time.Time
}

func NewTimestampGenerator() *TimestampGenerator {
	return &TimestampGenerator{Now: time.Now}
}

func (g *TimestampGenerator) GenerateKey(fileName string) string {
	return fmt.Sprintf("%d_%s", g.now().UnixMilli(), sanitizeFilename(fileName))
}

func (g *TimestampGenerator) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// UniqueGenerator keeps the timestamp prefix for readable ordering and adds
// random bits from a v4 UUID: 1718000000000000000_9f86d081_notes.pdf
type UniqueGenerator struct {
	Now func() time.Time
	// TokenLength is the number of hex characters taken from the UUID (default: 8)
	TokenLength int
}

func NewUniqueGenerator() *UniqueGenerator {
	return &UniqueGenerator{Now: time.Now, TokenLength: 8}
}

func (g *UniqueGenerator) GenerateKey(fileName string) string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	token := randomHex()
	length := g.TokenLength
	if length <= 0 || length > len(token) {
		length = len(token)
	}
	return fmt.Sprintf("%d_%s_%s", now().UnixNano(), token[:length], sanitizeFilename(fileName))
}

// ShardedGenerator provides Git-style sharded storage so no single directory
// grows unbounded: objects/ab/1718000000000000000_cd1234ef..._notes.pdf
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
	Now         func() time.Time
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{ShardLength: 2, Now: time.Now}
}

func (g *ShardedGenerator) GenerateKey(fileName string) string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	token := randomHex()

	shardLength := g.ShardLength
	if shardLength <= 0 {
		shardLength = 2
	}
	if shardLength >= len(token) {
		shardLength = len(token) - 1
	}

	shardDir := token[:shardLength]
	remaining := token[shardLength:]

	return fmt.Sprintf("objects/%s/%d_%s_%s", shardDir, now().UnixNano(), remaining, sanitizeFilename(fileName))
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(fileName string) string
}

func NewCustomFuncGenerator(fn func(fileName string) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(fileName string) string {
	return g.GenerateFunc(fileName)
}

// NewGenerator returns the generator registered under name: "timestamp",
// "unique" or "sharded"
func NewGenerator(name string) (Generator, error) {
	switch strings.ToLower(name) {
	case "", "unique":
		return NewUniqueGenerator(), nil
	case "timestamp":
		return NewTimestampGenerator(), nil
	case "sharded":
		return NewShardedGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown key generator: %s", name)
	}
}

// NewRecommendedGenerator returns the recommended generator for new installations
func NewRecommendedGenerator() Generator {
	return NewUniqueGenerator()
}

func randomHex() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// sanitizeFilename replaces characters that are unsafe in a storage key
func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"\x00", "_",
	)
	cleaned := replacer.Replace(filename)
	if cleaned == "" || strings.Trim(cleaned, ".") == "" {
		return "file"
	}
	return cleaned
}
