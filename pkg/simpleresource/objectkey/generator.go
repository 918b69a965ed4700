package objectkey

import (
	"fmt"
	"path"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Generator defines the interface for storage key generation strategies
type Generator interface {
	// GenerateKey creates a storage key for an uploaded file name
	GenerateKey(originalName string) string
}

// DefaultName replaces file names that are empty after sanitization
const DefaultName = "unnamed"

// MaxNameBytes caps the sanitized name so keys stay within common
// filesystem and object store limits.
const MaxNameBytes = 200

// TimestampGenerator produces keys of the form <unix-millis>_<name>.
//
// The millisecond component never repeats or decreases for a given
// generator: when the clock has not advanced past the last issued value,
// the last value plus one is used instead.
type TimestampGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewTimestampGenerator returns a generator driven by the wall clock
func NewTimestampGenerator() *TimestampGenerator {
	return NewTimestampGeneratorWithClock(time.Now)
}

// NewTimestampGeneratorWithClock returns a generator driven by now
func NewTimestampGeneratorWithClock(now func() time.Time) *TimestampGenerator {
	return &TimestampGenerator{now: now}
}

func (g *TimestampGenerator) GenerateKey(originalName string) string {
	return fmt.Sprintf("%d_%s", g.nextMillis(), SanitizeFilename(originalName))
}

func (g *TimestampGenerator) nextMillis() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return ms
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(originalName string) string
}

func NewCustomFuncGenerator(fn func(originalName string) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(originalName string) string {
	return g.GenerateFunc(originalName)
}

// SanitizeFilename reduces name to a single safe path component.
// Directory parts are dropped, characters that are unsafe on common
// filesystems become '_', and names that would resolve to the current or
// parent directory become DefaultName. Names longer than MaxNameBytes are
// cut on a rune boundary, keeping the extension.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)

	replacer := strings.NewReplacer(
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	name = replacer.Replace(name)

	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, name)

	name = strings.TrimLeft(name, ".")
	if name == "" || name == "/" {
		return DefaultName
	}
	return truncateName(name, MaxNameBytes)
}

func truncateName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}

	ext := path.Ext(name)
	if len(ext) > limit/2 {
		ext = ""
	}
	stem := name[:len(name)-len(ext)]

	cut := limit - len(ext)
	for cut > 0 && !utf8.RuneStart(stem[cut]) {
		cut--
	}
	return stem[:cut] + ext
}

// NewRecommendedGenerator returns the recommended generator for new installations
func NewRecommendedGenerator() Generator {
	return NewTimestampGenerator()
}
