package flags

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Source is a read-only key/value lookup. Lookup reports false for absent keys.
type Source interface {
	Lookup(key string) (string, bool)
}

// EnvSource reads the process environment.
type EnvSource struct{}

// Lookup implements Source.
func (EnvSource) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapSource serves values from a private copy of a map.
type MapSource struct {
	values map[string]string
}

// NewMapSource copies values into a MapSource.
func NewMapSource(values map[string]string) MapSource {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return MapSource{values: copied}
}

// Lookup implements Source.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// ReadDotenv loads a .env file into a MapSource.
func ReadDotenv(path string) (MapSource, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return MapSource{}, fmt.Errorf("read env file %s: %w", path, err)
	}
	return MapSource{values: values}, nil
}

type chain []Source

// Chain layers sources; the first source holding a key wins. Nil sources are skipped.
func Chain(sources ...Source) Source {
	layered := make(chain, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			layered = append(layered, s)
		}
	}
	return layered
}

func (c chain) Lookup(key string) (string, bool) {
	for _, s := range c {
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}
