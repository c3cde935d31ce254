package lua

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var errBadPatternName = errors.New("pattern name must be a plain *.lua file name")

// cleanPatternName rejects anything that is not a bare "*.lua" file name.
func cleanPatternName(name string) (string, error) {
	base := filepath.Base(name)
	if base != name || !strings.HasSuffix(base, ".lua") || base == ".lua" || strings.Contains(base, "..") {
		return "", fmt.Errorf("%w: %q", errBadPatternName, name)
	}
	return base, nil
}

func (e *Engine) patternPath(name string) (string, error) {
	clean, err := cleanPatternName(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(e.patternsDir); os.IsNotExist(err) {
		log.Printf("[Lua] Creating patterns directory: %s", e.patternsDir)
		if err := os.MkdirAll(e.patternsDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create patterns directory: %w", err)
		}
	}
	return filepath.Join(e.patternsDir, clean), nil
}

// GetPatternCode returns the source of a pattern.
func (e *Engine) GetPatternCode(name string) (string, error) {
	path, err := e.patternPath(name)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SavePatternCode creates or replaces a pattern.
func (e *Engine) SavePatternCode(name, code string) error {
	path, err := e.patternPath(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(code), 0644)
}

// DeletePattern removes a pattern.
func (e *Engine) DeletePattern(name string) error {
	path, err := e.patternPath(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// GetPatternList returns the sorted names of all patterns.
func (e *Engine) GetPatternList() ([]string, error) {
	patterns := []string{}
	entries, err := os.ReadDir(e.patternsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return patterns, nil
		}
		return nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".lua" {
			patterns = append(patterns, entry.Name())
		}
	}
	sort.Strings(patterns)
	return patterns, nil
}
