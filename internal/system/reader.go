// Package system
package system

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/yuca-profiler/yuca/internal/logger"
)

// Paths are the filesystem roots the readers look under.
type Paths struct {
	Proc string
	Sys  string
	Dev  string
}

func DefaultPaths() Paths {
	return Paths{Proc: "/proc", Sys: "/sys", Dev: "/dev"}
}

// RootedPaths places proc, sys and dev under root, for fake trees.
func RootedPaths(root string) Paths {
	return Paths{
		Proc: filepath.Join(root, "proc"),
		Sys:  filepath.Join(root, "sys"),
		Dev:  filepath.Join(root, "dev"),
	}
}

type SystemReader struct {
	paths Paths
	log   logger.Logger
}

func NewReader(paths Paths, log logger.Logger) *SystemReader {
	return &SystemReader{paths: paths, log: log}
}

func (r *SystemReader) Paths() Paths {
	return r.paths
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readInt(path string) (int64, error) {
	raw, err := readTrimmed(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

func readUint(path string) (uint64, error) {
	raw, err := readTrimmed(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

// indexedDirs returns the numeric suffixes of the entries of dir named
// prefix<N>, in ascending order.
func indexedDirs(dir, prefix string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return out, nil
}

// WrapDifference returns second - first, adding modulus once when the counter
// rolled over between the two readings.
func WrapDifference(first, second, modulus float64) float64 {
	d := second - first
	if d < 0 {
		d += modulus
	}
	return d
}
