package config

import (
	"path/filepath"
	"strings"

	"github.com/nkazin/difgo/internal/errs"
)

// CheckDirectories implements spec.md §7's subdirectory-overlap check: it
// compares every pair of roots within and across partitions A/B (partition
// B may be empty, in which case there is only one root and no overlap is
// reported). It flags identical pairs
// regardless of Recurse, and prefix pairs only when Recurse is true.
//
// Returns (true, reason) if an overlapping pair was found.
func (c *Config) CheckDirectories() (bool, string) {
	roots := []string{}
	if c.PartA != "" {
		roots = append(roots, filepath.Clean(c.PartA))
	}
	if c.PartB != "" {
		roots = append(roots, filepath.Clean(c.PartB))
	}
	for i := 0; i < len(roots); i++ {
		for j := i + 1; j < len(roots); j++ {
			if roots[i] == roots[j] {
				return true, "roots are identical: " + roots[i]
			}
			if c.Recurse && (isPrefixPath(roots[i], roots[j]) || isPrefixPath(roots[j], roots[i])) {
				return true, "one root is a subdirectory of the other: " + roots[i] + " / " + roots[j]
			}
		}
	}
	return false, ""
}

// isPrefixPath reports whether child is prefix (a strict subdirectory) of
// parent, comparing path components rather than raw strings so that
// "/a/bb" is not mistaken as a child of "/a/b".
func isPrefixPath(parent, child string) bool {
	if parent == child {
		return false
	}
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	return true
}

// Validate runs CheckDirectories and any other structural validation,
// returning a *errs.ConfigError on failure, per spec.md §7.
func (c *Config) Validate() error {
	if c.PartA == "" {
		return &errs.ConfigError{Field: "partA", Msg: "must not be empty"}
	}
	if c.FirstLoop.ShiftAmount < -7 || c.FirstLoop.ShiftAmount > 7 {
		return &errs.ConfigError{Field: "firstLoop.shiftAmount", Msg: "must be in [-7,7]"}
	}
	if overlap, reason := c.CheckDirectories(); overlap {
		return &errs.ConfigError{Field: "partA/partB", Msg: reason}
	}
	return nil
}
