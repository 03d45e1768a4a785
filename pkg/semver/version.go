// Package semver provides the version helpers used to match a plugin
// registration against the host that invokes it.
package semver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "semver:version"

var (
	majorOnlyRegex    = regexp.MustCompile(`^\d+$`)
	exactVersionRegex = regexp.MustCompile(`^\d+\.\d+\.\d+(-[\w.]+)?(\+[\w.]+)?$`)
)

// IsMajorOnly checks if a range is a major-only specifier (e.g., "3").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}

// IsExactVersion checks if a range is an exact version (e.g., "3.2.1").
func IsExactVersion(rangeStr string) bool {
	return exactVersionRegex.MatchString(rangeStr)
}

// ExtractMajorFromRange extracts the major version if the range is major-only.
// Returns -1 if not a major-only range or the major does not fit an int.
func ExtractMajorFromRange(rangeStr string) int {
	if !IsMajorOnly(rangeStr) {
		return -1
	}
	major, err := strconv.Atoi(rangeStr)
	if err != nil {
		return -1
	}
	return major
}

// Major returns the major component of a version string.
func Major(version string) (int, error) {
	sv, err := masterminds.NewVersion(strings.TrimSpace(version))
	if err != nil {
		return 0, fmt.Errorf("%s - invalid version %q: %w", logPrefix, version, err)
	}
	return int(sv.Major()), nil
}

// SatisfiesRange checks if a version string satisfies a range. An empty range
// accepts every valid version; an exact version ("9.1.0") accepts only that
// version. Pre-release tags must match; build metadata is ignored.
func SatisfiesRange(version, rangeStr string) bool {
	sv, err := masterminds.NewVersion(strings.TrimSpace(version))
	if err != nil {
		return false
	}

	rangeStr = strings.TrimSpace(rangeStr)
	if rangeStr == "" {
		return true
	}
	if IsMajorOnly(rangeStr) {
		major := ExtractMajorFromRange(rangeStr)
		return major >= 0 && sv.Major() == uint64(major)
	}
	if IsExactVersion(rangeStr) {
		exact, err := masterminds.NewVersion(rangeStr)
		return err == nil && sv.Equal(exact)
	}

	constraint, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		return false
	}
	return constraint.Check(sv)
}

// ValidateRange reports whether rangeStr is empty, major-only or a valid constraint.
func ValidateRange(rangeStr string) error {
	rangeStr = strings.TrimSpace(rangeStr)
	if rangeStr == "" {
		return nil
	}
	if IsMajorOnly(rangeStr) {
		if ExtractMajorFromRange(rangeStr) < 0 {
			return fmt.Errorf("%s - major %q out of range", logPrefix, rangeStr)
		}
		return nil
	}
	if _, err := masterminds.NewConstraint(rangeStr); err != nil {
		return fmt.Errorf("%s - invalid range %q: %w", logPrefix, rangeStr, err)
	}
	return nil
}
