package model

import (
	"regexp"
	"strings"
)

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// NormalizeProjectName canonicalizes a project name per PEP-503: the name is
// lowercased and every maximal run of the characters '-', '_' and '.' is
// collapsed into a single '-'. The function is total and idempotent. Two
// names that normalize identically identify the same project everywhere in
// the system, so every component normalizes names at its boundary and uses
// normalized names as map and cache keys.
func NormalizeProjectName(name string) string {
	return nameSeparators.ReplaceAllString(strings.ToLower(name), "-")
}
