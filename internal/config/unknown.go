package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys lists the valid keys of each section. The empty section holds
// the top-level keys, including the section names themselves. [exports] is
// a free-form map checked by validateExports instead.
var knownKeys = map[string][]string{
	"": {
		"client_secret_file", "destination", "exports", "history",
		"logging", "metrics", "mirror", "network", "token_file",
	},
	"mirror": {
		"dir_permissions", "dry_run", "file_permissions", "force_docs",
		"force_files", "include_trashed", "max_depth", "parallel_downloads",
	},
	"logging": {"log_format", "log_level"},
	"network": {"bandwidth_limit", "timeout", "user_agent"},
	"history": {"enabled", "path"},
	"metrics": {"textfile"},
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key. Keys
// below an unknown table are reported once, at the table.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	for _, key := range md.Undecoded() {
		switch {
		case len(key) == 1:
			errs = append(errs, unknownKeyError("", key[0]))
		case len(key) == 2 && slices.Contains(knownKeys[""], key[0]):
			errs = append(errs, unknownKeyError(key[0], key[1]))
		}
	}

	return errors.Join(errs...)
}

// unknownKeyError describes an unknown key in section, suggesting the
// closest known key when one is near enough.
func unknownKeyError(section, key string) error {
	where := fmt.Sprintf("unknown config key %q", key)
	if section != "" {
		where += fmt.Sprintf(" in [%s]", section)
	}

	if suggestion := closestMatch(key, knownKeys[section]); suggestion != "" {
		return fmt.Errorf("%s, did you mean %q?", where, suggestion)
	}

	return errors.New(where)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
// known must be sorted so ties resolve deterministically.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization: two rows instead of a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
