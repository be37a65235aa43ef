package mirror

import (
	"path/filepath"
	"strconv"
	"strings"
	gosync "sync"

	"golang.org/x/text/unicode/norm"
)

// nameReplacer maps path-hostile sequences to filesystem-safe ones. Order
// matters: ": " must be replaced before the bare ":".
var nameReplacer = strings.NewReplacer(
	"/", "-",
	`\`, "-",
	"\x00", "-",
	": ", " ",
	":", " ",
)

// Sanitize turns a remote display name into a single safe path segment.
// Names that would still refer to the directory itself or its parent are
// prefixed with an underscore. Sanitize is idempotent.
func Sanitize(name string) string {
	name = nameReplacer.Replace(norm.NFC.String(name))

	switch name {
	case "":
		return "_"
	case ".", "..":
		return "_" + name
	default:
		return name
	}
}

// Resolution is the outcome of resolving one desired name.
type Resolution struct {
	Name     string // final on-disk name
	Desired  string // sanitized name before disambiguation
	Collided bool   // Name differs from Desired because Desired was taken
}

// NameRegistry records which names have been claimed in each destination
// directory during one run. It only grows. Safe for concurrent use, though
// the walker resolves from a single goroutine to keep the order fixed.
type NameRegistry struct {
	mu      gosync.Mutex
	claimed map[string]map[string]string // dir -> name -> owning item ID
}

// NewNameRegistry returns an empty registry.
func NewNameRegistry() *NameRegistry {
	return &NameRegistry{claimed: make(map[string]map[string]string)}
}

// Resolve maps desired to a name in dir that no other item holds, and claims
// it for itemID. When the sanitized name is taken, "-<itemID>" is inserted
// before the last extension; if that is taken too, a counter follows the ID.
// Resolving the same item again returns the name it already holds.
func (r *NameRegistry) Resolve(dir, desired, itemID string) Resolution {
	dir = filepath.Clean(dir)
	name := Sanitize(desired)

	r.mu.Lock()
	defer r.mu.Unlock()

	names := r.claimed[dir]
	if names == nil {
		names = make(map[string]string)
		r.claimed[dir] = names
	}

	if owner, taken := names[name]; !taken || owner == itemID {
		names[name] = itemID
		return Resolution{Name: name, Desired: name}
	}

	for attempt := 1; ; attempt++ {
		candidate := disambiguate(name, itemID, attempt)

		if owner, taken := names[candidate]; !taken || owner == itemID {
			names[candidate] = itemID
			return Resolution{Name: candidate, Desired: name, Collided: true}
		}
	}
}

// Len returns the number of claimed names across all directories.
func (r *NameRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, names := range r.claimed {
		n += len(names)
	}

	return n
}

// disambiguate inserts "-<itemID>" (and "-<attempt>" after the first
// attempt) before the extension of name.
func disambiguate(name, itemID string, attempt int) string {
	suffix := "-" + Sanitize(itemID)
	if attempt > 1 {
		suffix += "-" + strconv.Itoa(attempt)
	}

	stem, ext := splitExt(name)

	return stem + suffix + ext
}

// splitExt splits name at its last dot. A leading dot alone (".bashrc") is
// part of the stem, not an extension.
func splitExt(name string) (stem, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}

	return name[:i], name[i:]
}
