// Package capability models what the host can do: the capability tree a host
// reports during the handshake, the schema it must satisfy, and the static
// compatibility table used to synthesize a tree for hosts too old to send one.
package capability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Supports is a capability tree. A path is present iff every dotted segment
// exists as a key, level by level. Leaves are empty subtrees.
type Supports map[string]Supports

// UnmarshalJSON decodes a capability tree. Objects nest; any other truthy
// value (true, a non-empty string, a non-zero number, an array) is a leaf.
// null, false, 0 and "" mark the capability as absent.
func (s *Supports) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("capability tree must be an object: %w", err)
	}
	out := make(Supports, len(raw))
	for name, value := range raw {
		child, present, err := decodeNode(value)
		if err != nil {
			return fmt.Errorf("capability %q: %w", name, err)
		}
		if present {
			out[name] = child
		}
	}
	*s = out
	return nil
}

// MarshalJSON encodes leaves as {} so the tree survives a roundtrip.
func (s Supports) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]Supports(s))
}

func decodeNode(value json.RawMessage) (Supports, bool, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return nil, false, nil
	}
	switch trimmed[0] {
	case '{':
		var child Supports
		if err := child.UnmarshalJSON(trimmed); err != nil {
			return nil, false, err
		}
		return child, true, nil
	case 'n', 'f':
		return nil, false, nil
	case '"':
		return Supports{}, string(trimmed) != `""`, nil
	case '[', 't':
		return Supports{}, true, nil
	default:
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, false, err
		}
		return Supports{}, n != 0, nil
	}
}

// Has reports whether path is present. An empty path is never present.
func (s Supports) Has(path string) bool {
	if path == "" {
		return false
	}
	node := s
	for _, segment := range strings.Split(path, ".") {
		child, ok := node[segment]
		if !ok {
			return false
		}
		node = child
	}
	return true
}

// Set creates every segment of path that does not exist yet.
func (s Supports) Set(path string) {
	if path == "" {
		return
	}
	node := s
	for _, segment := range strings.Split(path, ".") {
		child, ok := node[segment]
		if !ok || child == nil {
			child = Supports{}
			node[segment] = child
		}
		node = child
	}
}

// Paths lists every present path, interior and leaf, sorted.
func (s Supports) Paths() []string {
	var paths []string
	var walk func(prefix string, node Supports)
	walk = func(prefix string, node Supports) {
		for name, child := range node {
			path := name
			if prefix != "" {
				path = prefix + "." + name
			}
			paths = append(paths, path)
			walk(path, child)
		}
	}
	walk("", s)
	sort.Strings(paths)
	return paths
}

// Clone returns a deep copy.
func (s Supports) Clone() Supports {
	if s == nil {
		return nil
	}
	out := make(Supports, len(s))
	for name, child := range s {
		out[name] = child.Clone()
	}
	return out
}

// Merge adds every path of other to s.
func (s Supports) Merge(other Supports) {
	for name, child := range other {
		existing, ok := s[name]
		if !ok || existing == nil {
			if child == nil {
				child = Supports{}
			}
			s[name] = child.Clone()
			continue
		}
		existing.Merge(child)
	}
}
