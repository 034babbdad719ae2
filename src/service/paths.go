package service

import (
	"regexp"
	"strings"

	"github.com/danmuck/curator_link/src/protocol"
)

// PathKind selects how GetPath addresses a stored image.
type PathKind string

const (
	ByOrder PathKind = "by-order" // parts: group, index
	ByID    PathKind = "by-id"    // parts: opaque id
)

// DefaultMaxDiff is the similarity cut-off used when none is configured,
// out of 64 bits of phash.
const DefaultMaxDiff = 10

// GetPath returns file://{collection}/{kind}/{parts...} for a stored image,
// or "" when disconnected or when parts do not fit kind.
func (s *Service) GetPath(kind PathKind, parts ...string) string {
	switch kind {
	case ByOrder:
		if len(parts) != 2 {
			return ""
		}
	case ByID:
		if len(parts) != 1 {
			return ""
		}
	default:
		return ""
	}
	for _, p := range parts {
		if p == "" {
			return ""
		}
	}

	collection, ok := s.CollectionPath()
	if !ok {
		return ""
	}
	return "file://" + strings.TrimSuffix(collection, "/") + "/" + string(kind) + "/" + strings.Join(parts, "/")
}

var orderRef = regexp.MustCompile(`(\d+)/(\d+)`)

// ResolveCompareTarget maps a conflict's "other" reference to a stored image
// path: "group/index" addresses by order, anything else by id.
func (s *Service) ResolveCompareTarget(ref string) string {
	if m := orderRef.FindStringSubmatch(ref); m != nil {
		return s.GetPath(ByOrder, m[1], m[2])
	}
	return s.GetPath(ByID, ref)
}

// FilterSimilar keeps the matches strictly closer than maxDiff, in order.
func FilterSimilar(list []protocol.Similar, maxDiff uint32) []protocol.Similar {
	out := make([]protocol.Similar, 0, len(list))
	for _, s := range list {
		if s.Diff < maxDiff {
			out = append(out, s)
		}
	}
	return out
}
