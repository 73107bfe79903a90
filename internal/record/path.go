package record

import (
	"fmt"
	"strconv"
	"strings"
)

// segment is one step of a field path: a map key, optionally followed by an
// array index ("taxes[2]" -> name "taxes", index 2).
type segment struct {
	name     string
	index    int
	hasIndex bool
}

func parsePath(path string) ([]segment, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty field path")
	}
	parts := strings.Split(path, ".")
	segs := make([]segment, 0, len(parts))
	for _, part := range parts {
		seg := segment{name: part, index: -1}
		if open := strings.IndexByte(part, '['); open >= 0 {
			if !strings.HasSuffix(part, "]") {
				return nil, fmt.Errorf("malformed path segment %q", part)
			}
			idx, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("malformed array index in segment %q", part)
			}
			seg.name = part[:open]
			seg.index = idx
			seg.hasIndex = true
		}
		if seg.name == "" {
			return nil, fmt.Errorf("empty name in path segment %q", part)
		}
		segs = append(segs, seg)
	}
	return segs, nil
}
