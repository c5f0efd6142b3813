package attendance

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	monthMarker = "_Month_"
	labelSuffix = ": "
)

// Key identifies one attendance figure.
type Key struct {
	Program string `json:"program"`
	Month   int    `json:"month"`
	AgeBand string `json:"age_band"`
}

// Label renders the key as the report label "{code}_Month_{n}_{band}: ".
func (k Key) Label() string {
	return k.Field() + labelSuffix
}

// Field renders the key without the trailing label delimiter.
func (k Key) Field() string {
	return fmt.Sprintf("%s%s%d_%s", k.Program, monthMarker, k.Month, k.AgeBand)
}

// ParseLabel parses a report label, with or without the trailing ": ".
func ParseLabel(label string) (Key, error) {
	s := strings.TrimSuffix(strings.TrimSpace(label), ":")
	i := strings.LastIndex(s, monthMarker)
	if i <= 0 {
		return Key{}, fmt.Errorf("label %q has no month marker", label)
	}
	rest := s[i+len(monthMarker):]
	j := strings.Index(rest, "_")
	if j <= 0 || j == len(rest)-1 {
		return Key{}, fmt.Errorf("label %q has no age band", label)
	}
	month, err := strconv.Atoi(rest[:j])
	if err != nil {
		return Key{}, fmt.Errorf("label %q has a non-numeric month: %w", label, err)
	}
	return Key{Program: s[:i], Month: month, AgeBand: rest[j+1:]}, nil
}

// Values maps attendance keys to figures.
type Values map[Key]float64

// Labels projects the values onto report labels.
func (v Values) Labels() map[string]float64 {
	out := make(map[string]float64, len(v))
	for k, f := range v {
		out[k.Label()] = f
	}
	return out
}

// Total sums every value.
func (v Values) Total() float64 {
	var t float64
	for _, f := range v {
		t += f
	}
	return t
}

// SortedKeys orders keys by program position in order, then month, then age band
// position in AgeBands. Programs missing from order sort after known ones by code.
func (v Values) SortedKeys(order []string) []Key {
	rank := make(map[string]int, len(order))
	for i, c := range order {
		rank[c] = i
	}
	band := make(map[string]int, len(AgeBands))
	for i, b := range AgeBands {
		band[b] = i
	}
	keys := make([]Key, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Program != b.Program {
			ra, oka := rank[a.Program]
			rb, okb := rank[b.Program]
			switch {
			case oka && okb:
				return ra < rb
			case oka != okb:
				return oka
			default:
				return a.Program < b.Program
			}
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		ba, oka := band[a.AgeBand]
		bb, okb := band[b.AgeBand]
		if oka && okb {
			return ba < bb
		}
		if oka != okb {
			return oka
		}
		return a.AgeBand < b.AgeBand
	})
	return keys
}
