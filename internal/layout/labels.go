package layout

import (
	"sort"

	"github.com/ironsheep/layout-detect/internal/config"
)

// LabelMap maps backend class indices to region names.
type LabelMap map[int]string

// PubLayNetLabels returns a fresh copy of the PubLayNet label map.
func PubLayNetLabels() LabelMap {
	return LabelMap(config.PubLayNetLabels())
}

// Lookup returns the name for class, if known.
func (m LabelMap) Lookup(class int) (string, bool) {
	name, ok := m[class]
	return name, ok
}

// Clone returns an independent copy of m.
func (m LabelMap) Clone() LabelMap {
	out := make(LabelMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Names lists the label names ordered by class index.
func (m LabelMap) Names() []string {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, m[k])
	}
	return names
}
