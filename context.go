package views

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

// Data is the set of variables a view renders with.
type Data map[string]any

// Merge returns a copy of d overlaid with other. Keys in other win.
func (d Data) Merge(other Data) Data {
	merged := make(Data, len(d)+len(other))
	maps.Copy(merged, d)
	maps.Copy(merged, other)
	return merged
}

// Keys returns the variable names in d, sorted.
func (d Data) Keys() []string {
	return slices.Sorted(maps.Keys(d))
}

// toData converts the values accepted by HTTP adapters and template
// functions into Data. nil stays nil so includes can tell "no data" apart.
func toData(v any) (Data, error) {
	switch data := v.(type) {
	case nil:
		return nil, nil
	case Data:
		return data, nil
	case map[string]any:
		return Data(data), nil
	case gin.H:
		return Data(data), nil
	default:
		return nil, fmt.Errorf("unsupported view data type %T", v)
	}
}

// chain is the list of views whose inheritance is being resolved, child first.
type chain []string

func (c chain) contains(path string) bool {
	return slices.Contains(c, path)
}

func (c chain) with(path string) chain {
	return append(slices.Clip(c), path)
}

func (c chain) String() string {
	return strings.Join(c, " -> ")
}
