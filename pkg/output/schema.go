package output

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"cowsubmit/internal/models"
)

// Keys of the edge classification groups, in output order
var (
	AnteriorKeys  = []string{"L-A1", "Acom", "3rd-A2", "R-A1"}
	PosteriorKeys = []string{"L-Pcom", "L-P1", "R-P1", "R-Pcom"}
)

// BoundingBox is the detection output
type BoundingBox struct {
	// Size is the box extent along x, y and z in voxels
	Size [3]int `json:"size"`

	// Location is the box corner along x, y and z in voxels
	Location [3]int `json:"location"`
}

// Anterior flags the presence of each anterior CoW edge
type Anterior struct {
	LA1     int `json:"L-A1"`
	Acom    int `json:"Acom"`
	ThirdA2 int `json:"3rd-A2"`
	RA1     int `json:"R-A1"`
}

// Posterior flags the presence of each posterior CoW edge
type Posterior struct {
	LPcom int `json:"L-Pcom"`
	LP1   int `json:"L-P1"`
	RP1   int `json:"R-P1"`
	RPcom int `json:"R-Pcom"`
}

// EdgeClassification is the edge classification output
type EdgeClassification struct {
	Anterior  Anterior  `json:"anterior"`
	Posterior Posterior `json:"posterior"`
}

func (a Anterior) count() int  { return a.LA1 + a.Acom + a.ThirdA2 + a.RA1 }
func (p Posterior) count() int { return p.LPcom + p.LP1 + p.RP1 + p.RPcom }

// ValidateBoundingBox checks that prediction holds exactly "size" and
// "location", each a list of three integers.
func ValidateBoundingBox(prediction map[string]any) (BoundingBox, error) {
	var box BoundingBox
	if err := checkKeys(prediction, []string{"size", "location"}, "bounding box"); err != nil {
		return box, err
	}
	var err error
	if box.Size, err = intTriple(prediction["size"], "size"); err != nil {
		return box, err
	}
	if box.Location, err = intTriple(prediction["location"], "location"); err != nil {
		return box, err
	}
	return box, nil
}

// ValidateEdgeClassification checks that prediction holds exactly the
// "anterior" and "posterior" groups with their four keys each, and that
// every flag is the integer 0 or 1.
func ValidateEdgeClassification(prediction map[string]any) (EdgeClassification, error) {
	var edges EdgeClassification
	if err := checkKeys(prediction, []string{"anterior", "posterior"}, "edge classification"); err != nil {
		return edges, err
	}

	ant, err := flags(prediction["anterior"], "anterior", AnteriorKeys)
	if err != nil {
		return edges, err
	}
	post, err := flags(prediction["posterior"], "posterior", PosteriorKeys)
	if err != nil {
		return edges, err
	}

	edges.Anterior = Anterior{LA1: ant[0], Acom: ant[1], ThirdA2: ant[2], RA1: ant[3]}
	edges.Posterior = Posterior{LPcom: post[0], LP1: post[1], RP1: post[2], RPcom: post[3]}
	return edges, nil
}

func flags(v any, group string, keys []string) ([]int, error) {
	m, ok := asObject(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an object, got %T", models.ErrSchemaViolation, group, v)
	}
	if err := checkKeys(m, keys, group); err != nil {
		return nil, err
	}
	out := make([]int, len(keys))
	for i, k := range keys {
		n, ok := asInt(m[k])
		if !ok || (n != 0 && n != 1) {
			return nil, fmt.Errorf("%w: %s %q must be 0 or 1, got %v (%T)",
				models.ErrSchemaViolation, group, k, m[k], m[k])
		}
		out[i] = n
	}
	return out, nil
}

func checkKeys(m map[string]any, want []string, what string) error {
	ok := len(m) == len(want)
	for _, k := range want {
		if _, found := m[k]; !found {
			ok = false
		}
	}
	if ok {
		return nil
	}
	got := make([]string, 0, len(m))
	for k := range m {
		got = append(got, k)
	}
	sort.Strings(got)
	return fmt.Errorf("%w: %s must contain exactly the keys [%s], got [%s]",
		models.ErrSchemaViolation, what, strings.Join(want, ", "), strings.Join(got, ", "))
}

func intTriple(v any, key string) ([3]int, error) {
	var out [3]int
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return out, fmt.Errorf("%w: %s must be a list, got %T", models.ErrSchemaViolation, key, v)
	}
	if rv.Len() != 3 {
		return out, fmt.Errorf("%w: %s must hold 3 integers, got %d values", models.ErrSchemaViolation, key, rv.Len())
	}
	for i := range out {
		elem := rv.Index(i).Interface()
		n, ok := asInt(elem)
		if !ok {
			return out, fmt.Errorf("%w: %s[%d] must be an integer, got %v (%T)",
				models.ErrSchemaViolation, key, i, elem, elem)
		}
		out[i] = n
	}
	return out, nil
}

// asInt accepts Go integer kinds and json.Number in integer notation.
// Booleans and floats are rejected even when they hold an integral value.
func asInt(v any) (int, bool) {
	if n, ok := v.(json.Number); ok {
		i, err := strconv.ParseInt(string(n), 10, strconv.IntSize)
		return int(i), err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < math.MinInt || i > math.MaxInt {
			return 0, false
		}
		return int(i), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt {
			return 0, false
		}
		return int(u), true
	}
	return 0, false
}

func asObject(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return writeAtomic(path, data)
}
