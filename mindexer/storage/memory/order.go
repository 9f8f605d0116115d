package memory

import (
	"encoding/json"
	"strings"

	"github.com/mindexer/mindexer/mindexer/collection"
	"github.com/mindexer/mindexer/mindexer/storage"
)

// type brackets in sort order; missing sorts with null
var kindRank = map[storage.ValueKind]int{
	storage.KindNull:   0,
	storage.KindNumber: 1,
	storage.KindString: 2,
	storage.KindObject: 3,
	storage.KindArray:  4,
	storage.KindBool:   5,
}

func rank(v any) int {
	k, err := storage.KindOf(v)
	if err != nil {
		return len(kindRank)
	}
	return kindRank[k]
}

func compareAt(a, b collection.Document, field string) int {
	x, _ := collection.Lookup(a, field)
	y, _ := collection.Lookup(b, field)
	return compare(x, y)
}

func compare(x, y any) int {
	rx, ry := rank(x), rank(y)
	if rx != ry {
		if rx < ry {
			return -1
		}
		return 1
	}
	switch a := x.(type) {
	case nil:
		return 0
	case string:
		return strings.Compare(a, y.(string))
	case bool:
		b := y.(bool)
		switch {
		case a == b:
			return 0
		case !a:
			return -1
		}
		return 1
	}
	if fa, ok := number(x); ok {
		fb, _ := number(y)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	ja, _ := json.Marshal(x)
	jb, _ := json.Marshal(y)
	return strings.Compare(string(ja), string(jb))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case float32:
		return float64(n), true
	}
	return 0, false
}
