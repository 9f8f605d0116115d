package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocument(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"a": 1, "b": 2.5, "c": {"d": [1, "x"]}, "e": null}`))
	require.NoError(t, err)
	assert.Equal(t, Document{
		"a": int64(1),
		"b": 2.5,
		"c": map[string]any{"d": []any{int64(1), "x"}},
		"e": nil,
	}, doc)

	for _, bad := range []string{`[1]`, `null`, `{"a": 1} x`, `{`} {
		_, err := DecodeDocument([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestProject(t *testing.T) {
	doc := Document{"a": int64(1), "b": map[string]any{"c": "x", "d": "y"}, "e": true}

	assert.Equal(t, doc, Project(doc, nil))
	assert.Equal(t, Document{"a": int64(1), "b": map[string]any{"c": "x"}}, Project(doc, []string{"a", "b.c", "missing"}))
}

func TestPlanString(t *testing.T) {
	s := ExecutionStats{Plan: []string{"IXSCAN", "FETCH"}}
	assert.Equal(t, "IXSCAN -> FETCH", s.PlanString())
}
