package labels

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CopiesInput(t *testing.T) {
	in := map[string]string{"team": "research"}
	s, err := New(in)
	require.NoError(t, err)

	in["team"] = "mutated"
	v, ok := s.Get("team")
	assert.True(t, ok)
	assert.Equal(t, "research", v)
}

func TestNew_RejectsEmptyKey(t *testing.T) {
	_, err := New(map[string]string{"": "x"})
	require.ErrorIs(t, err, ErrEmptyKey)
}

func TestNew_NilMapIsEmptyNotAbsent(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 0, s.Len())
}

func TestSet_MapReturnsCopy(t *testing.T) {
	s := MustNew(map[string]string{"a": "1"})
	m := s.Map()
	m["a"] = "2"
	m["b"] = "3"

	assert.Equal(t, 1, s.Len())
	v, _ := s.Get("a")
	assert.Equal(t, "1", v)
}

func TestSet_NilAccessors(t *testing.T) {
	var s *Set
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Keys())
	assert.Empty(t, s.Map())
	assert.Equal(t, "{}", s.String())
	_, ok := s.Get("a")
	assert.False(t, ok)
}

func TestSet_KeysSorted(t *testing.T) {
	s := MustNew(map[string]string{"zeta": "1", "alpha": "2", "mid": "3"})
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, s.Keys())
	assert.Equal(t, "{alpha=2, mid=3, zeta=1}", s.String())
}

func TestSet_Equal(t *testing.T) {
	a := MustNew(map[string]string{"a": "1", "b": "2"})
	b := MustNew(map[string]string{"b": "2", "a": "1"})
	c := MustNew(map[string]string{"a": "1", "b": "3"})
	d := MustNew(map[string]string{"a": "1"})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
	assert.True(t, Empty().Equal(nil))
}

func TestSet_MarshalJSON(t *testing.T) {
	s := MustNew(map[string]string{"b": "2", "a": "1"})
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"1","b":"2"}`, string(data))
}

func TestParseOrigin(t *testing.T) {
	o, err := ParseOrigin("default")
	require.NoError(t, err)
	assert.Equal(t, Default, o)

	o, err = ParseOrigin(" Override ")
	require.NoError(t, err)
	assert.Equal(t, Override, o)

	_, err = ParseOrigin("runtime")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown layer origin")
}

func TestOrigin_String(t *testing.T) {
	assert.Equal(t, "default", Default.String())
	assert.Equal(t, "override", Override.String())
	assert.Equal(t, "origin(7)", Origin(7).String())
}

func TestMerge_ZeroLayers(t *testing.T) {
	s := Merge()
	require.NotNil(t, s)
	assert.Equal(t, 0, s.Len())
}

func TestMerge_OverrideWins(t *testing.T) {
	got := Merge(
		Layer{Origin: Default, Labels: MustNew(map[string]string{"a": "1", "b": "2"})},
		Layer{Origin: Override, Labels: MustNew(map[string]string{"a": "9"})},
	)
	assert.Equal(t, map[string]string{"a": "9", "b": "2"}, got.Map())
}

func TestMerge_EmptyLayerIsNoOp(t *testing.T) {
	base := Layer{Origin: Default, Labels: MustNew(map[string]string{"team": "research"})}

	got := Merge(base, Layer{Origin: Override, Labels: Empty()})
	assert.Equal(t, map[string]string{"team": "research"}, got.Map())

	got = Merge(base, Layer{Origin: Override})
	assert.Equal(t, map[string]string{"team": "research"}, got.Map())
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	first := MustNew(map[string]string{"a": "1"})
	second := MustNew(map[string]string{"a": "2", "b": "3"})

	_ = Merge(Layer{Labels: first}, Layer{Labels: second})

	assert.Equal(t, map[string]string{"a": "1"}, first.Map())
	assert.Equal(t, map[string]string{"a": "2", "b": "3"}, second.Map())
}

func TestMerge_PassesSpecialCharactersThrough(t *testing.T) {
	in := map[string]string{
		"cost-center":     "ml_research/2024",
		"app.version":     "v1.2.3-beta+build.7",
		"environment":     "staging-us-west-1",
		"owner@team":      "ü ñ 日本",
		"empty-value-key": "",
	}
	got := Merge(Layer{Origin: Override, Labels: MustNew(in)})
	assert.Equal(t, in, got.Map())
}

func TestStack_DefaultsBeforeOverrides(t *testing.T) {
	o1 := Layer{Origin: Override, Labels: MustNew(map[string]string{"team": "prod"})}
	d1 := Layer{Origin: Default, Labels: MustNew(map[string]string{"team": "research", "region": "eu"})}
	o2 := Layer{Origin: Override, Labels: MustNew(map[string]string{"region": "us-west-1"})}
	d2 := Layer{Origin: Default, Labels: MustNew(map[string]string{"tier": "free"})}

	stacked := Stack([]Layer{o1, d1, o2, d2})
	require.Len(t, stacked, 4)
	assert.Same(t, d1.Labels, stacked[0].Labels)
	assert.Same(t, d2.Labels, stacked[1].Labels)
	assert.Same(t, o1.Labels, stacked[2].Labels)
	assert.Same(t, o2.Labels, stacked[3].Labels)

	got := Merge(stacked...)
	assert.Equal(t, map[string]string{"team": "prod", "region": "us-west-1", "tier": "free"}, got.Map())
}

func TestStack_DoesNotReorderInput(t *testing.T) {
	in := []Layer{{Origin: Override}, {Origin: Default}}
	_ = Stack(in)
	assert.Equal(t, Override, in[0].Origin)
	assert.Equal(t, Default, in[1].Origin)
}
