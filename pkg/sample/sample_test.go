package sample

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleLifecycle(t *testing.T) {
	s := New("s1", []string{"a.fastq"})
	assert.Equal(t, StatePending, s.State())

	s.Complete()
	assert.Equal(t, StateComplete, s.State())

	s.Fail("boom")
	assert.True(t, s.Failed())
	assert.Equal(t, "boom", s.FailReason())

	// Once failed, Complete is a no-op (monotonic terminal state).
	s.Complete()
	assert.True(t, s.Failed())
}

func TestSampleRoundTripsJSON(t *testing.T) {
	s := New("s1", []string{"a.fastq", "b.fastq"})
	s.Attributes.Set("group", "cohort-a")
	s.Fail("disk full")

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var out Sample
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, s.ID, out.ID)
	assert.Equal(t, s.Files, out.Files)
	assert.Equal(t, s.Attributes, out.Attributes)
	assert.True(t, out.Failed())
	assert.Equal(t, "disk full", out.FailReason())
}

func TestSampleClone(t *testing.T) {
	s := New("s1", []string{"a.fastq"})
	s.Attributes.Set("k", "v")

	cp := s.Clone()
	cp.Attributes.Set("k", "changed")
	cp.Files[0] = "changed.fastq"

	assert.Equal(t, "v", s.Attributes["k"])
	assert.Equal(t, "a.fastq", s.Files[0])
}

func TestAttributesGetSet(t *testing.T) {
	var a Attributes
	_, ok := a.Get("missing")
	assert.False(t, ok)

	a.Set("x", 1)
	v, ok := a.Get("x")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}
