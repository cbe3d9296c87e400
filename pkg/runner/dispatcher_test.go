package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicalgenomics/cellophane/pkg/merge"
	"github.com/clinicalgenomics/cellophane/pkg/sample"
)

func TestShardsForNoSplitByReturnsOneShard(t *testing.T) {
	c := sample.NewCollection()
	c.Add(sample.New("a", nil))
	c.Add(sample.New("b", nil))

	shards := shardsFor(Metadata{}, c)
	require.Len(t, shards, 1)
	assert.Equal(t, 2, shards[0].Len())
}

func TestShardsForSplitByFansOut(t *testing.T) {
	c := sample.NewCollection()
	a := sample.New("a", nil)
	a.Attributes.Set("batch", "x")
	b := sample.New("b", nil)
	b.Attributes.Set("batch", "y")
	c.Add(a)
	c.Add(b)

	shards := shardsFor(Metadata{SplitBy: "batch"}, c)
	assert.Len(t, shards, 2)
}

func TestWorkdirForSplitAndUnsplit(t *testing.T) {
	assert.Equal(t, "/root/tag/label", workdirFor("/root", "tag", "label", "shard", false))
	assert.Equal(t, "/root/tag/label/shard", workdirFor("/root", "tag", "label", "shard", true))
}

func TestMarkShardFailedFailsEverySample(t *testing.T) {
	c := sample.NewCollection()
	c.Add(sample.New("a", nil))
	c.Add(sample.New("b", nil))

	markShardFailed(c, assertErr("boom"))
	assert.True(t, c.Samples[0].Failed())
	assert.True(t, c.Samples[1].Failed())
}

func TestMergeShardsMatchesByDispatchIndex(t *testing.T) {
	orig := sample.NewCollection()
	a := sample.New("a", nil)
	a.DispatchIndex = 0
	b := sample.New("b", nil)
	b.DispatchIndex = 1
	orig.Add(a)
	orig.Add(b)
	orig.Attributes = sample.Attributes{"run": "r1"}

	shardA := sample.NewCollection()
	updatedA := a.Clone()
	updatedA.Attributes.Set("status", "ok")
	updatedA.Complete()
	shardA.Add(updatedA)
	shardA.Attributes = sample.Attributes{"run": "r1"}

	shardB := sample.NewCollection()
	updatedB := b.Clone()
	updatedB.Fail("bad input")
	shardB.Add(updatedB)
	shardB.Attributes = sample.Attributes{"run": "r1"}

	merged := mergeShards(orig, []*sample.Collection{shardA, shardB}, merge.New())

	require.Equal(t, 2, merged.Len())
	assert.Equal(t, "ok", merged.Samples[0].Attributes["status"])
	assert.True(t, merged.Samples[0].State() == sample.StateComplete)
	assert.True(t, merged.Samples[1].Failed())
	assert.Equal(t, "r1", merged.Attributes["run"])
}

type assertErrType string

func (e assertErrType) Error() string { return string(e) }

func assertErr(s string) error { return assertErrType(s) }
