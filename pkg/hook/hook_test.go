package hook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicalgenomics/cellophane/pkg/sample"
)

func noop(c *sample.Collection) (*sample.Collection, error) { return c, nil }

func TestScheduleRespectsBeforeAfter(t *testing.T) {
	hooks := []Hook{
		{Label: "c", Fn: noop}.WithOrder(0),
		{Label: "a", Fn: noop}.WithOrder(1),
		{Label: "b", Before: []string{"a"}, Fn: noop}.WithOrder(2),
	}

	ordered, err := Schedule(hooks)
	require.NoError(t, err)

	labels := labelsOf(ordered)
	assert.Less(t, indexOf(labels, "b"), indexOf(labels, "a"), "b must run before a")
}

func TestScheduleRegistrationOrderTieBreak(t *testing.T) {
	hooks := []Hook{
		{Label: "second", Fn: noop}.WithOrder(1),
		{Label: "first", Fn: noop}.WithOrder(0),
	}
	ordered, err := Schedule(hooks)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, labelsOf(ordered))
}

func TestScheduleDetectsCycle(t *testing.T) {
	hooks := []Hook{
		{Label: "a", Before: []string{"b"}, Fn: noop}.WithOrder(0),
		{Label: "b", Before: []string{"a"}, Fn: noop}.WithOrder(1),
	}
	_, err := Schedule(hooks)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestScheduleAllSentinel(t *testing.T) {
	hooks := []Hook{
		{Label: "first", Before: []string{All}, Fn: noop}.WithOrder(2),
		{Label: "mid", Fn: noop}.WithOrder(1),
		{Label: "last", After: []string{All}, Fn: noop}.WithOrder(0),
	}
	ordered, err := Schedule(hooks)
	require.NoError(t, err)
	labels := labelsOf(ordered)
	assert.Equal(t, "first", labels[0])
	assert.Equal(t, "last", labels[2])
}

func TestShouldRunConditions(t *testing.T) {
	failedCollection := sample.NewCollection()
	failedSample := sample.New("s1", nil)
	failedSample.Fail("err")
	failedCollection.Add(failedSample)

	completeCollection := sample.NewCollection()
	completeCollection.Add(sample.New("s1", nil))

	always := Hook{Condition: ConditionAlways}
	complete := Hook{Condition: ConditionComplete}
	failed := Hook{Condition: ConditionFailed}

	assert.True(t, always.ShouldRun(failedCollection))
	assert.False(t, complete.ShouldRun(failedCollection))
	assert.True(t, failed.ShouldRun(failedCollection))

	assert.True(t, complete.ShouldRun(completeCollection))
	assert.False(t, failed.ShouldRun(completeCollection))
}

func TestValidateRejectsUnknownReference(t *testing.T) {
	hooks := []Hook{
		{Label: "a", Before: []string{"ghost"}, Fn: noop},
	}
	assert.Error(t, Validate(hooks))
}

func labelsOf(hooks []Hook) []string {
	out := make([]string, len(hooks))
	for i, h := range hooks {
		out[i] = h.Label
	}
	return out
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
