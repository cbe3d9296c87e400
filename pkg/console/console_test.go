package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSampleStatusTableEmpty(t *testing.T) {
	assert.Equal(t, "", RenderSampleStatusTable(nil))
}

func TestRenderSampleStatusTableContainsRows(t *testing.T) {
	out := RenderSampleStatusTable([]SampleStatusRow{
		{ID: "s1", State: "complete", Reason: ""},
		{ID: "s2", State: "failed", Reason: "oom"},
	})
	assert.True(t, strings.Contains(out, "s1"))
	assert.True(t, strings.Contains(out, "s2"))
	assert.True(t, strings.Contains(out, "oom"))
}
