package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicalgenomics/cellophane/pkg/hook"
	"github.com/clinicalgenomics/cellophane/pkg/merge"
	"github.com/clinicalgenomics/cellophane/pkg/runner"
	"github.com/clinicalgenomics/cellophane/pkg/sample"
)

func TestFreezeOrdersAndValidates(t *testing.T) {
	r := New()
	r.Hook(hook.Hook{Label: "a", Fn: func(c *sample.Collection) (*sample.Collection, error) { return c, nil }})
	r.Hook(hook.Hook{Label: "b", Before: []string{"a"}, Fn: func(c *sample.Collection) (*sample.Collection, error) { return c, nil }})
	r.Runner(runner.Metadata{Label: "align"})

	require.NoError(t, r.Freeze())

	hooks := r.Hooks(hook.KindPre)
	require.Len(t, hooks, 2)

	m, ok := r.Lookup("align")
	require.True(t, ok)
	assert.Equal(t, "align", m.Label)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestFreezeRejectsUnknownHookReference(t *testing.T) {
	r := New()
	r.Hook(hook.Hook{Label: "a", Before: []string{"ghost"}})
	assert.Error(t, r.Freeze())
}

func TestRegistrationAfterFreezePanics(t *testing.T) {
	r := New()
	require.NoError(t, r.Freeze())
	assert.Panics(t, func() {
		r.Hook(hook.Hook{Label: "late"})
	})
}

func TestComposeAttributesAppliesDefaultsAndValidators(t *testing.T) {
	r := New()
	r.Mixin(AttributeSchema{Kind: merge.KindSample, Name: "priority", Default: "normal"})
	r.Mixin(AttributeSchema{
		Kind: merge.KindSample,
		Name: "count",
		Validator: func(v any) error {
			if v == nil {
				return errors.New("count is required")
			}
			return nil
		},
	})

	_, err := r.ComposeAttributes(merge.KindSample, nil)
	assert.Error(t, err, "missing required mixin attribute must fail validation")

	out, err := r.ComposeAttributes(merge.KindSample, sample.Attributes{"count": 3})
	require.NoError(t, err)
	assert.Equal(t, "normal", out["priority"])
	assert.Equal(t, 3, out["count"])
}

func TestLoadReportsScanError(t *testing.T) {
	r := New()
	err := r.Load("/nonexistent/plugins/dir")
	assert.Error(t, err)
}
