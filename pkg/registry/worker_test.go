package registry

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicalgenomics/cellophane/internal/workerproto"
	"github.com/clinicalgenomics/cellophane/pkg/sample"
)

func TestRunWorkerUnknownRunnerReportsContainedError(t *testing.T) {
	req := workerproto.Request{
		Version:     workerproto.Version,
		RunnerLabel: "missing",
		Workdir:     t.TempDir(),
		Collection:  sample.Collection{Samples: []*sample.Sample{sample.New("s1", nil)}},
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, RunWorker(bytes.NewReader(data), &out))

	var resp workerproto.Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))

	assert.NotEmpty(t, resp.Error)
	require.Len(t, resp.Collection.Samples, 1)
	assert.True(t, resp.Collection.Samples[0].Failed())
}

func TestRunWorkerRejectsMalformedRequest(t *testing.T) {
	var out bytes.Buffer
	err := RunWorker(bytes.NewReader([]byte("not json")), &out)
	assert.Error(t, err)
}
