package sample

import (
	"encoding/json"

	"github.com/clinicalgenomics/cellophane/pkg/output"
)

// Collection is an ordered sequence of samples plus collection-level
// attributes, its own output set, and the call id used to name workdirs
// when the collection is a split shard (spec.md §3 Entities / Sample
// collection).
type Collection struct {
	Samples    []*Sample  `json:"samples"`
	Attributes Attributes `json:"attributes,omitempty"`

	// CallID tags this collection as a shard; "" for the unsplit root
	// collection.
	CallID string `json:"call_id,omitempty"`

	Outputs output.Set `json:"-"`
}

// NewCollection constructs an empty collection.
func NewCollection() *Collection {
	return &Collection{}
}

// FromSamples constructs a collection over the given samples.
func FromSamples(samples []*Sample) *Collection {
	return &Collection{Samples: samples}
}

// Add appends a sample.
func (c *Collection) Add(s *Sample) { c.Samples = append(c.Samples, s) }

// Len returns the number of samples.
func (c *Collection) Len() int { return len(c.Samples) }

// Clone returns a shallow-structure, deep-sample copy suitable for
// handing to a dispatcher shard.
func (c *Collection) Clone() *Collection {
	cp := &Collection{
		Attributes: c.Attributes.Clone(),
		CallID:     c.CallID,
		Samples:    make([]*Sample, len(c.Samples)),
	}
	for i, s := range c.Samples {
		cp.Samples[i] = s.Clone()
	}
	return cp
}

// AnyFailed reports whether at least one sample in the collection is
// failed, used by the post-hook "failed" condition (spec.md §4.2).
func (c *Collection) AnyFailed() bool {
	for _, s := range c.Samples {
		if s.Failed() {
			return true
		}
	}
	return false
}

// AllComplete reports whether every sample is non-failed, used by the
// post-hook "complete" condition (spec.md §4.2).
func (c *Collection) AllComplete() bool {
	for _, s := range c.Samples {
		if s.Failed() {
			return false
		}
	}
	return true
}

// Split partitions the collection into shards keyed by the value of
// attribute attr on each sample, per spec.md §4.3. Samples whose value is
// absent/nil form the reserved "unknown" bucket. Key order is stable:
// first-seen order of distinct keys, with "unknown" sorted wherever it is
// first encountered (not forced last), matching spec.md's "split-key
// ordering (stable)" dispatch-order requirement.
func (c *Collection) Split(attr string) []*Collection {
	const unknownBucket = "unknown"

	order := []string{}
	buckets := map[string][]*Sample{}

	for i, s := range c.Samples {
		key := unknownBucket
		if v, ok := s.Attributes.Get(attr); ok && v != nil {
			key = stringifyKey(v)
		}
		if _, exists := buckets[key]; !exists {
			order = append(order, key)
		}
		cp := s.Clone()
		cp.DispatchIndex = i
		buckets[key] = append(buckets[key], cp)
	}

	shards := make([]*Collection, 0, len(order))
	for _, key := range order {
		shards = append(shards, &Collection{
			Samples:    buckets[key],
			Attributes: c.Attributes.Clone(),
			CallID:     key,
		})
	}
	return shards
}

func stringifyKey(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
