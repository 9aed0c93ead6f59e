// File: pool/batch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SampleBatch is the fixed set of take slots a worker owns for its whole
// lifetime. It is allocated once and reused for every take; it is NOT
// thread-safe and avoids mutex in hot-path.

package pool

import "github.com/momentics/hioload-rtt/api"

// SampleBatch is a pre-allocated array of samples and their metadata.
type SampleBatch struct {
	samples []api.Sample
	infos   []api.SampleInfo
}

// NewSampleBatch creates capacity take slots, each with a payload buffer of
// payloadCap bytes reserved up front.
func NewSampleBatch(capacity, payloadCap int) *SampleBatch {
	if capacity < 1 {
		capacity = 1
	}
	b := &SampleBatch{
		samples: make([]api.Sample, capacity),
		infos:   make([]api.SampleInfo, capacity),
	}
	if payloadCap > 0 {
		for i := range b.samples {
			b.samples[i].Payload = make([]byte, 0, payloadCap)
		}
	}
	return b
}

// Samples returns the slot payloads, to be passed to api.Reader.Take.
func (b *SampleBatch) Samples() []api.Sample {
	return b.samples
}

// Infos returns the slot metadata, to be passed to api.Reader.Take.
func (b *SampleBatch) Infos() []api.SampleInfo {
	return b.infos
}

// Get retrieves the slot at idx.
func (b *SampleBatch) Get(idx int) (*api.Sample, *api.SampleInfo) {
	return &b.samples[idx], &b.infos[idx]
}

// Release drops every payload buffer. The batch must not be used afterwards.
func (b *SampleBatch) Release() {
	for i := range b.samples {
		b.samples[i].Payload = nil
	}
	b.samples = nil
	b.infos = nil
}

// NewFilledSample allocates a sample of size bytes filled with fill.
func NewFilledSample(size int, fill byte) *api.Sample {
	s := &api.Sample{Payload: make([]byte, size)}
	for i := range s.Payload {
		s.Payload[i] = fill
	}
	return s
}
