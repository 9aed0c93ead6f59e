// File: transport/inproc/domain.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package inproc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-rtt/api"
	"github.com/momentics/hioload-rtt/pool"
)

// Domain is a set of named channels shared by the endpoints created from it.
type Domain struct {
	mu        sync.Mutex
	channels  map[string]*channel
	endpoints []interface{ Close() error }
	closed    atomic.Bool

	bufs *pool.SlabPool
	msgs *pool.Recycler[*message]
}

var _ api.Transport = (*Domain)(nil)

// NewDomain creates an empty domain.
func NewDomain() *Domain {
	d := &Domain{
		channels: make(map[string]*channel),
		bufs:     pool.NewSlabPool(0),
	}
	d.msgs = pool.NewRecycler(func() *message { return &message{} }, d.resetMessage)
	return d
}

// CreateWriter implements api.Transport.
func (d *Domain) CreateWriter(name string, qos api.QoS) (api.Writer, error) {
	ch, err := d.channel(name)
	if err != nil {
		return nil, err
	}
	w := &writer{ch: ch, dom: d, qos: qos}
	d.track(w)
	return w, nil
}

// CreateReader implements api.Transport.
func (d *Domain) CreateReader(name string, qos api.QoS) (api.Reader, error) {
	ch, err := d.channel(name)
	if err != nil {
		return nil, err
	}
	r := newReader(ch, d, qos)
	ch.attach(r)
	d.track(r)
	return r, nil
}

// Close closes every endpoint created from this domain.
func (d *Domain) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.mu.Lock()
	eps := d.endpoints
	d.endpoints = nil
	d.mu.Unlock()
	for _, ep := range eps {
		_ = ep.Close()
	}
	d.bufs.Drain()
	return nil
}

// BufferStats exposes payload buffer reuse counters.
func (d *Domain) BufferStats() pool.SlabStats {
	return d.bufs.Stats()
}

// EnvelopeStats exposes message envelope reuse counters.
func (d *Domain) EnvelopeStats() pool.RecyclerStats {
	return d.msgs.Stats()
}

func (d *Domain) channel(name string) (*channel, error) {
	if name == "" {
		return nil, fmt.Errorf("inproc: empty channel name: %w", api.ErrInvalidArgument)
	}
	if d.closed.Load() {
		return nil, api.ErrTransportClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.channels[name]
	if !ok {
		ch = newChannel(name)
		d.channels[name] = ch
	}
	return ch, nil
}

func (d *Domain) track(ep interface{ Close() error }) {
	d.mu.Lock()
	d.endpoints = append(d.endpoints, ep)
	d.mu.Unlock()
}

func (d *Domain) newMessage(payload []byte, ts int64, valid bool, state api.InstanceState) *message {
	m := d.msgs.Get()
	if len(payload) > 0 {
		m.payload = d.bufs.Get(len(payload))
		copy(m.payload, payload)
	}
	m.ts = ts
	m.valid = valid
	m.state = state
	return m
}

func (d *Domain) releaseMessage(m *message) {
	d.msgs.Put(m)
}

// resetMessage returns the payload buffer and clears the envelope.
func (d *Domain) resetMessage(m *message) {
	if m.payload != nil {
		d.bufs.Put(m.payload)
	}
	*m = message{}
}

// message is the envelope queued per reader.
type message struct {
	payload []byte
	ts      int64
	valid   bool
	state   api.InstanceState
}

// channel tracks the readers subscribed to one name.
type channel struct {
	name    string
	mu      sync.Mutex
	readers atomic.Value // []*reader, copy-on-write
}

func newChannel(name string) *channel {
	ch := &channel{name: name}
	ch.readers.Store([]*reader{})
	return ch
}

func (c *channel) attach(r *reader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.readers.Load().([]*reader)
	next := make([]*reader, len(old)+1)
	copy(next, old)
	next[len(old)] = r
	c.readers.Store(next)
}

func (c *channel) detach(r *reader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.readers.Load().([]*reader)
	next := make([]*reader, 0, len(old))
	for _, cur := range old {
		if cur != r {
			next = append(next, cur)
		}
	}
	c.readers.Store(next)
}

func (c *channel) snapshot() []*reader {
	return c.readers.Load().([]*reader)
}
