package engine

import (
	"sync"
	"time"

	"github.com/corvidio/wsconn/closecode"
)

// fakeService records every callback it receives, in order, for
// assertion by tests. Mirrors the corpus's fake.FakeTransport style:
// exported call-tracking fields plus an optional override func.
type fakeService struct {
	mu sync.Mutex

	ConnectedCalls    int
	DisconnectedCalls []closecode.CloseReason
	TextCalls         []string
	BinaryCalls       [][]byte

	OnConnected func(conn *Connection)
}

func (s *fakeService) Connected(conn *Connection) {
	s.mu.Lock()
	s.ConnectedCalls++
	s.mu.Unlock()
	if s.OnConnected != nil {
		s.OnConnected(conn)
	}
}

func (s *fakeService) Disconnected(conn *Connection, reason closecode.CloseReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DisconnectedCalls = append(s.DisconnectedCalls, reason)
}

func (s *fakeService) ReceivedText(conn *Connection, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TextCalls = append(s.TextCalls, text)
}

func (s *fakeService) ReceivedBinary(conn *Connection, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BinaryCalls = append(s.BinaryCalls, append([]byte(nil), data...))
}

func (s *fakeService) disconnectedReasons() []closecode.CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]closecode.CloseReason(nil), s.DisconnectedCalls...)
}

func (s *fakeService) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.TextCalls...)
}

// fakeChannel implements Channel entirely in memory, recording every
// frame written and letting tests flip Writable/Active or inject write
// errors.
type fakeChannel struct {
	mu sync.Mutex

	writable bool
	active   bool

	Written    []*FrameOut
	ClosedMode []CloseMode

	WriteErr error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{writable: true, active: true}
}

func (c *fakeChannel) Writable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writable
}

func (c *fakeChannel) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *fakeChannel) WriteAndFlush(f *FrameOut) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.Written = append(c.Written, f)
	return nil
}

func (c *fakeChannel) Close(mode CloseMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
	c.writable = false
	c.ClosedMode = append(c.ClosedMode, mode)
	return nil
}

func (c *fakeChannel) setWritable(w bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writable = w
}

func (c *fakeChannel) setActive(a bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = a
}

func (c *fakeChannel) written() []*FrameOut {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*FrameOut(nil), c.Written...)
}

// fakeIdleDetector never fires on its own; tests trigger idle cycles
// explicitly by calling fire(), keeping heartbeat tests deterministic
// instead of racing real timers.
type fakeIdleDetector struct {
	mu      sync.Mutex
	onIdle  func()
	stopped bool
}

func (d *fakeIdleDetector) Start(interval time.Duration, onIdle func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onIdle = onIdle
}

func (d *fakeIdleDetector) Touch() {}

func (d *fakeIdleDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
}

func (d *fakeIdleDetector) fire() {
	d.mu.Lock()
	onIdle := d.onIdle
	stopped := d.stopped
	d.mu.Unlock()
	if !stopped && onIdle != nil {
		onIdle()
	}
}

// drain blocks until the Connection's task queue has processed
// everything submitted so far, giving tests a synchronization point
// without sleeping. It relies on Submit/Close being strict FIFO.
func drain(c *Connection) {
	done := make(chan struct{})
	c.tasks.Submit(func() { close(done) })
	<-done
}
