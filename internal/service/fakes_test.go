package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"temperaturebox/internal/csvlog"
	"temperaturebox/internal/device"
	"temperaturebox/internal/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type linkWrite struct {
	conn  models.Connection
	value float64
}

// fakeLink answers reads with the last written setpoint and a fixed PV.
type fakeLink struct {
	mu       sync.Mutex
	pv       float64
	setpoint map[models.Connection]float64
	readErr  map[models.Connection]error
	writeErr map[models.Connection]error
	panicOn  map[models.Connection]bool
	writes   []linkWrite
	reads    []models.Connection
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		pv:       24.5,
		setpoint: make(map[models.Connection]float64),
		readErr:  make(map[models.Connection]error),
		writeErr: make(map[models.Connection]error),
		panicOn:  make(map[models.Connection]bool),
	}
}

func (f *fakeLink) ReadProcess(ctx context.Context, conn models.Connection) (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn[conn] {
		panic("instrument exploded")
	}
	f.reads = append(f.reads, conn)
	if err := f.readErr[conn]; err != nil {
		return 0, 0, err
	}
	return f.setpoint[conn], f.pv, nil
}

func (f *fakeLink) WriteSetpoint(ctx context.Context, conn models.Connection, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writeErr[conn]; err != nil {
		return err
	}
	f.writes = append(f.writes, linkWrite{conn: conn, value: value})
	f.setpoint[conn] = value
	return nil
}

func (f *fakeLink) failReads(conn models.Connection, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.readErr, conn)
		return
	}
	f.readErr[conn] = err
}

func (f *fakeLink) failWrites(conn models.Connection, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.writeErr, conn)
		return
	}
	f.writeErr[conn] = err
}

func (f *fakeLink) writesTo(conn models.Connection) []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []float64
	for _, w := range f.writes {
		if w.conn == conn {
			out = append(out, w.value)
		}
	}
	return out
}

func (f *fakeLink) readsOf(conn models.Connection) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.reads {
		if c == conn {
			n++
		}
	}
	return n
}

func noResponse(conn models.Connection) error {
	return &device.DeviceError{Kind: device.NoResponse, Port: conn.Port, Address: conn.Address, Op: "read", Err: errors.New("timeout")}
}

// fakeRunLog keeps rows in memory.
type fakeRunLog struct {
	mu        sync.Mutex
	headers   map[string]int
	rows      map[string][]csvlog.Row
	startErr  error
	appendErr error
}

func newFakeRunLog() *fakeRunLog {
	return &fakeRunLog{headers: make(map[string]int), rows: make(map[string][]csvlog.Row)}
}

func (f *fakeRunLog) Start(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return &csvlog.LogError{Path: path, Err: f.startErr}
	}
	f.headers[path]++
	return nil
}

func (f *fakeRunLog) Append(path string, r csvlog.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return &csvlog.LogError{Path: path, Err: f.appendErr}
	}
	f.rows[path] = append(f.rows[path], r)
	return nil
}

func (f *fakeRunLog) rowsOf(path string) []csvlog.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]csvlog.Row(nil), f.rows[path]...)
}

type countingObserver struct {
	mu           sync.Mutex
	deviceErrors map[string]int
	samples      int
	logErrors    int
	ticks        int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{deviceErrors: make(map[string]int)}
}

func (o *countingObserver) DeviceError(box int, kind string) {
	o.mu.Lock()
	o.deviceErrors[kind]++
	o.mu.Unlock()
}

func (o *countingObserver) Sampled(int) {
	o.mu.Lock()
	o.samples++
	o.mu.Unlock()
}

func (o *countingObserver) LogError(int) {
	o.mu.Lock()
	o.logErrors++
	o.mu.Unlock()
}

func (o *countingObserver) BoxStatus(int, models.Status) {}

func (o *countingObserver) TickDuration(time.Duration) {
	o.mu.Lock()
	o.ticks++
	o.mu.Unlock()
}

// harness drives a scheduler synchronously on the test goroutine.
type harness struct {
	s        *Scheduler
	link     *fakeLink
	runlog   *fakeRunLog
	clock    *fakeClock
	observer *countingObserver
	events   Subscription
}

const testSampleInterval = time.Minute

func newHarness(t *testing.T, boxes ...models.Box) *harness {
	t.Helper()
	h := &harness{
		link:     newFakeLink(),
		runlog:   newFakeRunLog(),
		clock:    newFakeClock(),
		observer: newCountingObserver(),
	}
	broker := NewBroker(nil)
	h.events = broker.Subscribe(1024)
	h.s = NewScheduler(boxes, h.link, h.runlog, broker,
		SchedulerConfig{SampleInterval: testSampleInterval, DataDirectory: "data"},
		WithClock(h.clock.Now), WithObserver(h.observer))
	t.Cleanup(broker.Stop)
	return h
}

func (h *harness) do(cmd command) commandResult {
	return h.s.execute(cmd)
}

func (h *harness) tick() {
	h.s.tick(context.Background())
}

func (h *harness) box(i int) *models.Box {
	return &h.s.boxes[i]
}

// drain returns every event published so far.
func (h *harness) drain() []StatusChanged {
	var out []StatusChanged
	for {
		select {
		case ev := <-h.events.Events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func testBox(name string, address int, steps ...models.Step) models.Box {
	for i := range steps {
		steps[i].Index = i + 1
	}
	return models.Box{
		Name:       name,
		Connection: models.Connection{Port: "/dev/ttyUSB0", Address: address},
		Protocol:   steps,
	}
}

func step(temp, hours float64) models.Step {
	return models.Step{Temperature: temp, DurationHours: hours}
}

func typesOf(evs []StatusChanged) []string {
	var out []string
	for _, ev := range evs {
		if ev.Type != "" {
			out = append(out, ev.Type)
		}
	}
	return out
}

func nanValue() float64 { return math.NaN() }

func infValue() float64 { return math.Inf(1) }
