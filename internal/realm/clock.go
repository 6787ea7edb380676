package realm

import (
	"container/heap"
	"errors"
	"time"

	"github.com/dop251/goja"
)

// minInterval keeps repeating timers from pinning the virtual clock.
const minInterval = time.Millisecond

type task struct {
	fn   goja.Callable
	args []goja.Value
}

type timer struct {
	task
	id       int64
	due      time.Duration
	seq      uint64
	interval time.Duration
	index    int
}

type timerQueue []*timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*timer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// Clock is a virtual timer queue. Callbacks never run on their own; the owner
// drains them synchronously, so evaluation has no suspension points.
type Clock struct {
	vm     *goja.Runtime
	now    time.Duration
	seq    uint64
	nextID int64
	queue  timerQueue
	active map[int64]*timer
	micro  []task
}

// NewClock creates a clock bound to vm without installing it.
func NewClock(vm *goja.Runtime) *Clock {
	return &Clock{
		vm:     vm,
		active: make(map[int64]*timer),
	}
}

// Install defines the timer functions on the realm's global object.
func (c *Clock) Install() error {
	fns := map[string]func(goja.FunctionCall) goja.Value{
		"setTimeout":          c.setTimeout,
		"setInterval":         c.setInterval,
		"clearTimeout":        c.clear,
		"clearInterval":       c.clear,
		"queueMicrotask":      c.queueMicrotask,
		"requestIdleCallback": c.requestIdleCallback,
	}
	for name, fn := range fns {
		if err := c.vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// Now returns the virtual time elapsed since the clock was created.
func (c *Clock) Now() time.Duration {
	return c.now
}

// Pending returns the number of queued callbacks.
func (c *Clock) Pending() int {
	return len(c.micro) + c.queue.Len()
}

// Drain runs up to budget queued callbacks, microtasks first, then timers in
// due order. Callbacks that throw do not stop the drain; the first error is
// returned. An interrupt does stop it and is returned as is, because the
// engine clears the interrupt once raised and later callbacks would run
// unchecked. Callbacks left over stay queued for the next drain.
func (c *Clock) Drain(budget int) (int, error) {
	ran := 0
	var first error
	for ran < budget {
		t, ok := c.next()
		if !ok {
			break
		}
		ran++
		_, err := t.fn(goja.Undefined(), t.args...)
		if err == nil {
			continue
		}
		var ie *goja.InterruptedError
		if errors.As(err, &ie) {
			return ran, err
		}
		if first == nil {
			first = err
		}
	}
	return ran, first
}

// Reset drops every queued callback.
func (c *Clock) Reset() {
	c.queue = nil
	c.micro = nil
	c.active = make(map[int64]*timer)
}

func (c *Clock) next() (task, bool) {
	if len(c.micro) > 0 {
		t := c.micro[0]
		c.micro[0] = task{}
		c.micro = c.micro[1:]
		return t, true
	}
	if c.queue.Len() == 0 {
		return task{}, false
	}
	t := heap.Pop(&c.queue).(*timer)
	if t.due > c.now {
		c.now = t.due
	}
	if t.interval > 0 {
		c.seq++
		t.due = c.now + t.interval
		t.seq = c.seq
		heap.Push(&c.queue, t)
	} else {
		delete(c.active, t.id)
	}
	return t.task, true
}

func (c *Clock) schedule(call goja.FunctionCall, repeat bool) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(c.vm.NewTypeError("timer callback is not a function"))
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}

	c.nextID++
	c.seq++
	t := &timer{
		task: task{fn: fn, args: args},
		id:   c.nextID,
		due:  c.now + delay,
		seq:  c.seq,
	}
	if repeat {
		t.interval = max(delay, minInterval)
	}
	heap.Push(&c.queue, t)
	c.active[t.id] = t
	return c.vm.ToValue(t.id)
}

func (c *Clock) setTimeout(call goja.FunctionCall) goja.Value {
	return c.schedule(call, false)
}

func (c *Clock) setInterval(call goja.FunctionCall) goja.Value {
	return c.schedule(call, true)
}

func (c *Clock) clear(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	if t, ok := c.active[id]; ok {
		delete(c.active, id)
		if t.index >= 0 {
			heap.Remove(&c.queue, t.index)
		}
	}
	return goja.Undefined()
}

func (c *Clock) queueMicrotask(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(c.vm.NewTypeError("microtask callback is not a function"))
	}
	c.micro = append(c.micro, task{fn: fn})
	return goja.Undefined()
}

func (c *Clock) requestIdleCallback(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(c.vm.NewTypeError("idle callback is not a function"))
	}
	deadline := c.vm.NewObject()
	_ = deadline.Set("didTimeout", false)
	_ = deadline.Set("timeRemaining", func(goja.FunctionCall) goja.Value {
		return c.vm.ToValue(0)
	})

	c.nextID++
	c.seq++
	t := &timer{
		task: task{fn: fn, args: []goja.Value{deadline}},
		id:   c.nextID,
		due:  c.now,
		seq:  c.seq,
	}
	heap.Push(&c.queue, t)
	c.active[t.id] = t
	return c.vm.ToValue(t.id)
}
