package membrane

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/securevm/internal/realm"
)

type fixture struct {
	host  *goja.Runtime
	scope *realm.Scope
	m     *Membrane
	obs   *countingObserver
}

type countingObserver struct {
	wrapped   map[Direction]int
	hits      map[Direction]int
	unbridged map[Direction]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		wrapped:   make(map[Direction]int),
		hits:      make(map[Direction]int),
		unbridged: make(map[Direction]int),
	}
}

func (o *countingObserver) Wrapped(d Direction)   { o.wrapped[d]++ }
func (o *countingObserver) Hit(d Direction)       { o.hits[d]++ }
func (o *countingObserver) Unbridged(d Direction) { o.unbridged[d]++ }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	host := goja.New()
	hostSide, err := realm.NewSide(host)
	require.NoError(t, err)

	r, err := (&realm.GojaFactory{}).NewRealm()
	require.NoError(t, err)
	wl := realm.DefaultWhitelist()
	scope, err := realm.Sanitize(r, wl)
	require.NoError(t, err)

	obs := newCountingObserver()
	m, err := New(hostSide, scope.Side(),
		WithIntrinsics(wl.Filter(realm.IntrinsicNames)...),
		WithObserver(obs))
	require.NoError(t, err)

	return &fixture{host: host, scope: scope, m: m, obs: obs}
}

// bind evaluates src in the host and installs the bridged result in the sandbox.
func (f *fixture) bind(t *testing.T, name, src string) *goja.Object {
	t.Helper()
	v, err := f.host.RunString(src)
	require.NoError(t, err)
	require.NoError(t, f.scope.Define(name, f.m.Inward(v)))
	return v.(*goja.Object)
}

func (f *fixture) eval(t *testing.T, code string) goja.Value {
	t.Helper()
	v, err := f.scope.Evaluate(code)
	require.NoError(t, err)
	return v
}

func (f *fixture) evalString(t *testing.T, code string) string {
	t.Helper()
	return f.eval(t, code).String()
}

func TestIdentityStability(t *testing.T) {
	f := newFixture(t)
	obj := f.host.NewObject()

	first := f.m.Inward(obj)
	second := f.m.Inward(obj)

	assert.Same(t, first.(*goja.Object), second.(*goja.Object))
	assert.NotSame(t, obj, first.(*goja.Object))
	assert.Equal(t, 1, f.obs.wrapped[Inward])
	assert.Equal(t, 1, f.obs.hits[Inward])
	assert.Equal(t, Stats{Inward: 1}, f.m.Stats())
}

func TestRoundTrip(t *testing.T) {
	f := newFixture(t)

	hostObj := f.host.NewObject()
	back := f.m.Outward(f.m.Inward(hostObj))
	assert.Same(t, hostObj, back.(*goja.Object))

	sandboxObj := f.eval(t, "({a: 1})")
	again := f.m.Inward(f.m.Outward(sandboxObj))
	assert.Same(t, sandboxObj.(*goja.Object), again.(*goja.Object))

	assert.Equal(t, Stats{Inward: 1, Outward: 1}, f.m.Stats())
	assert.Equal(t, 1, f.obs.unbridged[Outward])
	assert.Equal(t, 1, f.obs.unbridged[Inward])
}

func TestPrimitivesCrossUnwrapped(t *testing.T) {
	f := newFixture(t)

	values := []goja.Value{
		f.host.ToValue(5),
		f.host.ToValue("text"),
		f.host.ToValue(true),
		goja.Null(),
		goja.Undefined(),
		goja.SymIterator,
	}
	for _, v := range values {
		assert.True(t, v.SameAs(f.m.Inward(v)), v.String())
		assert.True(t, v.SameAs(f.m.Outward(v)), v.String())
	}
	assert.True(t, goja.IsUndefined(f.m.Inward(nil)))
	assert.Equal(t, Stats{}, f.m.Stats())
}

func TestCyclicGraph(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "o", `var o = {name: "o", list: []}; o.self = o; o.list.push(o); o`)

	assert.Equal(t, "true", f.evalString(t, "o.self === o && o.list[0] === o && o.self.self === o"))
	assert.Equal(t, "o", f.evalString(t, "o.self.self.name"))
}

func TestFunctionConstructorSubstitution(t *testing.T) {
	f := newFixture(t)
	_, err := f.host.RunString("var secret = 42")
	require.NoError(t, err)
	f.bind(t, "add", "(function add(a, b) { return a + b })")

	assert.Equal(t, int64(5), f.eval(t, "add(2, 3)").ToInteger())
	assert.Equal(t, "true", f.evalString(t, "add.constructor === Function"))
	assert.Equal(t, "true", f.evalString(t, "Object.getPrototypeOf(add) === Function.prototype"))
	assert.Equal(t, "undefined", f.evalString(t, `add.constructor("return typeof secret")()`))
	assert.Equal(t, "function", f.evalString(t, "typeof add"))
}

func TestEscapeContainment(t *testing.T) {
	f := newFixture(t)
	_, err := f.host.RunString("var hostSecret = 42")
	require.NoError(t, err)

	assert.Equal(t, "undefined",
		f.evalString(t, `typeof (function(){}).constructor("return this")().hostSecret`))

	global := f.eval(t, `(function(){}).constructor("return this")()`)
	assert.NotSame(t, f.host.GlobalObject(), f.m.Outward(global).(*goja.Object))
}

func TestExceptionBridging(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "fail", `(function () { throw new TypeError("boom") })`)

	assert.Equal(t, "true:boom",
		f.evalString(t, `try { fail() } catch (e) { (e instanceof TypeError) + ":" + e.message }`))
}

func TestSandboxExceptionReachesHost(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "run", `(function (cb) { try { cb() } catch (e) { return (e instanceof RangeError) + ":" + e.message } })`)

	assert.Equal(t, "true:inner",
		f.evalString(t, `run(function () { throw new RangeError("inner") })`))
}

func TestMutationContainment(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "target", `var proto = {kind: "proto"}; var target = Object.create(proto); target`)

	assert.Equal(t, "false", f.evalString(t, "Reflect.setPrototypeOf(target, null)"))
	assert.Equal(t, "false", f.evalString(t, "Reflect.preventExtensions(target)"))
	assert.Equal(t, "true", f.evalString(t, "Object.isExtensible(target)"))
	assert.Equal(t, "true", f.evalString(t,
		`try { Object.freeze(target); false } catch (e) { e instanceof TypeError }`))
	assert.Equal(t, "true", f.evalString(t,
		`try { Object.defineProperty(target, "x", {value: 1, configurable: false}); false } catch (e) { e instanceof TypeError }`))
	f.eval(t, `target.__proto__ = {hijacked: true}`)

	v, err := f.host.RunString(`Object.getPrototypeOf(target) === proto && Object.isExtensible(target) && !("x" in target)`)
	require.NoError(t, err)
	assert.True(t, v.ToBoolean())
}

func TestHostMayReparentSandboxObjects(t *testing.T) {
	f := newFixture(t)
	obj := f.eval(t, "var obj = {}; obj")
	require.NoError(t, f.host.Set("obj", f.m.Outward(obj)))

	v, err := f.host.RunString(`Reflect.setPrototypeOf(obj, null)`)
	require.NoError(t, err)
	assert.True(t, v.ToBoolean())
	assert.Equal(t, "true", f.evalString(t, "Object.getPrototypeOf(obj) === null"))

	v, err = f.host.RunString(`Reflect.preventExtensions(obj)`)
	require.NoError(t, err)
	assert.False(t, v.ToBoolean())
}

func TestCallbacksAcrossMembrane(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "call", `(function (cb) { return cb(2) * 10 })`)

	assert.Equal(t, int64(30), f.eval(t, "call(function (x) { return x + 1 })").ToInteger())
}

func TestHaltRefusesSandboxCode(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "call", `(function (cb) { try { return cb() } catch (e) { return e.message } })`)
	fn := f.eval(t, "(function () { return 'ran' })")
	require.NoError(t, f.host.Set("fn", f.m.Outward(fn)))

	f.m.Halt("deadline")
	reason, halted := f.m.Halted()
	require.True(t, halted)
	assert.Equal(t, "deadline", reason)

	_, err := f.host.RunString("fn()")
	assert.ErrorContains(t, err, ErrHalted.Error())
	assert.Contains(t, f.evalString(t, "call(function () { return 'ran' })"), "deadline")

	f.m.Resume()
	_, halted = f.m.Halted()
	assert.False(t, halted)
	v, err := f.host.RunString("fn()")
	require.NoError(t, err)
	assert.Equal(t, "ran", v.String())
}

func TestHostWritesReachSandboxObjects(t *testing.T) {
	f := newFixture(t)
	obj := f.eval(t, "var s = {a: 1}; s")
	require.NoError(t, f.host.Set("s", f.m.Outward(obj)))

	_, err := f.host.RunString(`s.b = {c: s.a + 1}`)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.eval(t, "s.b.c").ToInteger())

	v, err := f.host.RunString(`Object.keys(s).join(",")`)
	require.NoError(t, err)
	assert.Equal(t, "a,b", v.String())
}

func TestAccessorDefinition(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "target", `var target = {}; target`)

	f.eval(t, `
		var getter = function () { return 7 };
		Object.defineProperty(target, "computed", {get: getter, enumerable: true, configurable: true});
	`)
	assert.Equal(t, int64(7), f.eval(t, "target.computed").ToInteger())
	assert.Equal(t, "true", f.evalString(t, `Object.getOwnPropertyDescriptor(target, "computed").get === getter`))

	v, err := f.host.RunString(`target.computed + 1`)
	require.NoError(t, err)
	assert.Equal(t, int64(8), v.ToInteger())
}

func TestDescriptorsReportConfigurable(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "frozen", `Object.freeze({x: 1})`)

	assert.Equal(t, "true:false:1", f.evalString(t, `
		var d = Object.getOwnPropertyDescriptor(frozen, "x");
		d.configurable + ":" + d.writable + ":" + d.value
	`))
	assert.Equal(t, "x", f.evalString(t, `Object.keys(frozen).join(",")`))
}

func TestConstructorWrappers(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "Point", `(function () {
		function Point(x, y) { this.x = x; this.y = y }
		Point.prototype.sum = function () { return this.x + this.y };
		return Point;
	})()`)

	assert.Equal(t, int64(7), f.eval(t, "new Point(3, 4).sum()").ToInteger())
	assert.Equal(t, "true", f.evalString(t, "new Point(1, 1) instanceof Point"))
	assert.Equal(t, "true", f.evalString(t, `"prototype" in Point && Object.keys(Point.prototype).join() === "sum"`))
	assert.Equal(t, "true", f.evalString(t, `Object.getOwnPropertyNames(Point).indexOf("prototype") >= 0`))
}

func TestArraysAndIteration(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "arr", `[1, 2, 3]`)

	assert.Equal(t, int64(3), f.eval(t, "arr.length").ToInteger())
	assert.Equal(t, "1,2,3", f.evalString(t, "[...arr].join()"))
	assert.Equal(t, "2,4,6", f.evalString(t, "arr.map(function (x) { return x * 2 }).join()"))
	assert.Equal(t, "true", f.evalString(t, "Array.isArray(arr)"))
}

func TestNewRejectsSharedRuntime(t *testing.T) {
	vm := goja.New()
	side, err := realm.NewSide(vm)
	require.NoError(t, err)

	_, err = New(side, side)
	assert.Error(t, err)

	_, err = New(nil, side)
	assert.Error(t, err)
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "inward", Inward.String())
	assert.Equal(t, "outward", Outward.String())
	assert.Equal(t, "unknown", Direction(7).String())
}
