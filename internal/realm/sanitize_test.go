package realm

import (
	"errors"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScope(t *testing.T, wl Whitelist) *Scope {
	t.Helper()
	r, err := (&GojaFactory{Console: true}).NewRealm()
	require.NoError(t, err)
	scope, err := Sanitize(r, wl)
	require.NoError(t, err)
	return scope
}

func evalString(t *testing.T, scope *Scope, code string) string {
	t.Helper()
	v, err := scope.Evaluate(code)
	require.NoError(t, err)
	return v.String()
}

func TestSanitizeDefaultWhitelist(t *testing.T) {
	scope := newScope(t, DefaultWhitelist())

	tests := []struct {
		code string
		want string
	}{
		{"typeof console", "undefined"},
		{"typeof setTimeout", "function"},
		{"typeof Math", "object"},
		{"typeof Function", "function"},
		{"typeof crypto.randomUUID", "function"},
		{"typeof globalThis", "object"},
		{"1 + 2", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, evalString(t, scope, tt.code))
		})
	}
	assert.Empty(t, scope.Warnings())
}

func TestSanitizeWhitelistFidelity(t *testing.T) {
	r, err := (&GojaFactory{Console: true}).NewRealm()
	require.NoError(t, err)

	before, err := r.Runtime.RunString("Object.getOwnPropertyNames(globalThis)")
	require.NoError(t, err)

	wl := DefaultWhitelist()
	scope, err := Sanitize(r, wl)
	require.NoError(t, err)

	after, err := scope.Evaluate("Object.getOwnPropertyNames(globalThis)")
	require.NoError(t, err)

	remaining := make(map[string]bool)
	for _, name := range after.Export().([]interface{}) {
		remaining[name.(string)] = true
	}
	for _, name := range before.Export().([]interface{}) {
		n := name.(string)
		switch {
		case wl.Has(n):
			assert.True(t, remaining[n], "whitelisted binding %s was removed", n)
		case n == "globalThis":
			assert.True(t, remaining[n], "self pointer was removed")
		default:
			assert.False(t, remaining[n], "binding %s survived sanitization", n)
		}
	}
}

func TestSanitizeStrategies(t *testing.T) {
	vm := goja.New()
	_, err := vm.RunString(`
		globalThis.removable = 1;
		globalThis[Symbol.for("hidden")] = 2;
		Object.defineProperty(globalThis, "pinnedValue", {value: 1, writable: true, configurable: false});
		Object.defineProperty(globalThis, "pinnedObject", {value: {secret: 1}, writable: false, configurable: false});
		Object.defineProperty(globalThis, "pinnedNumber", {value: 7, writable: false, configurable: false});
	`)
	require.NoError(t, err)

	scope, err := Sanitize(New(vm), DefaultWhitelist())
	require.NoError(t, err)

	assert.Equal(t, "undefined", evalString(t, scope, "typeof removable"))
	assert.Equal(t, "true", evalString(t, scope, `globalThis[Symbol.for("hidden")] === undefined`))
	assert.Equal(t, "true", evalString(t, scope, "pinnedValue === undefined"))
	assert.Equal(t, "true", evalString(t, scope,
		"Object.getPrototypeOf(pinnedObject) === null && !Object.isExtensible(pinnedObject)"))

	warnings := scope.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "pinnedNumber", warnings[0].Key)
	assert.Equal(t, "protected primitive binding", warnings[0].Reason)

	report := scope.Report()
	assert.GreaterOrEqual(t, report[StrategyDelete], 2)
	assert.Equal(t, 1, report[StrategyUndefine])
	assert.Equal(t, 1, report[StrategyFreeze])
	assert.Equal(t, 1, report[StrategyFailed])
	assert.Equal(t, 1, report[StrategySelf])
}

func TestSanitizeWhitelistedSymbols(t *testing.T) {
	vm := goja.New()
	kept := goja.NewSymbol("kept")
	dropped := goja.NewSymbol("dropped")
	require.NoError(t, vm.GlobalObject().SetSymbol(kept, 42))
	require.NoError(t, vm.GlobalObject().SetSymbol(dropped, 1))

	wl := DefaultWhitelist().WithSymbols(kept).Without("escape")
	assert.True(t, wl.HasSymbol(kept))
	assert.False(t, wl.HasSymbol(dropped))

	scope, err := Sanitize(New(vm), wl)
	require.NoError(t, err)

	assert.Equal(t, int64(42), scope.Global().GetSymbol(kept).ToInteger())
	assert.True(t, IsNullish(scope.Global().GetSymbol(dropped)))
}

func TestSanitizeKeepsSelfPointer(t *testing.T) {
	scope := newScope(t, DefaultWhitelist())
	assert.Equal(t, "true", evalString(t, scope, "globalThis === this"))
	assert.Equal(t, 1, scope.Report()[StrategySelf])
}

func TestSanitizeWarnsOnProtectedPrimitive(t *testing.T) {
	scope := newScope(t, DefaultWhitelist().Without("NaN"))

	var keys []string
	for _, w := range scope.Warnings() {
		keys = append(keys, w.Key)
	}
	assert.Contains(t, keys, "NaN")
}

func TestSanitizeRealmReuse(t *testing.T) {
	r, err := (&GojaFactory{}).NewRealm()
	require.NoError(t, err)

	_, err = Sanitize(r, DefaultWhitelist())
	require.NoError(t, err)

	_, err = Sanitize(r, DefaultWhitelist())
	assert.ErrorIs(t, err, ErrRealmReused)
}

func TestSanitizeConstructionErrors(t *testing.T) {
	tests := []struct {
		name       string
		realm      func() *Realm
		noFunction bool
	}{
		{
			name:  "nil realm",
			realm: func() *Realm { return nil },
		},
		{
			name: "function missing",
			realm: func() *Realm {
				vm := goja.New()
				_ = vm.Set("Function", goja.Undefined())
				return New(vm)
			},
			noFunction: true,
		},
		{
			name: "function not a constructor",
			realm: func() *Realm {
				vm := goja.New()
				_ = vm.Set("Function", vm.NewObject())
				return New(vm)
			},
			noFunction: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sanitize(tt.realm(), DefaultWhitelist())
			require.Error(t, err)

			var cerr *ConstructionError
			assert.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.noFunction, errors.Is(err, ErrNoFunctionConstructor))
		})
	}
}

func TestScopeDefine(t *testing.T) {
	scope := newScope(t, DefaultWhitelist())
	require.NoError(t, scope.Define("answer", scope.Runtime().ToValue(42)))
	assert.Equal(t, "43", evalString(t, scope, "answer + 1"))
}

func TestScopeEvaluateThrows(t *testing.T) {
	scope := newScope(t, DefaultWhitelist())

	_, err := scope.Evaluate("throw new RangeError('nope')")
	var ex *goja.Exception
	require.True(t, errors.As(err, &ex))
	assert.Contains(t, ex.Value().String(), "nope")

	_, err = scope.Evaluate("this is not javascript")
	assert.Error(t, err)
}
