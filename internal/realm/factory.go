package realm

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// GojaFactory creates realms backed by fresh goja runtimes with the browser-like
// host intrinsics installed (atob, btoa, crypto, location and virtual timers).
type GojaFactory struct {
	// Location is the href exposed as the realm's location. Defaults to about:blank.
	Location string

	// Console installs an ambient console that logs through Logger. The
	// default whitelist strips it; hosts inject their own.
	Console bool

	// Random feeds crypto.getRandomValues and crypto.randomUUID. Defaults to crypto/rand.
	Random io.Reader

	Logger *zap.Logger
}

// NewRealm creates a fresh, unsanitized realm.
func (f *GojaFactory) NewRealm() (*Realm, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	random := f.Random
	if random == nil {
		random = rand.Reader
	}
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	env := &environment{vm: vm, random: random, logger: logger}
	if err := env.install(f.Location, f.Console); err != nil {
		return nil, &ConstructionError{Reason: "install host intrinsics", Err: err}
	}

	clock := NewClock(vm)
	if err := clock.Install(); err != nil {
		return nil, &ConstructionError{Reason: "install timers", Err: err}
	}

	r := New(vm)
	r.clock = clock
	return r, nil
}

// String describes the factory for logs.
func (f *GojaFactory) String() string {
	loc := f.Location
	if loc == "" {
		loc = DefaultLocation
	}
	return fmt.Sprintf("goja(location=%s, console=%t)", loc, f.Console)
}
