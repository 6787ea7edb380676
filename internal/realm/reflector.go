package realm

import (
	"fmt"
	"strconv"

	"github.com/dop251/goja"
)

// Reflector is the reflective capability set of one realm: the Reflect
// intrinsics captured before untrusted code could replace them.
type Reflector struct {
	vm *goja.Runtime

	get                      goja.Callable
	set                      goja.Callable
	has                      goja.Callable
	deleteProperty           goja.Callable
	ownKeys                  goja.Callable
	getOwnPropertyDescriptor goja.Callable
	defineProperty           goja.Callable
	getPrototypeOf           goja.Callable
	setPrototypeOf           goja.Callable
	isExtensible             goja.Callable
	preventExtensions        goja.Callable
	isArray                  goja.Callable
}

// NewReflector captures the Reflect functions of vm.
func NewReflector(vm *goja.Runtime) (*Reflector, error) {
	reflectObj, ok := vm.Get("Reflect").(*goja.Object)
	if !ok || reflectObj == nil {
		return nil, fmt.Errorf("realm: Reflect is not available")
	}
	arrayObj, ok := vm.Get("Array").(*goja.Object)
	if !ok || arrayObj == nil {
		return nil, fmt.Errorf("realm: Array is not available")
	}

	r := &Reflector{vm: vm}
	fns := []struct {
		owner *goja.Object
		name  string
		dst   *goja.Callable
	}{
		{reflectObj, "get", &r.get},
		{reflectObj, "set", &r.set},
		{reflectObj, "has", &r.has},
		{reflectObj, "deleteProperty", &r.deleteProperty},
		{reflectObj, "ownKeys", &r.ownKeys},
		{reflectObj, "getOwnPropertyDescriptor", &r.getOwnPropertyDescriptor},
		{reflectObj, "defineProperty", &r.defineProperty},
		{reflectObj, "getPrototypeOf", &r.getPrototypeOf},
		{reflectObj, "setPrototypeOf", &r.setPrototypeOf},
		{reflectObj, "isExtensible", &r.isExtensible},
		{reflectObj, "preventExtensions", &r.preventExtensions},
		{arrayObj, "isArray", &r.isArray},
	}
	for _, fn := range fns {
		call, ok := goja.AssertFunction(fn.owner.Get(fn.name))
		if !ok {
			return nil, fmt.Errorf("realm: intrinsic %s is not callable", fn.name)
		}
		*fn.dst = call
	}
	return r, nil
}

// Runtime returns the realm the reflector operates on.
func (r *Reflector) Runtime() *goja.Runtime {
	return r.vm
}

// Get performs Reflect.get.
func (r *Reflector) Get(obj *goja.Object, key goja.Value) (goja.Value, error) {
	return r.get(goja.Undefined(), obj, key)
}

// Set performs Reflect.set.
func (r *Reflector) Set(obj *goja.Object, key, value goja.Value) (bool, error) {
	return r.boolean(r.set(goja.Undefined(), obj, key, orUndefined(value)))
}

// Has performs Reflect.has.
func (r *Reflector) Has(obj *goja.Object, key goja.Value) (bool, error) {
	return r.boolean(r.has(goja.Undefined(), obj, key))
}

// Delete performs Reflect.deleteProperty.
func (r *Reflector) Delete(obj *goja.Object, key goja.Value) (bool, error) {
	return r.boolean(r.deleteProperty(goja.Undefined(), obj, key))
}

// OwnKeys performs Reflect.ownKeys. Keys are strings or symbols.
func (r *Reflector) OwnKeys(obj *goja.Object) ([]goja.Value, error) {
	res, err := r.ownKeys(goja.Undefined(), obj)
	if err != nil {
		return nil, err
	}
	arr := res.ToObject(r.vm)
	n := arr.Get("length").ToInteger()
	keys := make([]goja.Value, 0, n)
	for i := int64(0); i < n; i++ {
		keys = append(keys, arr.Get(strconv.FormatInt(i, 10)))
	}
	return keys, nil
}

// GetOwnPropertyDescriptor performs Reflect.getOwnPropertyDescriptor.
// A nil descriptor means the property does not exist.
func (r *Reflector) GetOwnPropertyDescriptor(obj *goja.Object, key goja.Value) (*goja.Object, error) {
	res, err := r.getOwnPropertyDescriptor(goja.Undefined(), obj, key)
	if err != nil {
		return nil, err
	}
	desc, _ := res.(*goja.Object)
	return desc, nil
}

// DefineProperty performs Reflect.defineProperty with a descriptor object
// belonging to this realm.
func (r *Reflector) DefineProperty(obj *goja.Object, key goja.Value, desc *goja.Object) (bool, error) {
	return r.boolean(r.defineProperty(goja.Undefined(), obj, key, desc))
}

// GetPrototypeOf performs Reflect.getPrototypeOf. A nil result means null.
func (r *Reflector) GetPrototypeOf(obj *goja.Object) (*goja.Object, error) {
	res, err := r.getPrototypeOf(goja.Undefined(), obj)
	if err != nil {
		return nil, err
	}
	proto, _ := res.(*goja.Object)
	return proto, nil
}

// SetPrototypeOf performs Reflect.setPrototypeOf. A nil proto means null.
func (r *Reflector) SetPrototypeOf(obj, proto *goja.Object) (bool, error) {
	var p goja.Value = goja.Null()
	if proto != nil {
		p = proto
	}
	return r.boolean(r.setPrototypeOf(goja.Undefined(), obj, p))
}

// IsExtensible performs Reflect.isExtensible.
func (r *Reflector) IsExtensible(obj *goja.Object) (bool, error) {
	return r.boolean(r.isExtensible(goja.Undefined(), obj))
}

// PreventExtensions performs Reflect.preventExtensions.
func (r *Reflector) PreventExtensions(obj *goja.Object) (bool, error) {
	return r.boolean(r.preventExtensions(goja.Undefined(), obj))
}

// IsArray performs Array.isArray.
func (r *Reflector) IsArray(obj *goja.Object) bool {
	res, err := r.isArray(goja.Undefined(), obj)
	return err == nil && res.ToBoolean()
}

// Descriptor builds an empty descriptor object in this realm.
func (r *Reflector) Descriptor() *goja.Object {
	return r.vm.NewObject()
}

// Key converts a property name to a key value.
func (r *Reflector) Key(name string) goja.Value {
	return r.vm.ToValue(name)
}

func (r *Reflector) boolean(v goja.Value, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	return v.ToBoolean(), nil
}

func orUndefined(v goja.Value) goja.Value {
	if v == nil {
		return goja.Undefined()
	}
	return v
}

// IsNullish reports whether v is nil, undefined or null.
func IsNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}
