package realm

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxRandomBytes mirrors the quota of crypto.getRandomValues in browsers.
const maxRandomBytes = 65536

// DefaultLocation is the href reported by a realm with no configured location.
const DefaultLocation = "about:blank"

type environment struct {
	vm     *goja.Runtime
	random io.Reader
	logger *zap.Logger
}

func (e *environment) install(href string, console bool) error {
	if err := e.vm.Set("atob", e.atob); err != nil {
		return err
	}
	if err := e.vm.Set("btoa", e.btoa); err != nil {
		return err
	}

	crypto := e.vm.NewObject()
	if err := crypto.Set("getRandomValues", e.getRandomValues); err != nil {
		return err
	}
	if err := crypto.Set("randomUUID", e.randomUUID); err != nil {
		return err
	}
	if err := e.vm.Set("crypto", crypto); err != nil {
		return err
	}

	location, err := e.location(href)
	if err != nil {
		return err
	}
	if err := e.vm.Set("location", location); err != nil {
		return err
	}

	if console {
		return e.vm.Set("console", e.console())
	}
	return nil
}

func (e *environment) throw(name, msg string) {
	errObj := e.vm.NewGoError(fmt.Errorf("%s", msg))
	_ = errObj.Set("name", name)
	panic(errObj)
}

func (e *environment) atob(call goja.FunctionCall) goja.Value {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\f', '\r':
			return -1
		}
		return r
	}, call.Argument(0).String())
	s = strings.TrimRight(s, "=")

	data, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		e.throw("InvalidCharacterError", "The string to be decoded is not correctly encoded.")
	}
	out := make([]rune, len(data))
	for i, b := range data {
		out[i] = rune(b)
	}
	return e.vm.ToValue(string(out))
}

func (e *environment) btoa(call goja.FunctionCall) goja.Value {
	s := call.Argument(0).String()
	data := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			e.throw("InvalidCharacterError", "The string to be encoded contains characters outside of the Latin1 range.")
		}
		data = append(data, byte(r))
	}
	return e.vm.ToValue(base64.StdEncoding.EncodeToString(data))
}

func (e *environment) getRandomValues(call goja.FunctionCall) goja.Value {
	arr, ok := call.Argument(0).(*goja.Object)
	if !ok {
		panic(e.vm.NewTypeError("getRandomValues: argument is not a typed array"))
	}
	buf, ok := arr.Get("buffer").Export().(goja.ArrayBuffer)
	if !ok {
		panic(e.vm.NewTypeError("getRandomValues: argument is not a typed array"))
	}
	offset := arr.Get("byteOffset").ToInteger()
	length := arr.Get("byteLength").ToInteger()
	if length > maxRandomBytes {
		e.throw("QuotaExceededError", fmt.Sprintf("getRandomValues: %d bytes exceeds the limit of %d", length, maxRandomBytes))
	}
	if _, err := io.ReadFull(e.random, buf.Bytes()[offset:offset+length]); err != nil {
		panic(e.vm.NewGoError(err))
	}
	return arr
}

func (e *environment) randomUUID(goja.FunctionCall) goja.Value {
	id, err := uuid.NewRandomFromReader(e.random)
	if err != nil {
		panic(e.vm.NewGoError(err))
	}
	return e.vm.ToValue(id.String())
}

func (e *environment) location(href string) (*goja.Object, error) {
	if href == "" {
		href = DefaultLocation
	}
	u, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("parse location %q: %w", href, err)
	}

	origin := "null"
	if u.Scheme == "http" || u.Scheme == "https" {
		origin = u.Scheme + "://" + u.Host
	}
	search := ""
	if u.RawQuery != "" {
		search = "?" + u.RawQuery
	}
	hash := ""
	if u.Fragment != "" {
		hash = "#" + u.EscapedFragment()
	}
	pathname := u.EscapedPath()
	if u.Opaque != "" {
		pathname = u.Opaque
	}

	fields := []struct {
		name  string
		value string
	}{
		{"href", u.String()},
		{"protocol", u.Scheme + ":"},
		{"host", u.Host},
		{"hostname", u.Hostname()},
		{"port", u.Port()},
		{"pathname", pathname},
		{"search", search},
		{"hash", hash},
		{"origin", origin},
	}

	loc := e.vm.NewObject()
	for _, f := range fields {
		if err := loc.DefineDataProperty(f.name, e.vm.ToValue(f.value), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return nil, err
		}
	}
	full := u.String()
	if err := loc.Set("toString", func(goja.FunctionCall) goja.Value {
		return e.vm.ToValue(full)
	}); err != nil {
		return nil, err
	}
	return loc, nil
}

func (e *environment) console() *goja.Object {
	console := e.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		level := level
		_ = console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			e.logger.Debug("realm console",
				zap.String("level", level),
				zap.String("message", strings.Join(parts, " ")))
			return goja.Undefined()
		})
	}
	return console
}
