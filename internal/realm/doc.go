/*
Package realm creates and sanitizes isolated goja realms.

# Overview

A realm is a goja runtime with its own global object and intrinsics. A
Factory produces fresh realms; Sanitize strips one down to a Whitelist of
bindings and returns a Scope that keeps the realm's own evaluator and
function constructor.

# Sanitization

For every own key of the global object outside the whitelist, the sanitizer
tries in order:

 1. delete the binding
 2. overwrite it with undefined and check the re-read is nullish
 3. for protected objects, clear the prototype and prevent extensions

A binding whose value is the global object itself (globalThis) is kept.
Bindings that resist every step are reported as SanitizationWarnings and
logged; sanitization carries on.

# Host Intrinsics

GojaFactory installs the browser-style bindings the default whitelist names:
atob, btoa, crypto, location and timers. Timers run on a virtual Clock that
the owner drains synchronously.

# Usage Example

	r, err := (&realm.GojaFactory{}).NewRealm()
	if err != nil {
		return err
	}
	scope, err := realm.Sanitize(r, realm.DefaultWhitelist(), realm.WithLogger(logger))
	if err != nil {
		return err
	}
	v, err := scope.Evaluate("1 + 1")
*/
package realm
