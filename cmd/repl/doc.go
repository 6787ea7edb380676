// Package main is an interactive JavaScript shell over one sandbox context.
//
// Usage:
//
//	./repl
//	./repl -whitelist whitelist.toml
//	./repl -e "[1, 2, 3].map(function (n) { return n * n })"
package main
