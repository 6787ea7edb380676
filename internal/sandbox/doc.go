/*
Package sandbox runs untrusted JavaScript in isolated goja realms.

# Overview

A Context owns one sanitized realm (see package realm) and one membrane (see
package membrane) connecting it to a host runtime. Host values given to New
are bridged into the realm; values produced by sandboxed code come back as
bridged host values. Nothing in the API hands out the raw realm.

# Evaluation

Eval runs code through the realm's own evaluator, drains queued timer and
microtask callbacks up to Config.TimerBudget, and returns the completion
value. Thrown values surface as *RuntimeError carrying the bridged value.
Evaluation runs to completion on the calling goroutine; Config.Timeout and
context cancellation interrupt it.

# Usage Example

	c, err := sandbox.New(sandbox.DefaultConfig(), map[string]interface{}{
		"add": func(a, b int) int { return a + b },
	})
	if err != nil {
		return err
	}
	defer c.Close()

	v, err := c.Eval("add(2, 3)")

# Pooling

Pool keeps pre-built Contexts for one-shot evaluations. Each pooled Context
serves a single call and is replaced afterwards.
*/
package sandbox
