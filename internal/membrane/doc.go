/*
Package membrane bridges object references between a host realm and a
sandbox realm.

Each direction has its own bridge and IdentityCache. An object crossing the
membrane is replaced by a goja proxy in the destination runtime; the proxy's
traps forward every meta-operation to the raw object through the source
realm's captured Reflect functions, converting values on the way in and out.

Resolution order for an object:

 1. intrinsic substitution (Function, eval and whitelisted constructors map to
    the other realm's own)
 2. cached wrapper
 3. original object, when the value is a wrapper made by the opposite bridge
 4. new wrapper, recorded before any member is touched

No wrapper can be made non-extensible or given non-configurable
properties, since the shadow target could not mirror that state. The inward
bridge is also safe: its wrappers refuse setPrototypeOf and __proto__
assignment. Refusals are reported as failure, never thrown by the trap.
Errors raised while forwarding are bridged and rethrown in the caller's
realm.

Halt stops the host from calling back into sandbox code: every outward trap
throws ErrHalted until Resume. Together with repeated engine interrupts it
bounds code that would otherwise catch a bridged interrupt and keep going.
*/
package membrane
