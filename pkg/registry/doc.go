/*
Package registry resolves named backend configurations — loaded from
YAML, with environment-variable expansion and inheritance — into live
blob.Backend instances, cached by name.

# Name resolution

	"dev"               -> base="dev",   prefix=""
	"dev.images.thumb"   -> base="dev",   prefix="images/thumb"

A name with no namespace suffix resolves straight to the cached base
backend. A name with a suffix wraps the base backend in a
blob.PrefixedBackend and caches the wrapped instance under the full name.

# Inheritance

	demo        : {type: filesystem, base_path: "/var/blob_storage"}
	demo.bronze : {__inherits__: demo}                # inherits base_path
	remote      : {type: s3, endpoint: "...", bucket: "...", secure: false}
	remote.silver: {__inherits__: remote, prefix: "silver"}

Resolution is a memoized depth-first walk over the inheritance graph: a
name revisited on the current path is a cycle (ConfigError); a parent
name absent from the config map is also a ConfigError. Resolved entries
never retain the __inherits__ marker.

# Caching

Register invalidates every cache entry whose key has name as a prefix,
so a reconfigured base also invalidates any namespaced children built on
top of it. Cache invalidation is not atomic with concurrent GetBackend
calls — callers must not reconfigure a registry that is in active use
from other goroutines without external synchronization.
*/
package registry
