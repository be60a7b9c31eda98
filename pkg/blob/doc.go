/*
Package blob provides the byte-addressable object store abstraction that
every tier of the lakehouse persists through.

A single capability-set interface, Backend, is implemented twice — once
over local files, once over an S3-compatible object store — and composed
with a namespace-prefixing decorator so that a single physical bucket can
host many logically separate trees.

# Architecture

	┌───────────────────────── BLOB LAYER ─────────────────────────┐
	│                                                                │
	│  ┌──────────────────────────────────────────────┐            │
	│  │                  Storage                       │            │
	│  │  - byte-slice Put/Get convenience              │            │
	│  │  - List() follows next_marker transparently    │            │
	│  └──────────────────────┬───────────────────────┘            │
	│                         │                                      │
	│  ┌──────────────────────▼───────────────────────┐            │
	│  │              PrefixedBackend                   │            │
	│  │  - rewrites inbound keys: prefix + key         │            │
	│  │  - strips outbound keys back to unprefixed     │            │
	│  │  - empty prefix ≡ identity decorator           │            │
	│  └──────────────────────┬───────────────────────┘            │
	│                         │                                      │
	│           ┌─────────────┴─────────────┐                       │
	│  ┌────────▼────────┐         ┌────────▼────────┐             │
	│  │ FilesystemBackend│         │  ObjectBackend   │             │
	│  │ - file + .meta   │         │ - minio-go/v7    │             │
	│  │   sidecar JSON   │         │ - S3-compatible  │             │
	│  │ - rename-based   │         │ - bucket ensured │             │
	│  │   put atomicity  │         │   on construct   │             │
	│  └──────────────────┘         └──────────────────┘             │
	└────────────────────────────────────────────────────────────────┘

# Error taxonomy

*NotFoundError marks an absent key on any read/delete path. Construction
failures (bad endpoint, unreachable bucket) surface as *ConnectionError.
Everything else a backend can't classify more precisely surfaces as the
generic *BackendError, always wrapping the underlying cause.

# Atomicity

FilesystemBackend.Put writes to a temp file in the same directory and
renames it into place, so a reader never observes a partially written
blob. ObjectBackend relies on S3's single-object PUT atomicity. Neither
backend offers cross-key transactions; the Gold layer builds its own
stronger atomic-replace protocol on top of single-key Put/Get/Delete
(see pkg/lakehouse).
*/
package blob
