// Package plugin is the published, ABI-stable authoring contract for KPAL
// peripheral plugins. It is intentionally small: the
// numeric constants, value-kind tags, and phase/callback vocabulary a
// plugin author (in C, Rust, or Go-with-cgo) needs to implement
// kpal_plugin_new and its vtable correctly. It carries no daemon-side
// logic — internal/abi is the only package that dereferences a vtable.
package plugin

// ValueKind is the discriminator of the ABI's Val union.
type ValueKind int32

const (
	KindInt    ValueKind = 0
	KindUint   ValueKind = 1
	KindDouble ValueKind = 2
	KindString ValueKind = 3
)

// Phase is the two-value lifecycle state a plugin instance occupies.
// Transitions are monotonic: InitPhase -> RunPhase only.
type Phase int32

const (
	InitPhase Phase = 0
	RunPhase  Phase = 1
)

// PreInit flag values as they cross the ABI; the Go side
// uses a bool, the C side an int8_t with these two values.
const (
	PreInitFalse int8 = 0
	PreInitTrue  int8 = 1
)

// AttributeNameBufferLen is the caller-allocated buffer size attribute_name
// must not overflow.
const AttributeNameBufferLen = 512

// APIVersionMin is the version number of the vtable shape this package
// describes. The daemon does not read or check it when loading a plugin.
const APIVersionMin = 1

// CallbackKind is the per-phase dispatch policy an attribute declares
// internally to the plugin. It is never observed by the daemon or any
// transport: the daemon only ever sees the return codes of
// attribute_value/set_attribute_value.
//
//   - Constant: reads return the cached value; sets always fail with
//     AttributeIsNotSettable, regardless of the attribute's PreInit flag.
//   - Update: reads return the cache; sets overwrite it. In InitPhase this
//     is how PreInit attributes accept configuration; a plugin may also
//     keep Update in RunPhase to allow post-init writes.
//   - GetAndSet: reads and writes are hardware-backed; the cache is a hint
//     only. Typically used once a plugin reaches RunPhase.
//
// The policy is a property of the triad a plugin author chooses per
// attribute per phase, not a flag the daemon interprets.
type CallbackKind int

const (
	CallbackConstant CallbackKind = iota
	CallbackUpdate
	CallbackGetAndSet
)
