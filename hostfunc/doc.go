// Package hostfunc provides host functions exposed to scripts as globals.
//
// Scripts have no implicit access to the host. Each capability is added to a
// [Registry] and set into the interpreter with [Registry.Expose]:
//
//	registry := hostfunc.NewRegistry()
//	registry.Register("SendHotfixMessage", hostfunc.NewSend(bridge))
//	registry.Register("Language", hostfunc.NewLanguage(bridge))
//	registry.Expose(L)
//
// # Built-in Capabilities
//
// Messaging: [NewSend] forwards SendHotfixMessage(id, body) to a [Sender].
//
// Localization: [NewLanguage] answers Language(key) from a [Translator],
// returning nil when no string is known.
//
// Coroutines: [NewStartCoroutine] hands StartCoroutine(fn, ...) to a
// [Spawner], which resumes it on each maintenance tick.
//
// Key-Value Store: [KVStore] backs StoreGet, StoreSet, StoreDelete and
// StoreKeys with a string map shared with the host.
//
//	kv := hostfunc.NewKVStore()
//	kv.Register(registry)
package hostfunc
