// Package bridge hosts a single Lua interpreter for game logic that lives in
// hot-reloadable script files.
//
// A [Bridge] owns the interpreter for its whole life. [Bridge.Start] installs
// a module loader that resolves require names through a [resource.Loader]
// (Lua/<name>.lua), installs the built-in extensions, exposes the host
// functions and runs the root script. The table the root script returns
// supplies up to four entry points:
//
//	Start()                      called once after bootstrap
//	Update()                     called every frame
//	Language(key) -> string      localization lookup
//	HandleNetMessage(id, bytes)  inbound hotfix message
//
// Any entry point may be missing. A missing or failing root script leaves
// the bridge running with no entry points bound.
//
// Scripts call back into the host through globals:
//
//	SendHotfixMessage(id, bytes) -> true | false, err
//	Language(key) -> string | nil
//	StartCoroutine(fn, ...) -> true | false, err
//
// All methods must be called from the host's logic thread. The bridge does
// no locking; network packages reach [Bridge.OnNetworkMessage] through the
// network manager's Pump, which runs on that thread.
package bridge
