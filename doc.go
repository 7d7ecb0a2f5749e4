// Package hotlua hosts game logic written in hot-reloadable Lua scripts.
//
// # Overview
//
// A [bridge.Bridge] owns one Lua interpreter. Scripts are resolved through a
// [resource.Loader] as Lua/<module>.lua, so they can live in a directory, in
// memory, or in a hot-patch [resource.Bundle]. The root module returns a
// table of entry points the host calls: Start, Update, Language and
// HandleNetMessage.
//
// # Basic Usage
//
//	scripts, _ := resource.NewDir("./scripts")
//	net := network.NewManager(network.Loopback())
//	b := bridge.New(scripts, net)
//
//	runner := host.NewRunner(host.WithPumper(net))
//	runner.Register("lua", b, nil)
//	runner.Start()
//	defer runner.Stop()
//	runner.Run(ctx, 0)
//
// # Packages
//
//   - bridge: interpreter lifecycle, entry points, message dispatch
//   - builtin: rapidjson, lpeg and pb extensions
//   - hostfunc: globals scripts call back into the host with
//   - resource: script sources (directory, memory, SQLite bundle)
//   - network: hotfix packages over WebSocket or in-process pipes
//   - host: module lifecycle and frame loop
//   - timer: frame-driven repeat timer gating the maintenance tick
//   - config: hotlua.toml loading and validation
package hotlua
