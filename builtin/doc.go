// Package builtin provides extension modules installed into a Lua state
// before any script runs.
//
// Built-ins are applied in registration order. Each factory builds its
// module value once; the value is stored in package.loaded and
// package.preload so scripts reach it with require:
//
//	local json = require "rapidjson"
//	local lpeg = require "lpeg"
//	local pb   = require "pb"
//
// The default set:
//
//	rapidjson  JSON codec: encode, decode, null, array, object
//	lpeg       parsing expression grammars: P, R, S, V, C, Cc, Cp, Ct, Cg, Cs, match
//	pb         protobuf codec over schemas loaded at runtime: loadproto, load, encode, decode
//
// A factory error is fatal: [Registry.Install] stops and returns it.
package builtin
