package builtin

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

const playerProto = `
syntax = "proto3";
package game;

enum Class {
  WARRIOR = 0;
  MAGE = 1;
}

message Item {
  string name = 1;
  int32 count = 2;
}

message Player {
  int64 id = 1;
  string name = 2;
  Class class = 3;
  repeated Item items = 4;
  map<string, int32> stats = 5;
  bytes token = 6;
  bool online = 7;
  repeated int32 scores = 8;
}
`

func newPBState(t *testing.T) *lua.LState {
	t.Helper()
	L := newState(t)
	mod, err := OpenPB(L)
	if err != nil {
		t.Fatalf("OpenPB failed: %v", err)
	}
	L.SetGlobal("pb", mod)
	L.SetGlobal("schema", lua.LString(playerProto))
	return L
}

func TestPBRoundTrip(t *testing.T) {
	L := newPBState(t)
	err := L.DoString(`
		assert(pb.loadproto(schema, "player.proto"))
		local bytes = pb.encode("game.Player", {
			id = 7,
			name = "hero",
			class = "MAGE",
			items = {{name = "potion", count = 3}, {name = "sword", count = 1}},
			stats = {hp = 100, mp = 40},
			token = "\0\1\2",
			online = true,
			scores = {5, 6, 7},
		})
		assert(type(bytes) == "string" and #bytes > 0)

		local p = assert(pb.decode(".game.Player", bytes))
		assert(p.id == 7)
		assert(p.name == "hero")
		assert(p.class == "MAGE")
		assert(#p.items == 2 and p.items[1].name == "potion" and p.items[2].count == 1)
		assert(p.stats.hp == 100 and p.stats.mp == 40)
		assert(p.token == "\0\1\2")
		assert(p.online == true)
		assert(#p.scores == 3 and p.scores[3] == 7)
	`)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
}

func TestPBType(t *testing.T) {
	L := newPBState(t)
	err := L.DoString(`
		pb.loadproto(schema, "player.proto")
		local full, base, kind = pb.type("game.Player")
		assert(full == ".game.Player" and base == "Player" and kind == "message")
		full, base, kind = pb.type(".game.Class")
		assert(full == ".game.Class" and kind == "enum")
		assert(pb.type("game.Missing") == nil)

		local names = pb.types()
		assert(#names == 2 and names[1] == ".game.Item" and names[2] == ".game.Player")

		pb.clear()
		assert(pb.type("game.Player") == nil)
	`)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
}

func TestPBLoadDescriptorSet(t *testing.T) {
	set := &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{{
			Name:    proto.String("ping.proto"),
			Package: proto.String("net"),
			Syntax:  proto.String("proto3"),
			MessageType: []*descriptorpb.DescriptorProto{{
				Name: proto.String("Ping"),
				Field: []*descriptorpb.FieldDescriptorProto{{
					Name:     proto.String("seq"),
					Number:   proto.Int32(1),
					Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
					Type:     descriptorpb.FieldDescriptorProto_TYPE_UINT32.Enum(),
					JsonName: proto.String("seq"),
				}},
			}},
		}},
	}
	data, err := proto.Marshal(set)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	L := newPBState(t)
	L.SetGlobal("descriptors", lua.LString(data))
	err = L.DoString(`
		assert(pb.load(descriptors))
		local p = pb.decode("net.Ping", pb.encode("net.Ping", {seq = 9}))
		assert(p.seq == 9)
	`)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
}

func TestPBErrors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		raises  bool
		wantNil bool
	}{
		{"bad schema", `out, err = pb.loadproto("message {", "bad.proto")`, false, true},
		{"missing import", `out, err = pb.loadproto('syntax = "proto3"; import "other.proto";', "a.proto")`, false, true},
		{"bad descriptor set", `out, err = pb.load("\255\255")`, false, true},
		{"unknown type", `pb.encode("game.Nope", {})`, true, false},
		{"wrong field type", `pb.loadproto(schema, "p.proto"); pb.encode("game.Player", {name = {}})`, true, false},
		{"unknown enum", `pb.loadproto(schema, "p.proto"); pb.encode("game.Player", {class = "ROGUE"})`, true, false},
		{"truncated bytes", `pb.loadproto(schema, "p.proto"); out, err = pb.decode("game.Player", "\10")`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := newPBState(t)
			err := L.DoString(tt.code)
			if tt.raises {
				if err == nil {
					t.Fatal("expected raised error")
				}
				return
			}
			if err != nil {
				t.Fatalf("script failed: %v", err)
			}
			if tt.wantNil && (L.GetGlobal("out") != lua.LNil || L.GetGlobal("err") == lua.LNil) {
				t.Errorf("expected nil, err; got %v, %v", L.GetGlobal("out"), L.GetGlobal("err"))
			}
		})
	}
}
