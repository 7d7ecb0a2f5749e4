package builtin

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	lua "github.com/yuin/gopher-lua"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

type pbModule struct {
	files    map[string]*desc.FileDescriptor
	messages map[string]*desc.MessageDescriptor
	enums    map[string]*desc.EnumDescriptor
}

// OpenPB builds the pb module.
func OpenPB(L *lua.LState) (lua.LValue, error) {
	m := &pbModule{}
	m.reset()

	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"loadproto": m.loadProto,
		"load":      m.load,
		"encode":    m.encode,
		"decode":    m.decode,
		"type":      m.typeOf,
		"types":     m.types,
		"clear":     m.clear,
	})
	return mod, nil
}

func (m *pbModule) reset() {
	m.files = make(map[string]*desc.FileDescriptor)
	m.messages = make(map[string]*desc.MessageDescriptor)
	m.enums = make(map[string]*desc.EnumDescriptor)
}

func (m *pbModule) register(fd *desc.FileDescriptor) {
	m.files[fd.GetName()] = fd
	for _, ed := range fd.GetEnumTypes() {
		m.enums[ed.GetFullyQualifiedName()] = ed
	}
	for _, md := range fd.GetMessageTypes() {
		m.registerMessage(md)
	}
}

func (m *pbModule) registerMessage(md *desc.MessageDescriptor) {
	m.messages[md.GetFullyQualifiedName()] = md
	for _, ed := range md.GetNestedEnumTypes() {
		m.enums[ed.GetFullyQualifiedName()] = ed
	}
	for _, nested := range md.GetNestedMessageTypes() {
		m.registerMessage(nested)
	}
}

// loadproto(source [, filename]) -> true | nil, err
func (m *pbModule) loadProto(L *lua.LState) int {
	src := L.CheckString(1)
	name := L.OptString(2, fmt.Sprintf("chunk%d.proto", len(m.files)+1))

	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{name: src}),
		LookupImport: func(file string) (*desc.FileDescriptor, error) {
			if fd, ok := m.files[file]; ok {
				return fd, nil
			}
			return nil, fmt.Errorf("import %q not loaded", file)
		},
	}
	fds, err := parser.ParseFiles(name)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	for _, fd := range fds {
		m.register(fd)
	}
	L.Push(lua.LTrue)
	return 1
}

// load(descriptorSetBytes) -> true | nil, err
func (m *pbModule) load(L *lua.LState) int {
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal([]byte(L.CheckString(1)), &set); err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(fmt.Sprintf("invalid descriptor set: %v", err)))
		return 2
	}
	fds, err := desc.CreateFileDescriptorsFromSet(&set)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	for _, fd := range fds {
		m.register(fd)
	}
	L.Push(lua.LTrue)
	return 1
}

func (m *pbModule) message(L *lua.LState, n int) *desc.MessageDescriptor {
	name := strings.TrimPrefix(L.CheckString(n), ".")
	md, ok := m.messages[name]
	if !ok {
		L.ArgError(n, fmt.Sprintf("type '%s' does not exist", name))
	}
	return md
}

// encode(type, table) -> bytes
func (m *pbModule) encode(L *lua.LState) int {
	md := m.message(L, 1)
	msg, err := m.toMessage(L.CheckTable(2), md)
	if err != nil {
		L.RaiseError("encode %s: %s", md.GetFullyQualifiedName(), err.Error())
	}
	data, err := msg.Marshal()
	if err != nil {
		L.RaiseError("encode %s: %s", md.GetFullyQualifiedName(), err.Error())
	}
	L.Push(lua.LString(data))
	return 1
}

// decode(type, bytes) -> table | nil, err
func (m *pbModule) decode(L *lua.LState) int {
	md := m.message(L, 1)
	msg := dynamic.NewMessage(md)
	if err := msg.Unmarshal([]byte(L.CheckString(2))); err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	t, err := m.toTable(L, msg)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(t)
	return 1
}

// type(name) -> fullname, basename, "message"|"enum" | nil
func (m *pbModule) typeOf(L *lua.LState) int {
	name := strings.TrimPrefix(L.CheckString(1), ".")
	if md, ok := m.messages[name]; ok {
		L.Push(lua.LString("." + md.GetFullyQualifiedName()))
		L.Push(lua.LString(md.GetName()))
		L.Push(lua.LString("message"))
		return 3
	}
	if ed, ok := m.enums[name]; ok {
		L.Push(lua.LString("." + ed.GetFullyQualifiedName()))
		L.Push(lua.LString(ed.GetName()))
		L.Push(lua.LString("enum"))
		return 3
	}
	L.Push(lua.LNil)
	return 1
}

// types() -> sorted array of message type names
func (m *pbModule) types(L *lua.LState) int {
	names := make([]string, 0, len(m.messages))
	for name, md := range m.messages {
		if md.IsMapEntry() {
			continue
		}
		names = append(names, "."+name)
	}
	sort.Strings(names)
	t := L.CreateTable(len(names), 0)
	for _, name := range names {
		t.Append(lua.LString(name))
	}
	L.Push(t)
	return 1
}

func (m *pbModule) clear(L *lua.LState) int {
	m.reset()
	return 0
}

func (m *pbModule) toMessage(t *lua.LTable, md *desc.MessageDescriptor) (*dynamic.Message, error) {
	msg := dynamic.NewMessage(md)
	var ferr error
	t.ForEach(func(k, v lua.LValue) {
		if ferr != nil {
			return
		}
		key, ok := k.(lua.LString)
		if !ok {
			return
		}
		field := md.FindFieldByName(string(key))
		if field == nil {
			return
		}
		val, err := m.toField(v, field)
		if err != nil {
			ferr = fmt.Errorf("field %s: %w", key, err)
			return
		}
		if err := msg.TrySetField(field, val); err != nil {
			ferr = fmt.Errorf("field %s: %w", key, err)
		}
	})
	return msg, ferr
}

func (m *pbModule) toField(v lua.LValue, field *desc.FieldDescriptor) (any, error) {
	if field.IsMap() {
		t, ok := v.(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("expected table for map, got %s", v.Type())
		}
		out := make(map[any]any)
		var ferr error
		t.ForEach(func(k, val lua.LValue) {
			if ferr != nil {
				return
			}
			key, err := m.toScalar(k, field.GetMapKeyType())
			if err != nil {
				ferr = err
				return
			}
			elem, err := m.toScalar(val, field.GetMapValueType())
			if err != nil {
				ferr = err
				return
			}
			out[key] = elem
		})
		return out, ferr
	}

	if field.IsRepeated() {
		t, ok := v.(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("expected table for repeated field, got %s", v.Type())
		}
		n := t.Len()
		out := make([]any, n)
		for i := 1; i <= n; i++ {
			elem, err := m.toScalar(t.RawGetInt(i), field)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i-1] = elem
		}
		return out, nil
	}

	return m.toScalar(v, field)
}

func (m *pbModule) toScalar(v lua.LValue, field *desc.FieldDescriptor) (any, error) {
	num, isNum := v.(lua.LNumber)
	switch field.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32,
		descriptorpb.FieldDescriptorProto_TYPE_SINT32,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED32:
		if isNum {
			return int32(num), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_INT64,
		descriptorpb.FieldDescriptorProto_TYPE_SINT64,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		if isNum {
			return int64(num), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED32:
		if isNum && num >= 0 {
			return uint32(num), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED64:
		if isNum && num >= 0 {
			return uint64(num), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		if isNum {
			return float32(num), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		if isNum {
			return float64(num), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		if b, ok := v.(lua.LBool); ok {
			return bool(b), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		if s, ok := v.(lua.LString); ok {
			return string(s), nil
		}
		if isNum {
			return num.String(), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		if s, ok := v.(lua.LString); ok {
			return []byte(s), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:
		if t, ok := v.(*lua.LTable); ok {
			return m.toMessage(t, field.GetMessageType())
		}
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		if isNum {
			return int32(num), nil
		}
		if s, ok := v.(lua.LString); ok {
			if ev := field.GetEnumType().FindValueByName(string(s)); ev != nil {
				return ev.GetNumber(), nil
			}
			return nil, fmt.Errorf("unknown enum value %q", string(s))
		}
	}
	return nil, fmt.Errorf("cannot convert %s to %s", v.Type(), strings.ToLower(strings.TrimPrefix(field.GetType().String(), "TYPE_")))
}

func (m *pbModule) toTable(L *lua.LState, msg *dynamic.Message) (*lua.LTable, error) {
	t := L.NewTable()
	for _, field := range msg.GetKnownFields() {
		if !msg.HasField(field) {
			continue
		}
		lv, err := m.fieldToLua(L, msg.GetField(field), field)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.GetName(), err)
		}
		t.RawSetString(field.GetName(), lv)
	}
	return t, nil
}

func (m *pbModule) fieldToLua(L *lua.LState, val any, field *desc.FieldDescriptor) (lua.LValue, error) {
	if field.IsMap() {
		entries, ok := val.(map[any]any)
		if !ok {
			return lua.LNil, fmt.Errorf("expected map, got %T", val)
		}
		t := L.CreateTable(0, len(entries))
		for k, v := range entries {
			key, err := m.scalarToLua(L, k, field.GetMapKeyType())
			if err != nil {
				return lua.LNil, err
			}
			elem, err := m.scalarToLua(L, v, field.GetMapValueType())
			if err != nil {
				return lua.LNil, err
			}
			t.RawSet(key, elem)
		}
		return t, nil
	}

	if field.IsRepeated() {
		slice := reflect.ValueOf(val)
		if slice.Kind() != reflect.Slice {
			return lua.LNil, fmt.Errorf("expected slice, got %T", val)
		}
		t := L.CreateTable(slice.Len(), 0)
		for i := 0; i < slice.Len(); i++ {
			elem, err := m.scalarToLua(L, slice.Index(i).Interface(), field)
			if err != nil {
				return lua.LNil, fmt.Errorf("element %d: %w", i+1, err)
			}
			t.Append(elem)
		}
		return t, nil
	}

	return m.scalarToLua(L, val, field)
}

func (m *pbModule) scalarToLua(L *lua.LState, val any, field *desc.FieldDescriptor) (lua.LValue, error) {
	switch field.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32,
		descriptorpb.FieldDescriptorProto_TYPE_SINT32,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED32:
		return lua.LNumber(val.(int32)), nil
	case descriptorpb.FieldDescriptorProto_TYPE_INT64,
		descriptorpb.FieldDescriptorProto_TYPE_SINT64,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		return lua.LNumber(val.(int64)), nil
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED32:
		return lua.LNumber(val.(uint32)), nil
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED64:
		return lua.LNumber(val.(uint64)), nil
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		return lua.LNumber(val.(float32)), nil
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		return lua.LNumber(val.(float64)), nil
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		return lua.LBool(val.(bool)), nil
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		return lua.LString(val.(string)), nil
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		return lua.LString(val.([]byte)), nil
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:
		nested, ok := val.(*dynamic.Message)
		if !ok {
			return lua.LNil, fmt.Errorf("unexpected message value %T", val)
		}
		return m.toTable(L, nested)
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		num := val.(int32)
		if ev := field.GetEnumType().FindValueByNumber(num); ev != nil {
			return lua.LString(ev.GetName()), nil
		}
		return lua.LNumber(num), nil
	}
	return lua.LNil, fmt.Errorf("unsupported proto type: %v", field.GetType())
}
