package builtin

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"
	lua "github.com/yuin/gopher-lua"
)

const (
	jsonMaxDepth  = 128
	jsonTypeField = "__jsontype"
)

type jsonModule struct {
	null     *lua.LUserData
	arrayMT  *lua.LTable
	objectMT *lua.LTable
}

// OpenJSON builds the rapidjson module.
func OpenJSON(L *lua.LState) (lua.LValue, error) {
	j := &jsonModule{
		null:     L.NewUserData(),
		arrayMT:  L.NewTable(),
		objectMT: L.NewTable(),
	}
	j.arrayMT.RawSetString(jsonTypeField, lua.LString("array"))
	j.objectMT.RawSetString(jsonTypeField, lua.LString("object"))

	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"encode": j.encode,
		"decode": j.decode,
		"array":  j.array,
		"object": j.object,
	})
	mod.RawSetString("null", j.null)
	return mod, nil
}

// encode(value [, {pretty = bool}]) -> string | nil, err
func (j *jsonModule) encode(L *lua.LState) int {
	v, err := j.toGo(L.CheckAny(1), 0, make(map[*lua.LTable]bool))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	pretty := false
	if opts, ok := L.Get(2).(*lua.LTable); ok {
		pretty = lua.LVAsBool(opts.RawGetString("pretty"))
	}

	var out []byte
	if pretty {
		out, err = json.MarshalIndentWithOption(v, "", "  ", json.DisableHTMLEscape())
	} else {
		out, err = json.MarshalWithOption(v, json.DisableHTMLEscape())
	}
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(out))
	return 1
}

// decode(string) -> value | nil, err
func (j *jsonModule) decode(L *lua.LState) int {
	src := L.CheckString(1)
	var v any
	if err := json.Unmarshal([]byte(src), &v); err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(j.fromGo(L, v))
	return 1
}

func (j *jsonModule) array(L *lua.LState) int {
	t := L.OptTable(1, L.NewTable())
	L.SetMetatable(t, j.arrayMT)
	L.Push(t)
	return 1
}

func (j *jsonModule) object(L *lua.LState) int {
	t := L.OptTable(1, L.NewTable())
	L.SetMetatable(t, j.objectMT)
	L.Push(t)
	return 1
}

func (j *jsonModule) toGo(lv lua.LValue, depth int, seen map[*lua.LTable]bool) (any, error) {
	if depth > jsonMaxDepth {
		return nil, errors.New("nesting too deep")
	}

	switch v := lv.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(v), nil
	case lua.LNumber:
		return jsonNumber(float64(v))
	case lua.LString:
		return string(v), nil
	case *lua.LUserData:
		if v == j.null {
			return nil, nil
		}
		return nil, errors.New("cannot encode userdata")
	case *lua.LTable:
		if seen[v] {
			return nil, errors.New("cannot encode cyclic table")
		}
		seen[v] = true
		defer delete(seen, v)

		if j.isArray(v) {
			n := v.Len()
			arr := make([]any, n)
			for i := 1; i <= n; i++ {
				elem, err := j.toGo(v.RawGetInt(i), depth+1, seen)
				if err != nil {
					return nil, err
				}
				arr[i-1] = elem
			}
			return arr, nil
		}

		obj := make(map[string]any)
		var ferr error
		v.ForEach(func(key, val lua.LValue) {
			if ferr != nil {
				return
			}
			var k string
			switch kv := key.(type) {
			case lua.LString:
				k = string(kv)
			case lua.LNumber:
				k = kv.String()
			default:
				ferr = fmt.Errorf("cannot encode table key of type %s", key.Type())
				return
			}
			elem, err := j.toGo(val, depth+1, seen)
			if err != nil {
				ferr = err
				return
			}
			obj[k] = elem
		})
		if ferr != nil {
			return nil, ferr
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("cannot encode value of type %s", lv.Type())
	}
}

// isArray reports whether t encodes as a JSON array: either it carries the
// array marker, or its keys are exactly 1..n for some n > 0.
func (j *jsonModule) isArray(t *lua.LTable) bool {
	if mt, ok := t.Metatable.(*lua.LTable); ok {
		switch mt.RawGetString(jsonTypeField) {
		case lua.LString("array"):
			return true
		case lua.LString("object"):
			return false
		}
	}

	n := t.Len()
	if n == 0 {
		return false
	}
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })
	return count == n
}

func jsonNumber(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("cannot encode %s", strconv.FormatFloat(f, 'g', -1, 64))
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f), nil
	}
	return f, nil
}

func (j *jsonModule) fromGo(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return j.null
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		t := L.CreateTable(len(val), 0)
		for _, elem := range val {
			t.Append(j.fromGo(L, elem))
		}
		L.SetMetatable(t, j.arrayMT)
		return t
	case map[string]any:
		t := L.CreateTable(0, len(val))
		for k, elem := range val {
			t.RawSetString(k, j.fromGo(L, elem))
		}
		L.SetMetatable(t, j.objectMT)
		return t
	default:
		return lua.LNil
	}
}
