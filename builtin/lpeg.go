package builtin

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

const (
	lpegVersion      = "1.0.2"
	lpegTypeName     = "lpeg-pattern"
	lpegMaxRuleDepth = 1000
)

type pkind uint8

const (
	pLit     pkind = iota // literal string
	pAny                  // exactly n bytes
	pShort                // fewer than n bytes remain
	pTrue                 // always succeeds
	pFalse                // always fails
	pSet                  // one byte from a set
	pSeq                  // left then right
	pChoice               // left, else right
	pRep                  // left repeated (n >= 0: at least n, n < 0: at most -n)
	pNot                  // negative lookahead
	pAnd                  // positive lookahead
	pCapture              // capture over left (left may be nil)
	pGrammar              // rules with an initial rule
	pRef                  // open reference to a grammar rule
)

type capKind uint8

const (
	capSimple capKind = iota
	capConst
	capPosition
	capTable
	capGroup
	capSubst
	capFunc
)

type patt struct {
	kind  pkind
	str   string
	n     int
	set   *[256]bool
	left  *patt
	right *patt

	cap    capKind
	values []lua.LValue // constant capture values
	fn     lua.LValue   // function capture target
	name   lua.LValue   // group name

	rules map[string]*patt
	start string
}

type capEntry struct {
	p          *patt
	start, end int
	children   []capEntry
}

type matcher struct {
	L        *lua.LState
	subject  string
	caps     []capEntry
	grammars []map[string]*patt
	depth    int
}

// OpenLPeg builds the lpeg module.
func OpenLPeg(L *lua.LState) (lua.LValue, error) {
	mt := L.NewTypeMetatable(lpegTypeName)
	L.SetFuncs(mt, map[string]lua.LGFunction{
		"__add":      lpegChoice,
		"__mul":      lpegSeq,
		"__sub":      lpegDiff,
		"__pow":      lpegRep,
		"__unm":      lpegNot,
		"__len":      lpegAnd,
		"__div":      lpegFuncCapture,
		"__tostring": lpegToString,
	})
	methods := L.NewTable()
	L.SetFuncs(methods, map[string]lua.LGFunction{"match": lpegMatch})
	mt.RawSetString("__index", methods)

	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"P":     lpegP,
		"R":     lpegR,
		"S":     lpegS,
		"V":     lpegV,
		"C":     lpegC,
		"Cc":    lpegCc,
		"Cp":    lpegCp,
		"Ct":    lpegCt,
		"Cg":    lpegCg,
		"Cs":    lpegCs,
		"match": lpegMatch,
		"type":  lpegType,
	})
	mod.RawSetString("version", lua.LString(lpegVersion))
	return mod, nil
}

func pushPatt(L *lua.LState, p *patt) int {
	ud := L.NewUserData()
	ud.Value = p
	L.SetMetatable(ud, L.GetTypeMetatable(lpegTypeName))
	L.Push(ud)
	return 1
}

// toPatt converts argument n to a pattern, following lpeg.P's rules.
func toPatt(L *lua.LState, n int) *patt {
	return valueToPatt(L, L.CheckAny(n), n)
}

func valueToPatt(L *lua.LState, v lua.LValue, argn int) *patt {
	switch val := v.(type) {
	case *lua.LUserData:
		if p, ok := val.Value.(*patt); ok {
			return p
		}
	case lua.LString:
		return &patt{kind: pLit, str: string(val)}
	case lua.LNumber:
		n := int(val)
		if n >= 0 {
			return &patt{kind: pAny, n: n}
		}
		return &patt{kind: pShort, n: -n}
	case lua.LBool:
		if val {
			return &patt{kind: pTrue}
		}
		return &patt{kind: pFalse}
	case *lua.LTable:
		return newGrammar(L, val)
	}
	L.ArgError(argn, fmt.Sprintf("pattern expected, got %s", v.Type()))
	return nil
}

func newGrammar(L *lua.LState, t *lua.LTable) *patt {
	g := &patt{kind: pGrammar, rules: make(map[string]*patt)}

	switch initial := t.RawGetInt(1).(type) {
	case lua.LString:
		g.start = string(initial)
	case *lua.LNilType:
		L.RaiseError("grammar has no initial rule")
	default:
		g.start = "1"
	}

	t.ForEach(func(k, v lua.LValue) {
		if k == lua.LNumber(1) {
			if _, isName := v.(lua.LString); isName {
				return
			}
		}
		g.rules[lua.LVAsString(k)] = valueToPatt(L, v, 1)
	})

	if _, ok := g.rules[g.start]; !ok {
		L.RaiseError("initial rule '%s' is not defined in given grammar", g.start)
	}
	for _, rule := range g.rules {
		if missing := undefinedRef(rule, g.rules); missing != "" {
			L.RaiseError("rule '%s' undefined in given grammar", missing)
		}
	}
	return g
}

// undefinedRef returns the first reference in p not bound by rules, without
// descending into nested grammars.
func undefinedRef(p *patt, rules map[string]*patt) string {
	if p == nil {
		return ""
	}
	switch p.kind {
	case pRef:
		if _, ok := rules[p.str]; !ok {
			return p.str
		}
		return ""
	case pGrammar:
		return ""
	}
	if name := undefinedRef(p.left, rules); name != "" {
		return name
	}
	return undefinedRef(p.right, rules)
}

func lpegP(L *lua.LState) int {
	return pushPatt(L, toPatt(L, 1))
}

func lpegR(L *lua.LState) int {
	set := new([256]bool)
	for i := 1; i <= L.GetTop(); i++ {
		r := L.CheckString(i)
		if len(r) != 2 {
			L.ArgError(i, "range must have two characters")
		}
		for c := int(r[0]); c <= int(r[1]); c++ {
			set[c] = true
		}
	}
	return pushPatt(L, &patt{kind: pSet, set: set})
}

func lpegS(L *lua.LState) int {
	set := new([256]bool)
	for _, c := range []byte(L.CheckString(1)) {
		set[c] = true
	}
	return pushPatt(L, &patt{kind: pSet, set: set})
}

func lpegV(L *lua.LState) int {
	return pushPatt(L, &patt{kind: pRef, str: lua.LVAsString(L.CheckAny(1))})
}

func lpegSeq(L *lua.LState) int {
	return pushPatt(L, &patt{kind: pSeq, left: toPatt(L, 1), right: toPatt(L, 2)})
}

func lpegChoice(L *lua.LState) int {
	return pushPatt(L, &patt{kind: pChoice, left: toPatt(L, 1), right: toPatt(L, 2)})
}

// p1 - p2 matches p1 only where p2 does not match.
func lpegDiff(L *lua.LState) int {
	a, b := toPatt(L, 1), toPatt(L, 2)
	return pushPatt(L, &patt{kind: pSeq, left: &patt{kind: pNot, left: b}, right: a})
}

func lpegRep(L *lua.LState) int {
	return pushPatt(L, &patt{kind: pRep, left: toPatt(L, 1), n: L.CheckInt(2)})
}

func lpegNot(L *lua.LState) int {
	return pushPatt(L, &patt{kind: pNot, left: toPatt(L, 1)})
}

func lpegAnd(L *lua.LState) int {
	return pushPatt(L, &patt{kind: pAnd, left: toPatt(L, 1)})
}

func lpegC(L *lua.LState) int {
	return pushPatt(L, &patt{kind: pCapture, cap: capSimple, left: toPatt(L, 1)})
}

func lpegCc(L *lua.LState) int {
	values := make([]lua.LValue, L.GetTop())
	for i := range values {
		values[i] = L.Get(i + 1)
	}
	return pushPatt(L, &patt{kind: pCapture, cap: capConst, values: values})
}

func lpegCp(L *lua.LState) int {
	return pushPatt(L, &patt{kind: pCapture, cap: capPosition})
}

func lpegCt(L *lua.LState) int {
	return pushPatt(L, &patt{kind: pCapture, cap: capTable, left: toPatt(L, 1)})
}

func lpegCg(L *lua.LState) int {
	p := &patt{kind: pCapture, cap: capGroup, left: toPatt(L, 1)}
	if L.GetTop() >= 2 && L.Get(2) != lua.LNil {
		p.name = L.Get(2)
	}
	return pushPatt(L, p)
}

func lpegCs(L *lua.LState) int {
	return pushPatt(L, &patt{kind: pCapture, cap: capSubst, left: toPatt(L, 1)})
}

func lpegFuncCapture(L *lua.LState) int {
	target := L.CheckAny(2)
	switch target.(type) {
	case *lua.LFunction, lua.LString, *lua.LTable, lua.LNumber:
	default:
		L.ArgError(2, "invalid replacement value")
	}
	return pushPatt(L, &patt{kind: pCapture, cap: capFunc, left: toPatt(L, 1), fn: target})
}

func lpegType(L *lua.LState) int {
	if ud, ok := L.Get(1).(*lua.LUserData); ok {
		if _, ok := ud.Value.(*patt); ok {
			L.Push(lua.LString("pattern"))
			return 1
		}
	}
	L.Push(lua.LNil)
	return 1
}

func lpegToString(L *lua.LState) int {
	L.Push(lua.LString(fmt.Sprintf("pattern: %p", toPatt(L, 1))))
	return 1
}

// match(p, subject [, init]) -> captures... | end position | nil
func lpegMatch(L *lua.LState) int {
	p := toPatt(L, 1)
	subject := L.CheckString(2)
	init := L.OptInt(3, 1)

	start := init - 1
	if init < 0 {
		start = len(subject) + init
	}
	if start < 0 {
		start = 0
	}
	if start > len(subject) {
		start = len(subject)
	}

	m := &matcher{L: L, subject: subject}
	end, ok := m.match(p, start)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	var out []lua.LValue
	for _, e := range m.caps {
		out = append(out, m.values(e)...)
	}
	if len(out) == 0 {
		L.Push(lua.LNumber(end + 1))
		return 1
	}
	for _, v := range out {
		L.Push(v)
	}
	return len(out)
}

func (m *matcher) match(p *patt, i int) (int, bool) {
	mark := len(m.caps)
	j, ok := m.step(p, i)
	if !ok {
		m.caps = m.caps[:mark]
	}
	return j, ok
}

func (m *matcher) step(p *patt, i int) (int, bool) {
	s := m.subject
	switch p.kind {
	case pLit:
		if strings.HasPrefix(s[i:], p.str) {
			return i + len(p.str), true
		}
		return i, false
	case pAny:
		if i+p.n <= len(s) {
			return i + p.n, true
		}
		return i, false
	case pShort:
		return i, len(s)-i < p.n
	case pTrue:
		return i, true
	case pFalse:
		return i, false
	case pSet:
		if i < len(s) && p.set[s[i]] {
			return i + 1, true
		}
		return i, false
	case pSeq:
		j, ok := m.match(p.left, i)
		if !ok {
			return i, false
		}
		return m.match(p.right, j)
	case pChoice:
		if j, ok := m.match(p.left, i); ok {
			return j, true
		}
		return m.match(p.right, i)
	case pRep:
		return m.repeat(p, i)
	case pNot:
		mark := len(m.caps)
		_, ok := m.match(p.left, i)
		m.caps = m.caps[:mark]
		return i, !ok
	case pAnd:
		mark := len(m.caps)
		_, ok := m.match(p.left, i)
		m.caps = m.caps[:mark]
		return i, ok
	case pCapture:
		return m.capture(p, i)
	case pGrammar:
		m.grammars = append(m.grammars, p.rules)
		j, ok := m.match(p.rules[p.start], i)
		m.grammars = m.grammars[:len(m.grammars)-1]
		return j, ok
	case pRef:
		return m.rule(p, i)
	}
	return i, false
}

func (m *matcher) repeat(p *patt, i int) (int, bool) {
	pos, count := i, 0
	for p.n >= 0 || count < -p.n {
		j, ok := m.match(p.left, pos)
		if !ok {
			break
		}
		count++
		if j == pos {
			// An empty match would loop forever; it satisfies any minimum.
			if p.n > count {
				count = p.n
			}
			break
		}
		pos = j
	}
	if p.n >= 0 && count < p.n {
		return i, false
	}
	return pos, true
}

func (m *matcher) capture(p *patt, i int) (int, bool) {
	mark := len(m.caps)
	j := i
	if p.left != nil {
		var ok bool
		if j, ok = m.match(p.left, i); !ok {
			return i, false
		}
	}
	children := make([]capEntry, len(m.caps)-mark)
	copy(children, m.caps[mark:])
	m.caps = append(m.caps[:mark], capEntry{p: p, start: i, end: j, children: children})
	return j, true
}

func (m *matcher) rule(p *patt, i int) (int, bool) {
	if len(m.grammars) == 0 {
		m.L.RaiseError("rule '%s' used outside a grammar", p.str)
	}
	rule, ok := m.grammars[len(m.grammars)-1][p.str]
	if !ok {
		m.L.RaiseError("rule '%s' undefined in given grammar", p.str)
	}

	m.depth++
	if m.depth > lpegMaxRuleDepth {
		m.L.RaiseError("pattern too complex (rule '%s' may be left recursive)", p.str)
	}
	j, matched := m.match(rule, i)
	m.depth--
	return j, matched
}

func (m *matcher) childValues(e capEntry) []lua.LValue {
	var out []lua.LValue
	for _, c := range e.children {
		out = append(out, m.values(c)...)
	}
	return out
}

func (m *matcher) values(e capEntry) []lua.LValue {
	whole := lua.LString(m.subject[e.start:e.end])

	switch e.p.cap {
	case capSimple:
		return append([]lua.LValue{whole}, m.childValues(e)...)
	case capConst:
		return e.p.values
	case capPosition:
		return []lua.LValue{lua.LNumber(e.start + 1)}
	case capGroup:
		if e.p.name != nil {
			return nil
		}
		return m.childValues(e)
	case capTable:
		t := m.L.NewTable()
		for _, c := range e.children {
			if c.p.cap == capGroup && c.p.name != nil {
				if vals := m.childValues(c); len(vals) > 0 {
					t.RawSet(c.p.name, vals[0])
				}
				continue
			}
			for _, v := range m.values(c) {
				t.Append(v)
			}
		}
		return []lua.LValue{t}
	case capSubst:
		var sb strings.Builder
		pos := e.start
		for _, c := range e.children {
			sb.WriteString(m.subject[pos:c.start])
			vals := m.values(c)
			if len(vals) == 0 {
				sb.WriteString(m.subject[c.start:c.end])
			} else {
				sb.WriteString(m.replacement(vals[0]))
			}
			pos = c.end
		}
		sb.WriteString(m.subject[pos:e.end])
		return []lua.LValue{lua.LString(sb.String())}
	case capFunc:
		return m.applyFunc(e, whole)
	}
	return nil
}

func (m *matcher) replacement(v lua.LValue) string {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return val.String()
	}
	m.L.RaiseError("invalid replacement value (a %s)", v.Type())
	return ""
}

func (m *matcher) applyFunc(e capEntry, whole lua.LString) []lua.LValue {
	args := m.childValues(e)
	if len(e.children) == 0 {
		args = []lua.LValue{whole}
	}

	switch target := e.p.fn.(type) {
	case *lua.LFunction:
		L := m.L
		top := L.GetTop()
		L.Push(target)
		for _, a := range args {
			L.Push(a)
		}
		L.Call(len(args), lua.MultRet)
		n := L.GetTop() - top
		out := make([]lua.LValue, n)
		for i := 0; i < n; i++ {
			out[i] = L.Get(top + 1 + i)
		}
		L.SetTop(top)
		return out
	case lua.LString:
		return []lua.LValue{lua.LString(m.format(string(target), whole, args))}
	case *lua.LTable:
		if len(args) == 0 {
			return nil
		}
		if v := m.L.GetTable(target, args[0]); v != lua.LNil {
			return []lua.LValue{v}
		}
		return nil
	case lua.LNumber:
		n := int(target)
		if n == 0 {
			return nil
		}
		if n < 0 || n > len(args) {
			m.L.RaiseError("no capture '%d'", n)
		}
		return []lua.LValue{args[n-1]}
	}
	return nil
}

// format expands %0 (whole match), %1..%9 (captures) and %% in a replacement string.
func (m *matcher) format(tmpl string, whole lua.LString, args []lua.LValue) string {
	var sb strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '%' || i+1 >= len(tmpl) {
			sb.WriteByte(c)
			continue
		}
		i++
		d := tmpl[i]
		switch {
		case d == '0':
			sb.WriteString(string(whole))
		case d >= '1' && d <= '9':
			idx := int(d - '1')
			if idx >= len(args) {
				m.L.RaiseError("invalid capture index %%%c", d)
			}
			sb.WriteString(m.replacement(args[idx]))
		default:
			sb.WriteByte(d)
		}
	}
	return sb.String()
}
