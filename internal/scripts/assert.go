package scripts

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

const defaultDetail = "assertion error"

// formatValue renders a value for assertion messages. Only scalars are
// rendered; everything else is a placeholder.
func formatValue(v lua.LValue) string {
	switch v.Type() {
	case lua.LTNil:
		return "nil"
	case lua.LTBool, lua.LTNumber, lua.LTString:
		return v.String()
	case lua.LTTable:
		return "[table]"
	case lua.LTFunction:
		return "[function]"
	case lua.LTThread:
		return "[thread]"
	case lua.LTUserData:
		return "[userdata]"
	case lua.LTChannel:
		return "[channel]"
	default:
		return "[" + v.Type().String() + "]"
	}
}

// valuesEqual compares scalars by value and everything else by identity.
func valuesEqual(a, b lua.LValue) bool {
	if a.Type() != b.Type() {
		return false
	}
	return a == b
}

func contains(haystack, needle lua.LValue) bool {
	switch h := haystack.(type) {
	case lua.LString:
		switch n := needle.(type) {
		case lua.LString, lua.LNumber:
			return strings.Contains(string(h), n.String())
		}
		return false
	case *lua.LTable:
		found := false
		h.ForEach(func(_, v lua.LValue) {
			if !found && valuesEqual(v, needle) {
				found = true
			}
		})
		return found
	}
	return false
}

func assertEq(L *lua.LState) int {
	expected, actual := L.Get(1), L.Get(2)
	if !valuesEqual(expected, actual) {
		raise(L, &ruleError{message: fmt.Sprintf("%s - expected %s to equal %s",
			L.OptString(3, defaultDetail), formatValue(expected), formatValue(actual))})
	}
	return 0
}

func assertNe(L *lua.LState) int {
	expected, actual := L.Get(1), L.Get(2)
	if valuesEqual(expected, actual) {
		raise(L, &ruleError{message: fmt.Sprintf("%s - expected %s to not equal %s",
			L.OptString(3, defaultDetail), formatValue(expected), formatValue(actual))})
	}
	return 0
}

func assertContains(L *lua.LState) int {
	haystack, needle := L.Get(1), L.Get(2)
	if !contains(haystack, needle) {
		raise(L, &ruleError{message: fmt.Sprintf("%s - expected %s to contain %s",
			L.OptString(3, defaultDetail), formatValue(haystack), formatValue(needle))})
	}
	return 0
}
