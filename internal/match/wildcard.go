package match

import "strings"

// WildcardPattern is a compiled '*' glob over metric names.
// Compile once, match many.
type WildcardPattern struct {
	exact    string
	prefix   string
	suffix   string
	middles  []string
	matchAll bool
	isExact  bool
}

// CompileWildcard compiles pattern into a reusable matcher.
// Params: pattern may contain '*' wildcards.
// Returns: compiled matcher and false when pattern is blank.
func CompileWildcard(pattern string) (WildcardPattern, bool) {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" {
		return WildcardPattern{}, false
	}
	if strings.Trim(trimmed, "*") == "" {
		return WildcardPattern{matchAll: true}, true
	}
	if !strings.Contains(trimmed, "*") {
		return WildcardPattern{exact: trimmed, isExact: true}, true
	}

	segments := strings.Split(trimmed, "*")
	compiled := WildcardPattern{}
	if segments[0] != "" {
		compiled.prefix = segments[0]
	}
	if last := segments[len(segments)-1]; last != "" {
		compiled.suffix = last
	}
	for _, segment := range segments[1 : len(segments)-1] {
		if segment != "" {
			compiled.middles = append(compiled.middles, segment)
		}
	}
	return compiled, true
}

// Match reports whether value satisfies the compiled pattern.
// Params: value is the compared text.
// Returns: true on match.
func (p WildcardPattern) Match(value string) bool {
	if p.matchAll {
		return true
	}
	if p.isExact {
		return value == p.exact
	}

	rest := value
	if p.prefix != "" {
		if !strings.HasPrefix(rest, p.prefix) {
			return false
		}
		rest = rest[len(p.prefix):]
	}
	if p.suffix != "" {
		if !strings.HasSuffix(rest, p.suffix) {
			return false
		}
		rest = rest[:len(rest)-len(p.suffix)]
	}

	for _, middle := range p.middles {
		at := strings.Index(rest, middle)
		if at < 0 {
			return false
		}
		rest = rest[at+len(middle):]
	}
	return true
}

// WildcardMatch is a one-shot compile-and-match helper.
// Params: pattern may contain '*' wildcards; value is the compared text.
// Returns: true on match; blank patterns never match.
func WildcardMatch(pattern, value string) bool {
	compiled, ok := CompileWildcard(pattern)
	if !ok {
		return false
	}
	return compiled.Match(value)
}
