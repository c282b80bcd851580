package cstruct

import (
	"regexp"
	"strings"
)

// This file implements the declaration extractor: it walks scrubbed source
// text, splits it into top-level declaration statements by real
// brace-matching (never pattern-based recursion, which backtracks badly on
// nested bodies), and classifies each into a typedef alias, an aggregate
// record, or a pointer-aggregate alias.

var (
	aggregateHeadRe = regexp.MustCompile(
		`^(?:typedef\s+)?(?:(__attribute__\(\(packed\)\))\s+)?(struct|union|enum)\s*([A-Za-z_]\w*)?\s*$`)

	packedTailRe = regexp.MustCompile(`__attribute__\(\(packed\)\)`)

	simpleTypedefHeadRe = regexp.MustCompile(`^typedef\s+(.*)$`)

	nameListSplitRe = regexp.MustCompile(`\s*,\s*`)
)

// parseChunk extracts every top-level declaration found in a single source
// chunk and registers it into the environment's tables.
func (e *Env) parseChunk(raw string) error {
	text := scrub(raw)

	for _, decl := range splitTopLevelDecls(text) {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}

		if idx := strings.IndexByte(decl, '{'); idx >= 0 {
			if err := e.parseAggregateDecl(decl, idx); err != nil {
				return err
			}
			continue
		}

		e.parseSimpleTypedef(decl)
	}

	return nil
}

// parseAggregateDecl handles "[typedef] [packed] (struct|union|enum) <tag?>
// { <body> } <name_list?>" declarations. braceIdx is the index of the
// top-level '{' within decl.
func (e *Env) parseAggregateDecl(decl string, braceIdx int) error {
	head := strings.TrimSpace(decl[:braceIdx])
	body, tail, err := splitBalancedBody(decl[braceIdx:])
	if err != nil {
		return err
	}

	m := aggregateHeadRe.FindStringSubmatch(head)
	if m == nil {
		// Not an aggregate declaration we recognize (e.g. a function body);
		// ignore it, the core only cares about type declarations.
		return nil
	}

	packed := m[1] != "" || packedTailRe.MatchString(tail)
	tail = packedTailRe.ReplaceAllString(tail, "")

	var kind AggregateKind
	switch m[2] {
	case "struct":
		kind = StructKind
	case "union":
		kind = UnionKind
	case "enum":
		kind = EnumKind
	}

	tag := m[3]
	names := splitNameList(tail)

	record := &AggregateRecord{Tag: tag, Kind: kind, Body: body}
	if packed {
		record.Pack = 1
	}

	keyed := false
	for _, n := range names {
		if n == "" {
			continue
		}
		if strings.HasPrefix(n, "*") {
			name := strings.TrimSpace(strings.TrimPrefix(n, "*"))
			if name == "" {
				continue
			}
			if tag != "" {
				e.pointerAggregates[name] = m[2] + " " + tag
			} else {
				// anonymous aggregate referenced only through a pointer
				// typedef: key the record under a synthetic tag so the
				// pointer alias has something concrete to point at.
				synthetic := "$anon$" + name
				if _, exists := e.aggregates[synthetic]; !exists {
					e.aggregates[synthetic] = record
				}
				e.pointerAggregates[name] = synthetic
			}
			keyed = true
			continue
		}
		if _, exists := e.aggregates[n]; !exists {
			e.aggregates[n] = record
		}
		if packed {
			e.packOverrides[n] = 1
		}
		keyed = true
	}

	if !keyed && tag != "" {
		key := m[2] + " " + tag
		if _, exists := e.aggregates[key]; !exists {
			e.aggregates[key] = record
		}
		if _, exists := e.aggregates[tag]; !exists {
			e.aggregates[tag] = record
		}
		if packed {
			e.packOverrides[key] = 1
			e.packOverrides[tag] = 1
		}
	}

	// An enum's constants are global regardless of whether the enum
	// itself carries a tag or a name list: evaluate its body even when
	// it is anonymous and otherwise unreferenced.
	if kind == EnumKind {
		e.evalEnumBody(tag, names, record.Body)
	}

	return nil
}

// parseSimpleTypedef handles "typedef <base> <n1>[ <dim>], <n2>, …;" and
// the pointer-aggregate form "typedef (struct|union) <tag> *name;".
//
// Splitting on top-level commas before applying the declarator regexes
// (rather than one monolithic regex over the whole declaration) avoids an
// ambiguity a single pattern can't resolve on its own: both the base type
// text and the name list can legitimately contain internal spaces ("unsigned
// int" / "name1, name2"), so a name-list pattern permissive enough to admit
// commas and spaces can't be told apart, by a greedy or lazy quantifier
// alone, from a multi-word base type. Splitting first removes the
// ambiguity: each comma segment has exactly one declarator to parse, the
// same approach field.go uses for multi-name field declarations.
func (e *Env) parseSimpleTypedef(decl string) {
	m := simpleTypedefHeadRe.FindStringSubmatch(decl)
	if m == nil {
		return
	}

	segments := splitTopLevelCommas(m[1])
	if len(segments) == 0 {
		return
	}

	fm := firstDeclaratorRe.FindStringSubmatch(strings.TrimSpace(segments[0]))
	if fm == nil {
		return
	}
	base := strings.TrimSpace(fm[1])
	e.registerTypedefName(base, fm[2], fm[3])

	for _, seg := range segments[1:] {
		sm := subsequentDeclaratorRe.FindStringSubmatch(strings.TrimSpace(seg))
		if sm == nil {
			continue
		}
		e.registerTypedefName(base, sm[1], sm[2])
	}
}

// registerTypedefName records one typedef'd name: as a pointer-aggregate
// alias when the declarator carries at least one '*', otherwise as a plain
// typedef alias to base. Array dimensions on the declarator are dropped:
// the typedef target is the base type, and array dimensions are
// re-resolved at whichever field later uses this name.
func (e *Env) registerTypedefName(base, stars, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if stars != "" {
		e.pointerAggregates[name] = base
		return
	}
	if _, exists := e.typedefs[name]; !exists {
		e.typedefs[name] = base
	}
}

func splitNameList(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := nameListSplitRe.Split(s, -1)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// splitTopLevelDecls scans scrubbed source text and splits it into
// top-level declaration statements, one per ';' encountered while the
// brace/string nesting depth is zero. A statement that opens a brace block
// absorbs every ';' inside that block (and any nested blocks) as part of
// itself: this is real brace-matching, not a regex, so nested aggregates
// never confuse the split.
func splitTopLevelDecls(text string) []string {
	var (
		decls []string
		start int
		depth int
	)

	runes := []rune(text)
	n := len(runes)

	for i := 0; i < n; i++ {
		switch runes[i] {
		case '"', '\'':
			quote := runes[i]
			i++
			for i < n && runes[i] != quote {
				if runes[i] == '\\' {
					i++
				}
				i++
			}
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ';':
			if depth == 0 {
				decls = append(decls, strings.TrimSpace(string(runes[start:i])))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		decls = append(decls, rest)
	}
	return decls
}

// splitBalancedBody takes text starting at a '{' and returns the text
// strictly between that brace and its matching close (real brace-matching,
// never a pattern match), alongside everything following the close brace.
func splitBalancedBody(text string) (body, tail string, err error) {
	runes := []rune(text)
	if len(runes) == 0 || runes[0] != '{' {
		return "", "", &NotImplementedError{What: "malformed aggregate body"}
	}

	depth := 0
	for i, r := range runes {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return string(runes[1:i]), string(runes[i+1:]), nil
			}
		}
	}
	return "", "", &NotImplementedError{What: "unbalanced braces in aggregate body"}
}
