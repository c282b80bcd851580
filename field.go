package cstruct

import (
	"regexp"
	"strings"
)

// FieldSpec is the field parser's output shape: an ordered
// field entry carrying its qualifiers, base type text, name, array
// dimension expressions (outer to inner, as written), and a raw bit-field
// width expression when present.
type FieldSpec struct {
	Qualifiers []string
	TypeText   string
	Name       string
	ArrayDims  []string // raw expression text per "[...]" group, outer to inner
	BitWidth   string   // raw bit-field width text, "" if not a bit-field
}

var (
	qualifierRe = regexp.MustCompile(`^(static|const|volatile)\s+`)

	firstDeclaratorRe = regexp.MustCompile(
		`^(.*?)(\**)\s*([A-Za-z_]\w*)((?:\s*\[[^\]]*\])*)(?:\s*:\s*([^,]+))?$`)

	subsequentDeclaratorRe = regexp.MustCompile(
		`^(\**)\s*([A-Za-z_]\w*)((?:\s*\[[^\]]*\])*)(?:\s*:\s*([^,]+))?$`)

	bracketGroupRe = regexp.MustCompile(`\[([^\]]*)\]`)
)

// parseFields parses the raw body text of a struct or union into an
// ordered list of FieldSpec. Nested inline aggregate bodies (a literal '{'
// inside the field text) are rejected with NotImplementedError.
func parseFields(body string) ([]FieldSpec, error) {
	var specs []FieldSpec

	for _, stmt := range splitTopLevelDecls(body) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if strings.ContainsRune(stmt, '{') {
			return nil, &NotImplementedError{What: "inline anonymous aggregate field"}
		}

		fields, err := parseFieldStatement(stmt)
		if err != nil {
			return nil, err
		}
		specs = append(specs, fields...)
	}

	return specs, nil
}

func parseFieldStatement(stmt string) ([]FieldSpec, error) {
	var qualifiers []string
	for {
		m := qualifierRe.FindStringSubmatch(stmt)
		if m == nil {
			break
		}
		qualifiers = append(qualifiers, m[1])
		stmt = strings.TrimSpace(stmt[len(m[0]):])
	}

	segments := splitTopLevelCommas(stmt)
	if len(segments) == 0 {
		return nil, nil
	}

	m := firstDeclaratorRe.FindStringSubmatch(strings.TrimSpace(segments[0]))
	if m == nil {
		return nil, &UnknownTypeError{Text: segments[0]}
	}

	baseType := strings.TrimSpace(m[1])
	var specs []FieldSpec
	specs = append(specs, buildFieldSpec(qualifiers, baseType, m[2], m[3], m[4], m[5]))

	for _, seg := range segments[1:] {
		sm := subsequentDeclaratorRe.FindStringSubmatch(strings.TrimSpace(seg))
		if sm == nil {
			return nil, &UnknownTypeError{Text: seg}
		}
		specs = append(specs, buildFieldSpec(qualifiers, baseType, sm[1], sm[2], sm[3], sm[4]))
	}

	return specs, nil
}

func buildFieldSpec(qualifiers []string, baseType, stars, name, brackets, bitfield string) FieldSpec {
	typeText := baseType
	for i := 0; i < len(stars); i++ {
		typeText += " *"
	}

	var dims []string
	for _, bm := range bracketGroupRe.FindAllStringSubmatch(brackets, -1) {
		dims = append(dims, strings.TrimSpace(bm[1]))
	}

	return FieldSpec{
		Qualifiers: qualifiers,
		TypeText:   typeText,
		Name:       name,
		ArrayDims:  dims,
		BitWidth:   strings.TrimSpace(bitfield),
	}
}

// splitTopLevelCommas splits s on commas that are not nested inside
// brackets or parens.
func splitTopLevelCommas(s string) []string {
	var (
		parts []string
		start int
		depth int
	)
	runes := []rune(s)
	for i, r := range runes {
		switch r {
		case '[', '(':
			depth++
		case ']', ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, string(runes[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, string(runes[start:]))
	return parts
}
