package cstruct

import "strings"

// scrub strips "// ..." end-of-line comments and "/* ... */" block comments
// from preprocessed C source text, leaving string and character literals
// untouched. It is the only stage permitted to mutate input text.
func scrub(src string) string {
	var out strings.Builder
	out.Grow(len(src))

	runes := []rune(src)
	n := len(runes)

	for i := 0; i < n; i++ {
		c := runes[i]

		switch {
		case c == '"' || c == '\'':
			quote := c
			out.WriteRune(c)
			i++
			for i < n {
				out.WriteRune(runes[i])
				if runes[i] == '\\' && i+1 < n {
					i++
					out.WriteRune(runes[i])
					i++
					continue
				}
				if runes[i] == quote {
					i++
					break
				}
				i++
			}
			i--
		case c == '/' && i+1 < n && runes[i+1] == '/':
			for i < n && runes[i] != '\n' {
				i++
			}
			if i < n {
				out.WriteRune('\n')
			}
		case c == '/' && i+1 < n && runes[i+1] == '*':
			i += 2
			for i+1 < n && !(runes[i] == '*' && runes[i+1] == '/') {
				if runes[i] == '\n' {
					out.WriteRune('\n')
				}
				i++
			}
			i++ // skip closing '/'
		default:
			out.WriteRune(c)
		}
	}

	return out.String()
}
