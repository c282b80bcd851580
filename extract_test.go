package cstruct

import "testing"

func TestParseSimpleTypedefMultiName(t *testing.T) {
	env := NewEnv()
	env.AddSource("typedef unsigned int u32_t, word_t;")
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := env.typedefs["u32_t"]; got != "unsigned int" {
		t.Errorf("typedefs[u32_t] = %q, want %q", got, "unsigned int")
	}
	if got := env.typedefs["word_t"]; got != "unsigned int" {
		t.Errorf("typedefs[word_t] = %q, want %q", got, "unsigned int")
	}
}

func TestParseSimpleTypedefArraySuffixStripped(t *testing.T) {
	env := NewEnv()
	env.AddSource("typedef char buf16_t[16];")
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := env.typedefs["buf16_t"]; got != "char" {
		t.Errorf("typedefs[buf16_t] = %q, want %q", got, "char")
	}
}

func TestParsePointerAggregateTypedef(t *testing.T) {
	env := NewEnv()
	env.AddSource(`
struct node { int value; };
typedef struct node *node_ptr_t;
`)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	target, ok := env.pointerAggregates["node_ptr_t"]
	if !ok {
		t.Fatal("pointerAggregates[node_ptr_t] not registered")
	}
	if target != "struct node" {
		t.Errorf("pointerAggregates[node_ptr_t] = %q, want %q", target, "struct node")
	}

	leaf, isPrimitive, sub, err := env.resolveTypeRef("node_ptr_t", map[string]bool{})
	if err != nil {
		t.Fatalf("resolveTypeRef: %v", err)
	}
	if !isPrimitive || sub != nil || leaf != PointerWord {
		t.Errorf("resolveTypeRef(node_ptr_t) = (%v, %v, %v), want (PointerWord, true, nil)", leaf, isPrimitive, sub)
	}
}

func TestParsePackedAttributeDetection(t *testing.T) {
	env := NewEnv()
	env.AddSource(`typedef __attribute__((packed)) struct { char a; int b; } Packed;`)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	size, err := env.SizeOf("Packed")
	if err != nil {
		t.Fatalf("SizeOf: %v", err)
	}
	if size != 5 {
		t.Errorf("size = %d, want 5 (byte-exact, no padding)", size)
	}
}

func TestParseUnpackedStructPadsToAlignment(t *testing.T) {
	env := NewEnv()
	env.AddSource(`typedef struct { char a; int b; } Unpacked;`)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	size, err := env.SizeOf("Unpacked")
	if err != nil {
		t.Fatalf("SizeOf: %v", err)
	}
	if size != 8 {
		t.Errorf("size = %d, want 8 (char padded to int alignment)", size)
	}
}

func TestAnonymousAggregateKeyedByNameList(t *testing.T) {
	env := NewEnv()
	env.AddSource(`typedef struct { int x; int y; } point_t, point_alias_t;`)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, name := range []string{"point_t", "point_alias_t"} {
		if _, ok := env.aggregates[name]; !ok {
			t.Errorf("aggregates[%s] not registered", name)
		}
	}
}

func TestSplitTopLevelDeclsNestedBraces(t *testing.T) {
	text := `struct a { struct b { int x; }; int y; }; int z;`
	decls := splitTopLevelDecls(text)
	if len(decls) != 2 {
		t.Fatalf("got %d decls, want 2: %v", len(decls), decls)
	}
	if decls[1] != "int z" {
		t.Errorf("decls[1] = %q, want %q", decls[1], "int z")
	}
}

func TestSplitBalancedBodyDeepNesting(t *testing.T) {
	text := `{ a { b { c } d } e } tail`
	body, tail, err := splitBalancedBody(text)
	if err != nil {
		t.Fatalf("splitBalancedBody: %v", err)
	}
	if body != " a { b { c } d } e " {
		t.Errorf("body = %q, want %q", body, " a { b { c } d } e ")
	}
	if tail != " tail" {
		t.Errorf("tail = %q, want %q", tail, " tail")
	}
}

func TestSplitBalancedBodyUnbalanced(t *testing.T) {
	_, _, err := splitBalancedBody("{ a { b }")
	if err == nil {
		t.Fatal("expected an error for unbalanced braces")
	}
}
