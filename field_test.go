package cstruct

import (
	"reflect"
	"testing"
)

func TestParseFieldsBasic(t *testing.T) {
	testCases := []struct {
		test     string
		expected []FieldSpec
	}{
		{
			"int a;",
			[]FieldSpec{{TypeText: "int", Name: "a"}},
		},
		{
			"int a, b, c;",
			[]FieldSpec{
				{TypeText: "int", Name: "a"},
				{TypeText: "int", Name: "b"},
				{TypeText: "int", Name: "c"},
			},
		},
		{
			"unsigned int count;",
			[]FieldSpec{{TypeText: "unsigned int", Name: "count"}},
		},
		{
			"char *name;",
			[]FieldSpec{{TypeText: "char *", Name: "name"}},
		},
		{
			"const char *label;",
			[]FieldSpec{{Qualifiers: []string{"const"}, TypeText: "char *", Name: "label"}},
		},
		{
			"unsigned a:4;",
			[]FieldSpec{{TypeText: "unsigned", Name: "a", BitWidth: "4"}},
		},
		{
			"int matrix[4][4];",
			[]FieldSpec{{TypeText: "int", Name: "matrix", ArrayDims: []string{"4", "4"}}},
		},
		{
			"int tail[];",
			[]FieldSpec{{TypeText: "int", Name: "tail", ArrayDims: []string{""}}},
		},
	}

	for _, tc := range testCases {
		got, err := parseFields(tc.test)
		if err != nil {
			t.Fatalf("parseFields(%q): %v", tc.test, err)
		}
		if !reflect.DeepEqual(got, tc.expected) {
			t.Errorf("parseFields(%q) = %+v, want %+v", tc.test, got, tc.expected)
		}
	}
}

func TestParseFieldsRejectsInlineAggregate(t *testing.T) {
	_, err := parseFields("struct { int a; } nested;")
	if err == nil {
		t.Fatal("expected an error for an inline anonymous aggregate field")
	}
	var niErr *NotImplementedError
	if !castNotImplemented(err, &niErr) {
		t.Fatalf("err = %v, want *NotImplementedError", err)
	}
}

func castNotImplemented(err error, target **NotImplementedError) bool {
	ni, ok := err.(*NotImplementedError)
	if ok {
		*target = ni
	}
	return ok
}

func TestSplitTopLevelCommas(t *testing.T) {
	testCases := []struct {
		test     string
		expected []string
	}{
		{"a, b, c", []string{"a", " b", " c"}},
		{"a[1,2], b", []string{"a[1,2]", " b"}},
		{"a(1,2), b", []string{"a(1,2)", " b"}},
		{"a", []string{"a"}},
	}

	for _, tc := range testCases {
		got := splitTopLevelCommas(tc.test)
		if !reflect.DeepEqual(got, tc.expected) {
			t.Errorf("splitTopLevelCommas(%q) = %v, want %v", tc.test, got, tc.expected)
		}
	}
}
