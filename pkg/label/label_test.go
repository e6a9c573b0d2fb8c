package label

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Label
	}{
		{"//app/foo:lib", Label{Package: "app/foo", Name: "lib"}},
		{"//app/foo", Label{Package: "app/foo", Name: "foo"}},
		{"@//app/foo:lib", Label{Package: "app/foo", Name: "lib"}},
		{"@@//app/foo:lib", Label{Package: "app/foo", Name: "lib"}},
		{"@maven//:guava", Label{Repo: "maven", Name: "guava"}},
		{"@@rules_java~//java:jdk", Label{Repo: "rules_java~", Package: "java", Name: "jdk"}},
		{"//:root", Label{Name: "root"}},
		{"  //lib/bar:bar  ", Label{Package: "lib/bar", Name: "bar"}},
		{"//pkg:sub/File.java", Label{Package: "pkg", Name: "sub/File.java"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"", "   ", "app/foo:lib", "@maven", "//", "//app:", "///app:lib", "//app/:lib"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", input)
			}
			if !errors.Is(err, ErrInvalidLabel) {
				t.Errorf("Parse(%q) error = %v, want ErrInvalidLabel", input, err)
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"//app/foo:lib", "@maven//:guava", "//:root", "@ext//e/f:g"} {
		l := MustParse(s)
		if l.String() != s {
			t.Errorf("String() = %q, want %q", l.String(), s)
		}
		if again := MustParse(l.String()); again != l {
			t.Errorf("round trip of %q produced %+v", s, again)
		}
	}
}

func TestIsExternal(t *testing.T) {
	if MustParse("//a:b").IsExternal() {
		t.Error("//a:b should not be external")
	}
	if MustParse("@//a:b").IsExternal() {
		t.Error("@//a:b is a self-reference, not external")
	}
	if !MustParse("@maven//:guava").IsExternal() {
		t.Error("@maven//:guava should be external")
	}
}

func TestSortOrder(t *testing.T) {
	labels := []Label{
		MustParse("//b:a"),
		MustParse("@ext//a:a"),
		MustParse("//a:z"),
		MustParse("//a:b"),
	}
	Sort(labels)
	want := []string{"//a:b", "//a:z", "//b:a", "@ext//a:a"}
	got := Strings(labels)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sorted = %v, want %v", got, want)
		}
	}
}

func TestSetOperations(t *testing.T) {
	a, b, c := MustParse("//p:a"), MustParse("//p:b"), MustParse("//p:c")

	s1 := NewSet(a, b)
	s2 := NewSet(b, c)

	if got := s1.Intersect(s2); !got.Equal(NewSet(b)) {
		t.Errorf("Intersect = %v, want {b}", got.Sorted())
	}
	if got := s1.Union(s2); got.Len() != 3 {
		t.Errorf("Union has %d members, want 3", got.Len())
	}
	if s1.Disjoint(s2) {
		t.Error("s1 and s2 share //p:b")
	}
	if !NewSet(a).Disjoint(NewSet(c)) {
		t.Error("{a} and {c} should be disjoint")
	}
	if s1.Len() != 2 {
		t.Error("Union must not modify the receiver")
	}

	var nilSet Set
	if nilSet.Has(a) {
		t.Error("nil set should not contain anything")
	}
}

func TestSetMarshalJSON(t *testing.T) {
	s := NewSet(MustParse("//p:b"), MustParse("//p:a"))
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `["//p:a","//p:b"]` {
		t.Errorf("Marshal = %s", data)
	}
}
