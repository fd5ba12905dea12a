package langmeta

import "testing"

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "pt_br", want: "pt-BR"},
		{in: " EN-us ", want: "en-US"},
		{in: "ru", want: "ru"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		got := canonicalize(tc.in)
		if got != tc.want {
			t.Fatalf("canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		got := Resolve("en-GB")
		if got.English != "English (UK)" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("normalized match", func(t *testing.T) {
		got := Resolve("pt_br")
		if got.English != "Portuguese (Brazil)" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("base fallback", func(t *testing.T) {
		got := Resolve("fr-LU")
		if got.English != "French" || got.Native != "Français" {
			t.Fatalf("unexpected fallback result: %#v", got)
		}
	})

	t.Run("unknown passthrough", func(t *testing.T) {
		got := Resolve("zz-ZZ")
		if got.English != "zz-ZZ" {
			t.Fatalf("unexpected unknown result: %#v", got)
		}
	})
}

func TestKnown(t *testing.T) {
	if !Known("de") || !Known("pt_br") || !Known("fr-LU") {
		t.Fatal("expected known codes to resolve")
	}
	if Known("zz-ZZ") {
		t.Fatal("expected zz-ZZ to be unknown")
	}
}

func TestSuffix(t *testing.T) {
	if got := Suffix("pt_br"); got != "pt-BR" {
		t.Fatalf("Suffix(pt_br) = %q, want pt-BR", got)
	}
}
