package format

import "testing"

func TestEscapeMarkdownV1(t *testing.T) {
	got := Escape("Pune_Bypass *main* [gate]")
	if want := `Pune\_Bypass \*main\* \[gate]`; got != want {
		t.Fatalf("Escape = %q, want %q", got, want)
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	got, err := EscapeMarkdown("3A. Ramesh (M)!", MarkdownV2)
	if err != nil {
		t.Fatalf("escape: %v", err)
	}
	if want := `3A\. Ramesh \(M\)\!`; got != want {
		t.Fatalf("EscapeMarkdown = %q, want %q", got, want)
	}
	if _, err := EscapeMarkdown("x", 3); err == nil {
		t.Fatal("expected unsupported version error")
	}
}
