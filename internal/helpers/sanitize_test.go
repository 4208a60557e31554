package helpers

import "testing"

func TestPlainTextRemovesTagsAndScripts(t *testing.T) {
	input := `<p>Hello <strong>world</strong><script>alert('x')</script></p>`
	if got := PlainText(input); got != "Hello world" {
		t.Fatalf("expected %q, got %q", "Hello world", got)
	}
}

func TestPlainTextDecodesEntitiesAndCollapsesSpace(t *testing.T) {
	input := "<p>Ads &amp; privacy</p>\n\n<p>  in   Chrome</p>"
	want := "Ads & privacy in Chrome"
	if got := PlainText(input); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestExcerptTruncatesOnRunes(t *testing.T) {
	got := Excerpt("<b>héllo wörld</b>", 5)
	if got != "héllo…" {
		t.Fatalf("unexpected excerpt %q", got)
	}
	if got := Excerpt("short", 50); got != "short" {
		t.Fatalf("unexpected excerpt %q", got)
	}
}

func TestContainsFold(t *testing.T) {
	if !ContainsFold("The Privacy Sandbox update", "sandbox") {
		t.Fatal("expected match")
	}
	if ContainsFold("Chrome 120 release", "privacy", "sandbox") {
		t.Fatal("unexpected match")
	}
}
