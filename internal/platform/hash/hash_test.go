package hash

import "testing"

func TestText_TrimsAndSeparates(t *testing.T) {
	if Text("a", "b") != Text(" a ", "b\n") {
		t.Fatalf("surrounding whitespace should not change the hash")
	}
	if Text("ab", "") == Text("a", "b") {
		t.Fatalf("field boundaries must matter")
	}
}

func TestBytes(t *testing.T) {
	const emptySHA = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Bytes(nil); got != emptySHA {
		t.Fatalf("got %s", got)
	}
}
