package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	if Sum([]byte("abc")) != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("unexpected digest %q", Sum([]byte("abc")))
	}
}

func TestRevision_SeparatesTitleAndBody(t *testing.T) {
	if Revision("ab", "c") == Revision("a", "bc") {
		t.Error("title/body boundary must affect the checksum")
	}
	if Revision("Hello", "A") != Revision("Hello", "A") {
		t.Error("checksum must be deterministic")
	}
}
