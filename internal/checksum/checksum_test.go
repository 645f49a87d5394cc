package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	a := Sum([]byte("<h1>slide</h1>"))
	b := Sum([]byte("<h1>slide</h1>"))
	if a != b {
		t.Errorf("checksum not stable: %q vs %q", a, b)
	}
	if a == Sum([]byte("<h1>other</h1>")) {
		t.Error("different content should produce different checksums")
	}
}
