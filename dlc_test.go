package cancomm

import "testing"

var legalLens = map[uint8]bool{
	0: true, 1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true, 8: true,
	12: true, 16: true, 20: true, 24: true, 32: true, 48: true, 64: true,
}

func TestNormalizeLen_Properties(t *testing.T) {
	for n := 0; n <= MaxFDDataLen; n++ {
		got := NormalizeLen(n)
		if int(got) < n {
			t.Fatalf("NormalizeLen(%d) = %d, below input", n, got)
		}
		if !legalLens[got] {
			t.Fatalf("NormalizeLen(%d) = %d, not a wire length", n, got)
		}
		if again := NormalizeLen(int(got)); again != got {
			t.Fatalf("NormalizeLen not idempotent at %d: %d then %d", n, got, again)
		}
		if legalLens[uint8(n)] && int(got) != n {
			t.Fatalf("NormalizeLen(%d) = %d, changed a legal length", n, got)
		}
		if n > 0 && got < NormalizeLen(n-1) {
			t.Fatalf("NormalizeLen not monotonic at %d", n)
		}
	}
}

func TestNormalizeLen_Table(t *testing.T) {
	cases := []struct {
		in   int
		want uint8
	}{
		{0, 0}, {4, 4}, {8, 8}, {9, 12}, {12, 12}, {13, 16}, {17, 20},
		{21, 24}, {25, 32}, {33, 48}, {48, 48}, {49, 64}, {64, 64},
		{65, 64}, {1000, 64}, {-3, 0},
	}
	for _, tc := range cases {
		if got := NormalizeLen(tc.in); got != tc.want {
			t.Fatalf("NormalizeLen(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDLCConversions(t *testing.T) {
	for dlc := uint8(0); dlc < 16; dlc++ {
		n := DLCToLen(dlc)
		if back := LenToDLC(int(n)); back != dlc {
			t.Fatalf("LenToDLC(DLCToLen(%d)) = %d", dlc, back)
		}
	}
	if DLCToLen(200) != 64 {
		t.Fatalf("DLCToLen should clamp to 64")
	}
	if LenToDLC(20) != 11 {
		t.Fatalf("LenToDLC(20) = %d, want 11", LenToDLC(20))
	}
}
