package wasmemit

import "testing"

func TestEncodeLEB128Unsigned(t *testing.T) {
	cases := []struct {
		in   uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xe5, 0x8e, 0x26}},
	}
	for _, c := range cases {
		got := encodeLEB128U(c.in)
		if string(got) != string(c.want) {
			t.Errorf("encodeLEB128U(%d) = %x, want %x", c.in, got, c.want)
		}
	}
}

func TestEncodeLEB128Signed(t *testing.T) {
	cases := []struct {
		in   int64
		want []byte
	}{
		{0, []byte{0x00}},
		{-1, []byte{0x7f}},
		{127, []byte{0xff, 0x00}},
		{-128, []byte{0x80, 0x7f}},
	}
	for _, c := range cases {
		got := encodeLEB128S(c.in)
		if string(got) != string(c.want) {
			t.Errorf("encodeLEB128S(%d) = %x, want %x", c.in, got, c.want)
		}
	}
}

func TestEncodeString(t *testing.T) {
	got := encodeString("ab")
	want := []byte{0x02, 'a', 'b'}
	if string(got) != string(want) {
		t.Errorf("encodeString(%q) = %x, want %x", "ab", got, want)
	}
}

func TestEncodeSection(t *testing.T) {
	got := encodeSection(sectionType, []byte{0x01, 0x02})
	want := []byte{sectionType, 0x02, 0x01, 0x02}
	if string(got) != string(want) {
		t.Errorf("encodeSection = %x, want %x", got, want)
	}
}

func TestMemarg(t *testing.T) {
	got := memarg(2, 4)
	want := []byte{0x02, 0x04}
	if string(got) != string(want) {
		t.Errorf("memarg(2, 4) = %x, want %x", got, want)
	}
}
