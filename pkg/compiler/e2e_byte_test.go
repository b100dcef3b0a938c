package compiler_test

import "testing"

// char is the subset's byte type: one unsigned octet in memory that
// promotes to int in arithmetic.

func TestCharStoreTruncates(t *testing.T) {
	src := `
	int main(void) {
		char c = 255;
		c = c + 1;
		return c;
	}
	`
	if got := runMain(t, src); got != 0 {
		t.Errorf("255 + 1 stored into a char: expected 0, got %d", got)
	}
}

func TestCharArray(t *testing.T) {
	src := `
	int main(void) {
		char buf[4];
		buf[0] = 10;
		buf[1] = 20;
		buf[2] = 30;
		buf[3] = 40;
		return buf[0] + buf[1] + buf[2] + buf[3];
	}
	`
	if got := runMain(t, src); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
}

func TestCharPointerWrite(t *testing.T) {
	src := `
	int main(void) {
		char c = 1;
		char *p = &c;
		*p = 77;
		return c;
	}
	`
	if got := runMain(t, src); got != 77 {
		t.Errorf("expected 77, got %d", got)
	}
}

func TestCharViewOfInt(t *testing.T) {
	src := `
	int main(void) {
		int i = 0x1234;
		char *p = (char*)&i;
		return p[0];
	}
	`
	// Little-endian target: the first byte of 0x1234 is 0x34.
	if got := runMain(t, src); got != 0x34 {
		t.Errorf("low byte of 0x1234: expected 0x34, got %#x", got)
	}
}

func TestCharViewOfIntSecondByte(t *testing.T) {
	src := `
	int main(void) {
		int i = 0x1234;
		char *p = (char*)&i;
		return p[1];
	}
	`
	if got := runMain(t, src); got != 0x12 {
		t.Errorf("second byte of 0x1234: expected 0x12, got %#x", got)
	}
}

func TestCharPatchesIntInPlace(t *testing.T) {
	src := `
	int main(void) {
		int i = 0;
		char *p = (char*)&i;
		p[0] = 0x78;
		p[1] = 0x56;
		return i;
	}
	`
	if got := runMain(t, src); got != 0x5678 {
		t.Errorf("expected 0x5678, got %#x", got)
	}
}

func TestStructWithCharFields(t *testing.T) {
	src := `
	struct packet {
		char tag;
		char flags;
		int value;
	};
	int main(void) {
		struct packet p;
		p.tag = 3;
		p.flags = 7;
		p.value = 1000;
		return p.tag + p.flags + p.value;
	}
	`
	if got := runMain(t, src); got != 1010 {
		t.Errorf("expected 1010, got %d", got)
	}
}

func TestStructCharLayout(t *testing.T) {
	src := `
	struct packet {
		char tag;
		char flags;
		int value;
	};
	int main(void) {
		return sizeof(struct packet);
	}
	`
	// Two chars pack into the first word; value aligns to 4.
	if got := runMain(t, src); got != 8 {
		t.Errorf("sizeof(struct packet): expected 8, got %d", got)
	}
}

func TestCharFieldsDoNotClobberNeighbors(t *testing.T) {
	src := `
	struct packet {
		char tag;
		char flags;
		int value;
	};
	int main(void) {
		struct packet p;
		p.value = 0x01020304;
		p.tag = 0xFF;
		p.flags = 0xEE;
		return p.value;
	}
	`
	if got := runMain(t, src); got != 0x01020304 {
		t.Errorf("byte stores leaked into value: got %#x", got)
	}
}

func TestCharStringIndexing(t *testing.T) {
	src := `
	int main(void) {
		char *s = "ABC";
		return s[0] + s[2];
	}
	`
	if got := runMain(t, src); got != 'A'+'C' {
		t.Errorf("expected %d, got %d", 'A'+'C', got)
	}
}
