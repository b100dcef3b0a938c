package compiler_test

import (
	"testing"

	"github.com/TheBitty/RustCC/pkg/compiler"
)

// char is the only unsigned type in the subset; int is 32-bit signed
// two's complement with wraparound. These tests pin the boundary between
// the two.

func TestCharComparesUnsigned(t *testing.T) {
	src := `
	int main(void) {
		char big = 200;
		char small = 100;
		return big > small;
	}
	`
	// As signed bytes 200 would be negative; as the subset's unsigned
	// chars the comparison holds.
	if got := runMain(t, src); got != 1 {
		t.Errorf("200 > 100 as chars: expected 1, got %d", got)
	}
}

func TestCharStoreOfNegative(t *testing.T) {
	src := `
	int main(void) {
		char c = -1;
		return c;
	}
	`
	if got := runMain(t, src); got != 255 {
		t.Errorf("char holding -1 reads back as: expected 255, got %d", got)
	}
}

func TestCharArithmeticPromotesToInt(t *testing.T) {
	src := `
	int main(void) {
		char a = 200;
		char b = 100;
		return a + b;
	}
	`
	// The sum happens in int, so no byte wraparound before the return.
	if got := runMain(t, src); got != 300 {
		t.Errorf("200 + 100 promoted: expected 300, got %d", got)
	}
}

func TestCharStoreWrapsSum(t *testing.T) {
	src := `
	int main(void) {
		char a = 200;
		char b = 100;
		char c = a + b;
		return c;
	}
	`
	// 300 truncates to 300 - 256 on the store.
	if got := runMain(t, src); got != 44 {
		t.Errorf("300 stored into a char: expected 44, got %d", got)
	}
}

func TestIntWraparoundMultiply(t *testing.T) {
	src := `
	int main(void) {
		int k = 65536;
		return k * k == 0;
	}
	`
	if got := runMain(t, src); got != 1 {
		t.Errorf("65536 * 65536 should wrap to 0")
	}
}

func TestIntWraparoundIncrement(t *testing.T) {
	src := `
	int main(void) {
		int max = 2147483647;
		max = max + 1;
		return max < 0;
	}
	`
	if got := runMain(t, src); got != 1 {
		t.Errorf("INT_MAX + 1 should wrap negative")
	}
}

func TestHexLiteralBitPattern(t *testing.T) {
	src := `
	int main(void) {
		return 0xFFFFFFFF == -1;
	}
	`
	// Literals above INT_MAX are accepted for their bit pattern.
	if got := runMain(t, src); got != 1 {
		t.Errorf("0xFFFFFFFF should carry the all-ones pattern")
	}
}

func TestHexLiteralIntMin(t *testing.T) {
	src := `
	int main(void) {
		int m = 0x80000000;
		return m < 0 && m - 1 > 0;
	}
	`
	// INT_MIN is negative and wraps to INT_MAX when decremented.
	if got := runMain(t, src); got != 1 {
		t.Errorf("0x80000000 should behave as INT_MIN")
	}
}

func TestUnsignedKeywordRejected(t *testing.T) {
	err := parseErr(t, `
	int main(void) {
		unsigned int x = 1;
		return x;
	}
	`)
	wantCode(t, err, compiler.SyntaxInput)
}

func TestSignedDivisionTruncates(t *testing.T) {
	src := `
	int main(void) {
		int a = -7;
		int b = 2;
		return a / b == -3 && a % b == -1 && 7 / -2 == -3;
	}
	`
	if got := runMain(t, src); got != 1 {
		t.Errorf("signed division must truncate toward zero")
	}
}

func TestArithmeticShiftOnNegative(t *testing.T) {
	src := `
	int main(void) {
		int v = -16;
		return v >> 2;
	}
	`
	if got := runMain(t, src); got != -4 {
		t.Errorf("-16 >> 2: expected -4, got %d", got)
	}
}
