package arch

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want Architecture
	}{
		{"x86", Intel32},
		{"X86", Intel32},
		{"intel", Intel32},
		{"Intel", Intel32},
		{"INTEL32", Intel32},
		{"32", Intel32},
		{"x64", AMD64},
		{"X64", AMD64},
		{"amd64", AMD64},
		{"AMD64", AMD64},
		{"64", AMD64},
		{"arm64", ARM64},
		{"ARM64", ARM64},
		{"arm", ARM},
		{"Arm", ARM},
		{"ia64", IA64},
		{"Itanium", IA64},
		{"neutral", Neutral},
		{"NEUTRAL", Neutral},
		{"AnyCPU", Neutral},
		{"any", Neutral},
		{"", Unknown},
		{"mips", Unknown},
		{"x86_64", Unknown},
		{"armv7", Unknown},
		{"x64;1033", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFromMachine(t *testing.T) {
	tests := []struct {
		name string
		code uint16
		want Architecture
	}{
		{"i386", 0x014C, Intel32},
		{"amd64", 0x8664, AMD64},
		{"arm64", 0xAA64, ARM64},
		{"arm", 0x01C4, ARM},
		{"ia64", 0x0200, IA64},
		{"zero", 0x0000, Unknown},
		{"alpha", 0x0184, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromMachine(tt.code); got != tt.want {
				t.Errorf("FromMachine(%#04x) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}
