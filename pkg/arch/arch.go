// Package arch defines the canonical CPU architecture values recognized in
// Windows application packages and the normalization of vendor spellings.
package arch

import "strings"

// Architecture is the canonical CPU architecture of a package.
type Architecture string

const (
	Intel32 Architecture = "intel32"
	AMD64   Architecture = "amd64"
	ARM64   Architecture = "arm64"
	ARM     Architecture = "arm"
	IA64    Architecture = "ia64"
	Neutral Architecture = "neutral"
	Unknown Architecture = "unknown"
)

func (a Architecture) String() string {
	return string(a)
}

// Normalize maps a raw vendor architecture spelling to its canonical value.
// It is total: matching is case-insensitive and anything outside the known
// alias sets, including the empty string, maps to Unknown.
func Normalize(raw string) Architecture {
	switch strings.ToLower(raw) {
	case "x86", "intel", "intel32", "32":
		return Intel32
	case "x64", "amd64", "64":
		return AMD64
	case "arm64":
		return ARM64
	case "arm":
		return ARM
	case "ia64", "itanium":
		return IA64
	case "neutral", "anycpu", "any":
		return Neutral
	default:
		return Unknown
	}
}

// PE header machine field values.
const (
	MachineI386  uint16 = 0x014C
	MachineAMD64 uint16 = 0x8664
	MachineARM64 uint16 = 0xAA64
	MachineARM   uint16 = 0x01C4
	MachineIA64  uint16 = 0x0200
)

// FromMachine maps a PE header machine code to its architecture. The table
// keys on numeric header constants and is intentionally separate from the
// string aliases handled by Normalize.
func FromMachine(code uint16) Architecture {
	switch code {
	case MachineI386:
		return Intel32
	case MachineAMD64:
		return AMD64
	case MachineARM64:
		return ARM64
	case MachineARM:
		return ARM
	case MachineIA64:
		return IA64
	default:
		return Unknown
	}
}
