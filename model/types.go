package model

import "strings"

// Access is the permitted access mode of a register or field.
type Access int

const (
	AccessReadOnly Access = iota
	AccessWriteOnly
	AccessReadWrite
	AccessWriteOnce
	AccessReadWriteOnce
)

// ParseAccess maps an SVD access spelling to an Access value. The all-lowercase
// writeOnce variants and the bare "write" spelling found in some vendor files
// are accepted as well.
func ParseAccess(s string) (Access, bool) {
	switch strings.TrimSpace(s) {
	case "read-only":
		return AccessReadOnly, true
	case "write-only", "write":
		return AccessWriteOnly, true
	case "read-write":
		return AccessReadWrite, true
	case "writeOnce", "writeonce":
		return AccessWriteOnce, true
	case "read-writeOnce", "read-writeonce":
		return AccessReadWriteOnce, true
	}
	return 0, false
}

func (a Access) String() string {
	switch a {
	case AccessReadOnly:
		return "read-only"
	case AccessWriteOnly:
		return "write-only"
	case AccessReadWrite:
		return "read-write"
	case AccessWriteOnce:
		return "writeOnce"
	case AccessReadWriteOnce:
		return "read-writeOnce"
	}
	return "unknown"
}

// CanRead reports whether loads are permitted.
func (a Access) CanRead() bool {
	return a == AccessReadOnly || a == AccessReadWrite || a == AccessReadWriteOnce
}

// CanWrite reports whether stores are permitted.
func (a Access) CanWrite() bool {
	return a != AccessReadOnly
}

var dataTypes = map[string]struct{}{
	"uint8_t": {}, "uint16_t": {}, "uint32_t": {}, "uint64_t": {},
	"int8_t": {}, "int16_t": {}, "int32_t": {}, "int64_t": {},
	"uint8_t *": {}, "uint16_t *": {}, "uint32_t *": {}, "uint64_t *": {},
	"int8_t *": {}, "int16_t *": {}, "int32_t *": {}, "int64_t *": {},
}

// ValidDataType reports whether s is one of the C scalar or pointer spellings
// a register dataType may declare.
func ValidDataType(s string) bool {
	_, ok := dataTypes[strings.TrimSpace(s)]
	return ok
}

// WriteEffect is the side effect a write has on the bits of a register or
// field beyond plain assignment.
type WriteEffect int

const (
	WriteOneToClear WriteEffect = iota
	WriteOneToSet
	WriteOneToToggle
	WriteZeroToClear
	WriteZeroToSet
	WriteZeroToToggle
	WriteClear
	WriteSet
	WriteModify
)

func ParseWriteEffect(s string) (WriteEffect, bool) {
	switch strings.TrimSpace(s) {
	case "oneToClear":
		return WriteOneToClear, true
	case "oneToSet":
		return WriteOneToSet, true
	case "oneToToggle":
		return WriteOneToToggle, true
	case "zeroToClear":
		return WriteZeroToClear, true
	case "zeroToSet":
		return WriteZeroToSet, true
	case "zeroToToggle":
		return WriteZeroToToggle, true
	case "clear":
		return WriteClear, true
	case "set":
		return WriteSet, true
	case "modify":
		return WriteModify, true
	}
	return 0, false
}

func (w WriteEffect) String() string {
	switch w {
	case WriteOneToClear:
		return "oneToClear"
	case WriteOneToSet:
		return "oneToSet"
	case WriteOneToToggle:
		return "oneToToggle"
	case WriteZeroToClear:
		return "zeroToClear"
	case WriteZeroToSet:
		return "zeroToSet"
	case WriteZeroToToggle:
		return "zeroToToggle"
	case WriteClear:
		return "clear"
	case WriteSet:
		return "set"
	}
	return "modify"
}

// ReadAction is the side effect a read has on a register or field.
type ReadAction int

const (
	ReadClear ReadAction = iota
	ReadSet
	ReadModify
	ReadModifyExternal
)

func ParseReadAction(s string) (ReadAction, bool) {
	switch strings.TrimSpace(s) {
	case "clear":
		return ReadClear, true
	case "set":
		return ReadSet, true
	case "modify":
		return ReadModify, true
	case "modifyExternal":
		return ReadModifyExternal, true
	}
	return 0, false
}

func (r ReadAction) String() string {
	switch r {
	case ReadClear:
		return "clear"
	case ReadSet:
		return "set"
	case ReadModify:
		return "modify"
	}
	return "modifyExternal"
}

// Protection is the privilege level required for access.
type Protection int

const (
	ProtectionSecure Protection = iota
	ProtectionNonSecure
	ProtectionPrivileged
)

func ParseProtection(s string) (Protection, bool) {
	switch strings.TrimSpace(s) {
	case "s":
		return ProtectionSecure, true
	case "n":
		return ProtectionNonSecure, true
	case "p":
		return ProtectionPrivileged, true
	}
	return 0, false
}

func (p Protection) String() string {
	switch p {
	case ProtectionSecure:
		return "s"
	case ProtectionNonSecure:
		return "n"
	case ProtectionPrivileged:
		return "p"
	}
	return "unknown"
}

// Endian is the CPU byte order.
type Endian int

const (
	EndianLittle Endian = iota
	EndianBig
	EndianSelectable
	EndianOther
)

func ParseEndian(s string) (Endian, bool) {
	switch strings.TrimSpace(s) {
	case "little":
		return EndianLittle, true
	case "big":
		return EndianBig, true
	case "selectable":
		return EndianSelectable, true
	case "other":
		return EndianOther, true
	}
	return 0, false
}

func (e Endian) String() string {
	switch e {
	case EndianLittle:
		return "little"
	case EndianBig:
		return "big"
	case EndianSelectable:
		return "selectable"
	}
	return "other"
}

// BlockUsage tags what an address block is used for.
type BlockUsage int

const (
	UsageRegisters BlockUsage = iota
	UsageBuffer
	UsageReserved
)

func ParseBlockUsage(s string) (BlockUsage, bool) {
	switch strings.TrimSpace(s) {
	case "registers":
		return UsageRegisters, true
	case "buffer":
		return UsageBuffer, true
	case "reserved":
		return UsageReserved, true
	}
	return 0, false
}

func (u BlockUsage) String() string {
	switch u {
	case UsageRegisters:
		return "registers"
	case UsageBuffer:
		return "buffer"
	}
	return "reserved"
}
