// Package model is the fully-resolved view of an SVD device: dimensioned
// declarations are expanded into concrete siblings, derivedFrom references
// are flattened away, and inherited register properties are materialized.
// Nodes are value trees owned by their parent container and are not mutated
// after construction.
package model

import (
	"golang.org/x/exp/slices"
)

// Device is the root of a resolved SVD tree.
type Device struct {
	SchemaVersion           string
	Vendor                  string
	VendorID                string
	Name                    string
	Series                  string
	Version                 string
	Description             string
	LicenseText             string
	HeaderSystemFilename    string
	HeaderDefinitionsPrefix string
	AddressUnitBits         uint64
	Width                   uint64
	Properties              Properties
	CPU                     *CPU
	Peripherals             []*Peripheral
}

// Peripheral returns the named peripheral.
func (d *Device) Peripheral(name string) (*Peripheral, bool) {
	for _, p := range d.Peripherals {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Interrupts collects every interrupt declared by any peripheral, ordered by
// vector index.
func (d *Device) Interrupts() []Interrupt {
	var interrupts []Interrupt
	for _, p := range d.Peripherals {
		interrupts = append(interrupts, p.Interrupts...)
	}
	slices.SortStableFunc(interrupts, func(a, b Interrupt) bool {
		return a.Value < b.Value
	})
	return interrupts
}

// CPU describes the processor core of a device. The presence flags are
// pointers because an SVD file may omit them entirely.
type CPU struct {
	Name                string
	Revision            string
	Endian              Endian
	MPUPresent          *bool
	FPUPresent          *bool
	ICachePresent       *bool
	DCachePresent       *bool
	ITCMPresent         *bool
	DTCMPresent         *bool
	VTORPresent         *bool
	NVICPrioBits        uint64
	VendorSystickConfig *bool
}

// Peripheral is a memory-mapped hardware unit. Registers holds the resolved
// top-level registers and clusters in declaration order, with
// expansion-introduced siblings in ascending index order.
type Peripheral struct {
	Name          string
	Version       string
	Description   string
	GroupName     string
	PrependToName string
	AppendToName  string
	BaseAddress   uint64
	Properties    Properties
	AddressBlocks []AddressBlock
	Interrupts    []Interrupt
	Registers     []RegisterOrCluster
}

// Register returns the named top-level register.
func (p *Peripheral) Register(name string) (*Register, bool) {
	for _, rc := range p.Registers {
		if r, ok := rc.(*Register); ok && r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// AllRegisters returns every register of the peripheral, descending into
// clusters. Register offsets inside a cluster stay cluster-relative.
func (p *Peripheral) AllRegisters() []*Register {
	var regs []*Register
	for _, rc := range p.Registers {
		regs = appendRegisters(regs, rc)
	}
	return regs
}

// SortedRegisters returns AllRegisters ordered by address offset. The sort is
// stable so registers sharing an offset keep declaration order.
func (p *Peripheral) SortedRegisters() []*Register {
	regs := p.AllRegisters()
	slices.SortStableFunc(regs, func(a, b *Register) bool {
		return a.AddressOffset < b.AddressOffset
	})
	return regs
}

func appendRegisters(regs []*Register, rc RegisterOrCluster) []*Register {
	switch v := rc.(type) {
	case *Register:
		regs = append(regs, v)
	case *Cluster:
		for _, child := range v.Children {
			regs = appendRegisters(regs, child)
		}
	}
	return regs
}

// RegisterOrCluster is the tagged union of the two members a register
// sequence can hold. Only *Register and *Cluster implement it.
type RegisterOrCluster interface {
	registerOrCluster()
}

func (*Register) registerOrCluster() {}
func (*Cluster) registerOrCluster()  {}

// Cluster is a named group of registers. AddressOffset is relative to the
// peripheral base; the offsets of the children are relative to the cluster.
type Cluster struct {
	Name          string
	Description   string
	AddressOffset uint64
	Properties    Properties
	Children      []RegisterOrCluster
}

// Register is an addressable storage unit. Size, ResetValue and ResetMask
// of its property set are always materialized after resolution. A nil
// ModifiedWriteValues or ReadAction means plain write or side-effect-free
// read semantics.
type Register struct {
	Name                string
	DisplayName         string
	Description         string
	AlternateGroup      string
	AlternateRegister   string
	AddressOffset       uint64
	DataType            string
	ModifiedWriteValues *WriteEffect
	WriteConstraint     *WriteConstraint
	ReadAction          *ReadAction
	Properties          Properties
	Fields              []*Field
}

// Size returns the resolved register width in bits.
func (r *Register) Size() uint64 {
	if r.Properties.Size != nil {
		return *r.Properties.Size
	}
	return DefaultRegisterSize
}

// Access returns the resolved access mode, if any scope sets one.
func (r *Register) Access() (Access, bool) {
	if r.Properties.Access != nil {
		return *r.Properties.Access, true
	}
	return 0, false
}

// ResetValue returns the resolved reset value.
func (r *Register) ResetValue() uint64 {
	if r.Properties.ResetValue != nil {
		return *r.Properties.ResetValue
	}
	return 0
}

// ResetMask returns the resolved reset mask.
func (r *Register) ResetMask() uint64 {
	if r.Properties.ResetMask != nil {
		return *r.Properties.ResetMask
	}
	return AllOnes(r.Size())
}

// Field returns the named field.
func (r *Register) Field(name string) (*Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Field is a bit range within a register. BitOffset and BitWidth are the
// normalized form of whichever encoding the source document used; Access is
// always materialized after resolution.
type Field struct {
	Name                string
	Description         string
	BitOffset           uint64
	BitWidth            uint64
	Access              Access
	ModifiedWriteValues *WriteEffect
	WriteConstraint     *WriteConstraint
	ReadAction          *ReadAction
	EnumeratedValues    []EnumeratedValue
}

// Lsb returns the least significant bit position of the field.
func (f *Field) Lsb() uint64 { return f.BitOffset }

// Msb returns the most significant bit position of the field.
func (f *Field) Msb() uint64 { return f.BitOffset + f.BitWidth - 1 }

// IsEnumerated reports whether the field declares enumerated values.
func (f *Field) IsEnumerated() bool { return len(f.EnumeratedValues) > 0 }

// Lookup returns the enumerated value matching v, falling back to the
// default sentinel entry when one is declared.
func (f *Field) Lookup(v uint64) (EnumeratedValue, bool) {
	for _, ev := range f.EnumeratedValues {
		if !ev.IsDefault && ev.Value != nil && *ev.Value == v {
			return ev, true
		}
	}
	for _, ev := range f.EnumeratedValues {
		if ev.IsDefault {
			return ev, true
		}
	}
	return EnumeratedValue{}, false
}

// EnumeratedValue names one value a field can take. A default entry matches
// any value not otherwise enumerated and carries no Value of its own.
type EnumeratedValue struct {
	Name        string
	Description string
	Value       *uint64
	IsDefault   bool
}

// WriteConstraint restricts the values that may be written to a register or
// field.
type WriteConstraint struct {
	WriteAsRead         bool
	UseEnumeratedValues bool
	Range               *WriteConstraintRange
}

// WriteConstraintRange is the inclusive value range of a WriteConstraint.
type WriteConstraintRange struct {
	Minimum uint64
	Maximum uint64
}

// Interrupt associates a peripheral with an NVIC vector index.
type Interrupt struct {
	Name        string
	Description string
	Value       uint64
}

// AddressBlock describes an address range claimed by a peripheral.
type AddressBlock struct {
	Offset     uint64
	Size       uint64
	Usage      BlockUsage
	Protection *Protection
}
