package model

// DefaultRegisterSize is the architectural fallback register width in bits,
// used when neither the device nor any enclosing scope specifies a size.
const DefaultRegisterSize = 32

// Properties is the inheritable register property group. A nil member was not
// explicitly set at its scope and inherits from the nearest ancestor that
// sets it; after resolution the numeric members of every register are
// materialized and fields carry a concrete access mode.
type Properties struct {
	Size       *uint64
	Access     *Access
	Protection *Protection
	ResetValue *uint64
	ResetMask  *uint64
}

// Merge returns p with every unset member taken from the first of the
// ancestors, scanned nearest first, that sets it.
func (p Properties) Merge(ancestors ...Properties) Properties {
	for _, a := range ancestors {
		if p.Size == nil {
			p.Size = a.Size
		}
		if p.Access == nil {
			p.Access = a.Access
		}
		if p.Protection == nil {
			p.Protection = a.Protection
		}
		if p.ResetValue == nil {
			p.ResetValue = a.ResetValue
		}
		if p.ResetMask == nil {
			p.ResetMask = a.ResetMask
		}
	}
	return p
}

// Materialize applies the architectural defaults for the numeric members:
// size falls back to DefaultRegisterSize, reset value to zero, and reset mask
// to all ones for the resolved size. Access and protection have no defaults.
func (p Properties) Materialize() Properties {
	if p.Size == nil {
		size := uint64(DefaultRegisterSize)
		p.Size = &size
	}
	if p.ResetValue == nil {
		value := uint64(0)
		p.ResetValue = &value
	}
	if p.ResetMask == nil {
		mask := AllOnes(*p.Size)
		p.ResetMask = &mask
	}
	return p
}

// AllOnes returns a mask with the low bits set.
func AllOnes(bits uint64) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bits) - 1
}
