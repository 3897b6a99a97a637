package parser

import (
	"golang.org/x/exp/slices"

	"omibyte.io/svd/svd"
)

// The merge helpers copy inheritable members from a derivation base into a
// deriving element. Members the deriving element declares itself always win.
// Scalar pointers are shared with the base since neither side mutates them;
// child sequences are deep-cloned so later expansion of one element cannot
// alias another.

func mergeDim(dst, base *svd.DimElementGroup) {
	if dst.Dim == nil {
		dst.Dim = base.Dim
	}
	if dst.DimIncrement == nil {
		dst.DimIncrement = base.DimIncrement
	}
	if dst.DimIndex == "" {
		dst.DimIndex = base.DimIndex
	}
	if dst.DimName == "" {
		dst.DimName = base.DimName
	}
	if dst.DimArrayIndex == nil {
		dst.DimArrayIndex = base.DimArrayIndex
	}
}

func mergeProperties(dst, base *svd.RegisterPropertiesGroup) {
	if dst.Size == nil {
		dst.Size = base.Size
	}
	if dst.Access == "" {
		dst.Access = base.Access
	}
	if dst.Protection == "" {
		dst.Protection = base.Protection
	}
	if dst.ResetValue == nil {
		dst.ResetValue = base.ResetValue
	}
	if dst.ResetMask == nil {
		dst.ResetMask = base.ResetMask
	}
}

func mergePeripheral(dst, base *svd.PeripheralElement) {
	if dst.Version == "" {
		dst.Version = base.Version
	}
	if dst.Description == "" {
		dst.Description = base.Description
	}
	if dst.GroupName == "" {
		dst.GroupName = base.GroupName
	}
	if dst.PrependToName == "" {
		dst.PrependToName = base.PrependToName
	}
	if dst.AppendToName == "" {
		dst.AppendToName = base.AppendToName
	}
	if dst.BaseAddress == nil {
		dst.BaseAddress = base.BaseAddress
	}
	mergeDim(&dst.DimElementGroup, &base.DimElementGroup)
	mergeProperties(&dst.RegisterPropertiesGroup, &base.RegisterPropertiesGroup)
	if len(dst.AddressBlocks) == 0 {
		dst.AddressBlocks = slices.Clone(base.AddressBlocks)
	}
	if len(dst.Interrupts) == 0 {
		dst.Interrupts = slices.Clone(base.Interrupts)
	}
	if dst.Registers == nil {
		dst.Registers = cloneRegisters(base.Registers)
	}
}

func mergeCluster(dst, base *svd.ClusterElement) {
	if dst.Description == "" {
		dst.Description = base.Description
	}
	if dst.AddressOffset == nil {
		dst.AddressOffset = base.AddressOffset
	}
	mergeDim(&dst.DimElementGroup, &base.DimElementGroup)
	mergeProperties(&dst.RegisterPropertiesGroup, &base.RegisterPropertiesGroup)
	if len(dst.RegisterElements) == 0 && len(dst.ClusterElements) == 0 {
		dst.RegisterElements = cloneRegisterSlice(base.RegisterElements)
		dst.ClusterElements = cloneClusterSlice(base.ClusterElements)
	}
}

func mergeRegister(dst, base *svd.RegisterElement) {
	if dst.DisplayName == "" {
		dst.DisplayName = base.DisplayName
	}
	if dst.Description == "" {
		dst.Description = base.Description
	}
	if dst.AddressOffset == nil {
		dst.AddressOffset = base.AddressOffset
	}
	if dst.DataType == "" {
		dst.DataType = base.DataType
	}
	if dst.AlternateGroup == "" {
		dst.AlternateGroup = base.AlternateGroup
	}
	if dst.AlternateRegister == "" {
		dst.AlternateRegister = base.AlternateRegister
	}
	if dst.ModifiedWriteValues == "" {
		dst.ModifiedWriteValues = base.ModifiedWriteValues
	}
	if dst.WriteConstraint == nil {
		dst.WriteConstraint = base.WriteConstraint
	}
	if dst.ReadAction == "" {
		dst.ReadAction = base.ReadAction
	}
	mergeDim(&dst.DimElementGroup, &base.DimElementGroup)
	mergeProperties(&dst.RegisterPropertiesGroup, &base.RegisterPropertiesGroup)
	if dst.Fields == nil {
		dst.Fields = cloneFields(base.Fields)
	}
}

func mergeField(dst, base *svd.FieldElement) {
	if dst.Description == "" {
		dst.Description = base.Description
	}
	// A bit position is only inherited wholesale: mixing encodings across the
	// derivation would be ambiguous.
	if dst.BitOffset == nil && dst.Lsb == nil && dst.Msb == nil && dst.BitRange == "" {
		dst.BitOffset = base.BitOffset
		dst.BitWidth = base.BitWidth
		dst.Lsb = base.Lsb
		dst.Msb = base.Msb
		dst.BitRange = base.BitRange
	}
	if dst.Access == "" {
		dst.Access = base.Access
	}
	if dst.ModifiedWriteValues == "" {
		dst.ModifiedWriteValues = base.ModifiedWriteValues
	}
	if dst.WriteConstraint == nil {
		dst.WriteConstraint = base.WriteConstraint
	}
	if dst.ReadAction == "" {
		dst.ReadAction = base.ReadAction
	}
	mergeDim(&dst.DimElementGroup, &base.DimElementGroup)
	if dst.EnumeratedValues == nil {
		dst.EnumeratedValues = cloneEnumeratedValues(base.EnumeratedValues)
	}
}

func cloneRegisters(src *svd.RegistersElement) *svd.RegistersElement {
	if src == nil {
		return nil
	}
	return &svd.RegistersElement{
		RegisterElements: cloneRegisterSlice(src.RegisterElements),
		ClusterElements:  cloneClusterSlice(src.ClusterElements),
	}
}

func cloneRegisterSlice(src []svd.RegisterElement) []svd.RegisterElement {
	out := slices.Clone(src)
	for i := range out {
		out[i].Fields = cloneFields(out[i].Fields)
	}
	return out
}

func cloneClusterSlice(src []svd.ClusterElement) []svd.ClusterElement {
	out := slices.Clone(src)
	for i := range out {
		out[i].RegisterElements = cloneRegisterSlice(out[i].RegisterElements)
		out[i].ClusterElements = cloneClusterSlice(out[i].ClusterElements)
	}
	return out
}

func cloneFields(src *svd.FieldsElement) *svd.FieldsElement {
	if src == nil {
		return nil
	}
	out := &svd.FieldsElement{Elements: slices.Clone(src.Elements)}
	for i := range out.Elements {
		out.Elements[i].EnumeratedValues = cloneEnumeratedValues(out.Elements[i].EnumeratedValues)
	}
	return out
}

func cloneEnumeratedValues(src *svd.EnumeratedValuesElement) *svd.EnumeratedValuesElement {
	if src == nil {
		return nil
	}
	return &svd.EnumeratedValuesElement{
		DerivedFrom:    src.DerivedFrom,
		Name:           src.Name,
		HeaderEnumName: src.HeaderEnumName,
		Usage:          src.Usage,
		Elements:       slices.Clone(src.Elements),
	}
}
