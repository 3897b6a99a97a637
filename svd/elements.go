// Package svd models a CMSIS-SVD document as decoded from XML. The element
// structs mirror the document structure one to one: optional elements are
// pointers (or empty strings) so that an absent element is distinguishable
// from an explicit zero, which the resolution pass depends on.
package svd

import "encoding/xml"

// DimElementGroup is the array declaration shared by peripherals, clusters,
// registers and fields. A nil Dim means the element is not dimensioned.
type DimElementGroup struct {
	Dim           *Integer              `xml:"dim"`
	DimIncrement  *HexInteger           `xml:"dimIncrement"`
	DimIndex      string                `xml:"dimIndex,omitempty"`
	DimName       string                `xml:"dimName,omitempty"`
	DimArrayIndex *DimArrayIndexElement `xml:"dimArrayIndex"`
}

// DimArrayIndexElement names the instances of a dimensioned array for header
// generation. It is carried through derivation but plays no part in name or
// address expansion.
type DimArrayIndexElement struct {
	HeaderEnumName string                   `xml:"headerEnumName,omitempty"`
	Elements       []EnumeratedValueElement `xml:"enumeratedValue"`
}

// RegisterPropertiesGroup is the inheritable property group. Every member is
// optional at every level of the document; an absent member inherits from the
// enclosing scope.
type RegisterPropertiesGroup struct {
	Size       *Integer    `xml:"size"`
	Access     string      `xml:"access,omitempty"`
	Protection string      `xml:"protection,omitempty"`
	ResetValue *HexInteger `xml:"resetValue"`
	ResetMask  *HexInteger `xml:"resetMask"`
}

type DeviceElement struct {
	XMLName                 xml.Name    `xml:"device"`
	SchemaVersion           string      `xml:"schemaVersion,attr,omitempty"`
	Vendor                  string      `xml:"vendor,omitempty"`
	VendorID                string      `xml:"vendorID,omitempty"`
	Name                    string      `xml:"name"`
	Series                  string      `xml:"series,omitempty"`
	Version                 string      `xml:"version,omitempty"`
	Description             string      `xml:"description,omitempty"`
	LicenseText             string      `xml:"licenseText,omitempty"`
	CPU                     *CPUElement `xml:"cpu"`
	HeaderSystemFilename    string      `xml:"headerSystemFilename,omitempty"`
	HeaderDefinitionsPrefix string      `xml:"headerDefinitionsPrefix,omitempty"`
	AddressUnitBits         *Integer    `xml:"addressUnitBits"`
	Width                   *Integer    `xml:"width"`
	RegisterPropertiesGroup
	Peripherals PeripheralsElement `xml:"peripherals"`
}

type CPUElement struct {
	Name                string   `xml:"name"`
	Revision            string   `xml:"revision,omitempty"`
	Endian              string   `xml:"endian,omitempty"`
	MPUPresent          *Bool    `xml:"mpuPresent"`
	FPUPresent          *Bool    `xml:"fpuPresent"`
	ICachePresent       *Bool    `xml:"icachePresent"`
	DCachePresent       *Bool    `xml:"dcachePresent"`
	ITCMPresent         *Bool    `xml:"itcmPresent"`
	DTCMPresent         *Bool    `xml:"dtcmPresent"`
	VTORPresent         *Bool    `xml:"vtorPresent"`
	NVICPrioBits        *Integer `xml:"nvicPrioBits"`
	VendorSystickConfig *Bool    `xml:"vendorSystickConfig"`
}

type PeripheralsElement struct {
	Elements []PeripheralElement `xml:"peripheral"`
}

// Find returns the index of the named peripheral.
func (p PeripheralsElement) Find(name string) (int, bool) {
	if len(name) > 0 {
		for i, pp := range p.Elements {
			if pp.Name == name {
				return i, true
			}
		}
	}
	return -1, false
}

type PeripheralElement struct {
	DerivedFrom string `xml:"derivedFrom,attr,omitempty"`
	DimElementGroup
	Name          string      `xml:"name"`
	Version       string      `xml:"version,omitempty"`
	Description   string      `xml:"description,omitempty"`
	GroupName     string      `xml:"groupName,omitempty"`
	PrependToName string      `xml:"prependToName,omitempty"`
	AppendToName  string      `xml:"appendToName,omitempty"`
	BaseAddress   *HexInteger `xml:"baseAddress"`
	RegisterPropertiesGroup
	AddressBlocks []AddressBlockElement `xml:"addressBlock"`
	Interrupts    []InterruptElement    `xml:"interrupt"`
	Registers     *RegistersElement     `xml:"registers"`
}

type AddressBlockElement struct {
	Offset     *HexInteger `xml:"offset"`
	Size       *HexInteger `xml:"size"`
	Usage      string      `xml:"usage,omitempty"`
	Protection string      `xml:"protection,omitempty"`
}

type InterruptElement struct {
	Name        string   `xml:"name"`
	Description string   `xml:"description,omitempty"`
	Value       *Integer `xml:"value"`
}

type RegistersElement struct {
	RegisterElements []RegisterElement `xml:"register"`
	ClusterElements  []ClusterElement  `xml:"cluster"`
}

type ClusterElement struct {
	DerivedFrom string `xml:"derivedFrom,attr,omitempty"`
	DimElementGroup
	Name          string      `xml:"name"`
	Description   string      `xml:"description,omitempty"`
	AddressOffset *HexInteger `xml:"addressOffset"`
	RegisterPropertiesGroup
	RegisterElements []RegisterElement `xml:"register"`
	ClusterElements  []ClusterElement  `xml:"cluster"`
}

type RegisterElement struct {
	DerivedFrom string `xml:"derivedFrom,attr,omitempty"`
	DimElementGroup
	Name              string      `xml:"name"`
	DisplayName       string      `xml:"displayName,omitempty"`
	Description       string      `xml:"description,omitempty"`
	AlternateGroup    string      `xml:"alternateGroup,omitempty"`
	AlternateRegister string      `xml:"alternateRegister,omitempty"`
	AddressOffset     *HexInteger `xml:"addressOffset"`
	RegisterPropertiesGroup
	DataType            string                  `xml:"dataType,omitempty"`
	ModifiedWriteValues string                  `xml:"modifiedWriteValues,omitempty"`
	WriteConstraint     *WriteConstraintElement `xml:"writeConstraint"`
	ReadAction          string                  `xml:"readAction,omitempty"`
	Fields              *FieldsElement          `xml:"fields"`
}

// WriteConstraintElement restricts the values that may be written to a
// register or field. Exactly one member is expected to be set.
type WriteConstraintElement struct {
	WriteAsRead         *Bool                        `xml:"writeAsRead"`
	UseEnumeratedValues *Bool                        `xml:"useEnumeratedValues"`
	Range               *WriteConstraintRangeElement `xml:"range"`
}

type WriteConstraintRangeElement struct {
	Minimum *HexInteger `xml:"minimum"`
	Maximum *HexInteger `xml:"maximum"`
}

type FieldsElement struct {
	Elements []FieldElement `xml:"field"`
}

type FieldElement struct {
	DerivedFrom string `xml:"derivedFrom,attr,omitempty"`
	DimElementGroup
	Name        string `xml:"name"`
	Description string `xml:"description,omitempty"`
	// A field's bit position comes in three encodings: offset+width,
	// lsb+msb, or a "[msb:lsb]" range string. All normalize to offset+width
	// during parsing.
	BitOffset           *Integer                 `xml:"bitOffset"`
	BitWidth            *Integer                 `xml:"bitWidth"`
	Lsb                 *Integer                 `xml:"lsb"`
	Msb                 *Integer                 `xml:"msb"`
	BitRange            string                   `xml:"bitRange,omitempty"`
	Access              string                   `xml:"access,omitempty"`
	ModifiedWriteValues string                   `xml:"modifiedWriteValues,omitempty"`
	WriteConstraint     *WriteConstraintElement  `xml:"writeConstraint"`
	ReadAction          string                   `xml:"readAction,omitempty"`
	EnumeratedValues    *EnumeratedValuesElement `xml:"enumeratedValues"`
}

type EnumeratedValuesElement struct {
	DerivedFrom    string                   `xml:"derivedFrom,attr,omitempty"`
	Name           string                   `xml:"name,omitempty"`
	HeaderEnumName string                   `xml:"headerEnumName,omitempty"`
	Usage          string                   `xml:"usage,omitempty"`
	Elements       []EnumeratedValueElement `xml:"enumeratedValue"`
}

type EnumeratedValueElement struct {
	Name        string      `xml:"name"`
	Description string      `xml:"description,omitempty"`
	Value       *HexInteger `xml:"value"`
	IsDefault   *Bool       `xml:"isDefault"`
}
