// Package parser turns a CMSIS-SVD document into the resolved model. Parsing
// runs in three passes over the decoded element tree: derivedFrom references
// are flattened first, dimensioned declarations are expanded second, and the
// final walk materializes inherited properties while building the model.
package parser

import (
	"encoding/xml"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"omibyte.io/svd/model"
	"omibyte.io/svd/svd"
)

// Validator checks a raw document against an external schema definition. The
// parser itself performs structural checks only; schema validation is opt-in
// through this collaborator.
type Validator interface {
	Validate(document []byte, schemaVersion string) error
}

// Options configure a parse.
type Options struct {
	// Validator, when non-nil, is invoked on the raw document before any
	// element is interpreted.
	Validator Validator

	// SchemaVersion is assumed when the document carries no schemaVersion
	// attribute. Without a fallback such documents are rejected.
	SchemaVersion string

	// RemoveReserved drops registers, clusters and fields whose name marks
	// them as reserved padding.
	RemoveReserved bool
}

var schemaVersionPattern = regexp.MustCompile(`^([0-9]+)(\.[0-9]+){0,2}$`)

// Parse decodes and resolves an SVD document.
func Parse(data []byte, opts Options) (*model.Device, error) {
	var root svd.DeviceElement
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, &MalformedDocumentError{Message: "cannot decode document", Cause: err}
	}

	version := root.SchemaVersion
	if version == "" {
		if opts.SchemaVersion == "" {
			return nil, &SchemaVersionError{Version: ""}
		}
		version = opts.SchemaVersion
		root.SchemaVersion = version
	}
	match := schemaVersionPattern.FindStringSubmatch(version)
	if match == nil {
		return nil, &SchemaVersionError{Version: version}
	}
	if major, _ := strconv.Atoi(match[1]); major != 1 {
		return nil, &SchemaVersionError{Version: version}
	}

	if opts.Validator != nil {
		if err := opts.Validator.Validate(data, version); err != nil {
			return nil, &MalformedDocumentError{Message: "schema validation rejected document", Cause: err}
		}
	}

	return ParseElement(&root, opts)
}

// ParseElement resolves an already-decoded document tree. The tree is
// modified in place by derivation and expansion.
func ParseElement(root *svd.DeviceElement, opts Options) (*model.Device, error) {
	if root.Name == "" {
		return nil, &MalformedDocumentError{Message: "device has no name"}
	}
	p := &treeParser{opts: opts, deviceName: root.Name}

	if err := p.resolveEnumeratedValueDerivations(root); err != nil {
		return nil, err
	}
	if err := p.resolvePeripheralDerivations(root); err != nil {
		return nil, err
	}
	if err := p.resolveRegisterDerivations(root); err != nil {
		return nil, err
	}
	if err := p.expandPeripherals(root); err != nil {
		return nil, err
	}
	return p.buildDevice(root)
}

type treeParser struct {
	opts       Options
	deviceName string
}

func (p *treeParser) buildDevice(root *svd.DeviceElement) (*model.Device, error) {
	device := &model.Device{
		SchemaVersion:           root.SchemaVersion,
		Vendor:                  root.Vendor,
		VendorID:                root.VendorID,
		Name:                    root.Name,
		Series:                  root.Series,
		Version:                 root.Version,
		Description:             root.Description,
		LicenseText:             root.LicenseText,
		HeaderSystemFilename:    root.HeaderSystemFilename,
		HeaderDefinitionsPrefix: root.HeaderDefinitionsPrefix,
		AddressUnitBits:         8,
		Width:                   model.DefaultRegisterSize,
	}
	if root.AddressUnitBits != nil {
		device.AddressUnitBits = uint64(*root.AddressUnitBits)
	}
	if root.Width != nil {
		device.Width = uint64(*root.Width)
	}
	device.Properties = p.buildProperties(&root.RegisterPropertiesGroup, p.deviceName)

	if root.CPU != nil {
		device.CPU = p.buildCPU(root.CPU)
	}

	seen := map[string]struct{}{}
	for i := range root.Peripherals.Elements {
		pe := &root.Peripherals.Elements[i]
		if _, dup := seen[pe.Name]; dup {
			return nil, &MalformedDocumentError{
				Path:    p.deviceName,
				Message: fmt.Sprintf("duplicate peripheral name %q", pe.Name),
			}
		}
		seen[pe.Name] = struct{}{}
		peripheral, err := p.buildPeripheral(pe, device.Properties)
		if err != nil {
			return nil, err
		}
		device.Peripherals = append(device.Peripherals, peripheral)
	}
	return device, nil
}

func (p *treeParser) buildCPU(ce *svd.CPUElement) *model.CPU {
	cpu := &model.CPU{
		Name:                ce.Name,
		Revision:            ce.Revision,
		Endian:              model.EndianLittle,
		MPUPresent:          boolValue(ce.MPUPresent),
		FPUPresent:          boolValue(ce.FPUPresent),
		ICachePresent:       boolValue(ce.ICachePresent),
		DCachePresent:       boolValue(ce.DCachePresent),
		ITCMPresent:         boolValue(ce.ITCMPresent),
		DTCMPresent:         boolValue(ce.DTCMPresent),
		VTORPresent:         boolValue(ce.VTORPresent),
		VendorSystickConfig: boolValue(ce.VendorSystickConfig),
	}
	if ce.Endian != "" {
		endian, ok := model.ParseEndian(ce.Endian)
		if !ok {
			log.Printf("svd: %s: unknown endianness %q", p.deviceName, ce.Endian)
			endian = model.EndianOther
		}
		cpu.Endian = endian
	}
	if ce.NVICPrioBits != nil {
		cpu.NVICPrioBits = uint64(*ce.NVICPrioBits)
	}
	return cpu
}

// buildProperties interprets the raw property group. Enumerated members with
// unrecognized spellings are warned about and treated as absent so a single
// vendor quirk does not fail the whole document.
func (p *treeParser) buildProperties(group *svd.RegisterPropertiesGroup, path string) model.Properties {
	var props model.Properties
	if group.Size != nil {
		size := uint64(*group.Size)
		props.Size = &size
	}
	if group.Access != "" {
		if access, ok := model.ParseAccess(group.Access); ok {
			props.Access = &access
		} else {
			log.Printf("svd: %s: unknown access %q", path, group.Access)
		}
	}
	if group.Protection != "" {
		if protection, ok := model.ParseProtection(group.Protection); ok {
			props.Protection = &protection
		} else {
			log.Printf("svd: %s: unknown protection %q", path, group.Protection)
		}
	}
	if group.ResetValue != nil {
		value := uint64(*group.ResetValue)
		props.ResetValue = &value
	}
	if group.ResetMask != nil {
		mask := uint64(*group.ResetMask)
		props.ResetMask = &mask
	}
	return props
}

func (p *treeParser) buildPeripheral(pe *svd.PeripheralElement, deviceProps model.Properties) (*model.Peripheral, error) {
	path := p.deviceName + "/" + pe.Name
	if pe.Name == "" {
		return nil, &MalformedDocumentError{Path: p.deviceName, Message: "peripheral has no name"}
	}
	if pe.DerivedFrom != "" {
		return nil, &MalformedDocumentError{Path: path, Message: fmt.Sprintf("unresolved derivedFrom %q", pe.DerivedFrom)}
	}
	if pe.BaseAddress == nil {
		return nil, &MalformedDocumentError{Path: path, Message: "peripheral has no baseAddress"}
	}

	peripheral := &model.Peripheral{
		Name:          pe.Name,
		Version:       pe.Version,
		Description:   pe.Description,
		GroupName:     pe.GroupName,
		PrependToName: pe.PrependToName,
		AppendToName:  pe.AppendToName,
		BaseAddress:   uint64(*pe.BaseAddress),
		Properties:    p.buildProperties(&pe.RegisterPropertiesGroup, path).Merge(deviceProps),
	}

	for i := range pe.AddressBlocks {
		block, err := p.buildAddressBlock(&pe.AddressBlocks[i], path)
		if err != nil {
			return nil, err
		}
		peripheral.AddressBlocks = append(peripheral.AddressBlocks, block)
	}
	for i := range pe.Interrupts {
		ie := &pe.Interrupts[i]
		if ie.Value == nil {
			return nil, &MalformedDocumentError{Path: path + "/" + ie.Name, Message: "interrupt has no value"}
		}
		peripheral.Interrupts = append(peripheral.Interrupts, model.Interrupt{
			Name:        ie.Name,
			Description: ie.Description,
			Value:       uint64(*ie.Value),
		})
	}

	if pe.Registers != nil {
		children, err := p.buildRegisterSet(pe.Registers.RegisterElements, pe.Registers.ClusterElements, path, peripheral, peripheral.Properties)
		if err != nil {
			return nil, err
		}
		peripheral.Registers = children
	}
	return peripheral, nil
}

func (p *treeParser) buildAddressBlock(ae *svd.AddressBlockElement, path string) (model.AddressBlock, error) {
	if ae.Offset == nil || ae.Size == nil {
		return model.AddressBlock{}, &MalformedDocumentError{Path: path, Message: "addressBlock missing offset or size"}
	}
	block := model.AddressBlock{
		Offset: uint64(*ae.Offset),
		Size:   uint64(*ae.Size),
		Usage:  model.UsageRegisters,
	}
	if ae.Usage != "" {
		usage, ok := model.ParseBlockUsage(ae.Usage)
		if !ok {
			log.Printf("svd: %s: unknown addressBlock usage %q", path, ae.Usage)
		} else {
			block.Usage = usage
		}
	}
	if ae.Protection != "" {
		if protection, ok := model.ParseProtection(ae.Protection); ok {
			block.Protection = &protection
		} else {
			log.Printf("svd: %s: unknown protection %q", path, ae.Protection)
		}
	}
	return block, nil
}

// buildRegisterSet builds the register and cluster children of a peripheral
// or cluster scope. Sibling names must be unique after expansion.
func (p *treeParser) buildRegisterSet(registers []svd.RegisterElement, clusters []svd.ClusterElement, path string, peripheral *model.Peripheral, parentProps model.Properties) ([]model.RegisterOrCluster, error) {
	seen := map[string]struct{}{}
	check := func(name string) error {
		if _, dup := seen[name]; dup {
			return &MalformedDocumentError{Path: path, Message: fmt.Sprintf("duplicate name %q", name)}
		}
		seen[name] = struct{}{}
		return nil
	}

	var children []model.RegisterOrCluster
	for i := range registers {
		re := &registers[i]
		if p.opts.RemoveReserved && isReserved(re.Name) {
			continue
		}
		if err := check(re.Name); err != nil {
			return nil, err
		}
		register, err := p.buildRegister(re, path, peripheral, parentProps)
		if err != nil {
			return nil, err
		}
		children = append(children, register)
	}
	for i := range clusters {
		ce := &clusters[i]
		if p.opts.RemoveReserved && isReserved(ce.Name) {
			continue
		}
		if err := check(ce.Name); err != nil {
			return nil, err
		}
		cluster, err := p.buildCluster(ce, path, peripheral, parentProps)
		if err != nil {
			return nil, err
		}
		children = append(children, cluster)
	}
	return children, nil
}

func (p *treeParser) buildCluster(ce *svd.ClusterElement, basePath string, peripheral *model.Peripheral, parentProps model.Properties) (*model.Cluster, error) {
	path := basePath + "/" + ce.Name
	if ce.DerivedFrom != "" {
		return nil, &MalformedDocumentError{Path: path, Message: fmt.Sprintf("unresolved derivedFrom %q", ce.DerivedFrom)}
	}
	if ce.AddressOffset == nil {
		return nil, &MalformedDocumentError{Path: path, Message: "cluster has no addressOffset"}
	}
	cluster := &model.Cluster{
		Name:          ce.Name,
		Description:   ce.Description,
		AddressOffset: uint64(*ce.AddressOffset),
		Properties:    p.buildProperties(&ce.RegisterPropertiesGroup, path).Merge(parentProps),
	}
	children, err := p.buildRegisterSet(ce.RegisterElements, ce.ClusterElements, path, peripheral, cluster.Properties)
	if err != nil {
		return nil, err
	}
	cluster.Children = children
	return cluster, nil
}

func (p *treeParser) buildRegister(re *svd.RegisterElement, basePath string, peripheral *model.Peripheral, parentProps model.Properties) (*model.Register, error) {
	path := basePath + "/" + re.Name
	if re.DerivedFrom != "" {
		return nil, &MalformedDocumentError{Path: path, Message: fmt.Sprintf("unresolved derivedFrom %q", re.DerivedFrom)}
	}
	if re.AddressOffset == nil {
		return nil, &MalformedDocumentError{Path: path, Message: "register has no addressOffset"}
	}

	if re.DataType != "" && !model.ValidDataType(re.DataType) {
		log.Printf("svd: %s: unknown dataType %q", path, re.DataType)
	}

	register := &model.Register{
		Name:              peripheral.PrependToName + re.Name + peripheral.AppendToName,
		DisplayName:       re.DisplayName,
		Description:       re.Description,
		AlternateGroup:    re.AlternateGroup,
		AlternateRegister: re.AlternateRegister,
		AddressOffset:     uint64(*re.AddressOffset),
		DataType:          re.DataType,
		Properties:        p.buildProperties(&re.RegisterPropertiesGroup, path).Merge(parentProps).Materialize(),
	}
	register.ModifiedWriteValues = p.buildWriteEffect(re.ModifiedWriteValues, path)
	register.ReadAction = p.buildReadAction(re.ReadAction, path)
	constraint, err := p.buildWriteConstraint(re.WriteConstraint, path)
	if err != nil {
		return nil, err
	}
	register.WriteConstraint = constraint

	if re.Fields != nil {
		seen := map[string]struct{}{}
		for i := range re.Fields.Elements {
			fe := &re.Fields.Elements[i]
			if p.opts.RemoveReserved && isReserved(fe.Name) {
				continue
			}
			if _, dup := seen[fe.Name]; dup {
				return nil, &MalformedDocumentError{Path: path, Message: fmt.Sprintf("duplicate field name %q", fe.Name)}
			}
			seen[fe.Name] = struct{}{}
			field, err := p.buildField(fe, path, register)
			if err != nil {
				return nil, err
			}
			register.Fields = append(register.Fields, field)
		}
	}
	return register, nil
}

var bitRangePattern = regexp.MustCompile(`^\[([0-9]+):([0-9]+)\]$`)

// parseBitRange splits a "[msb:lsb]" range string.
func parseBitRange(s string) (lsb, msb uint64, ok bool) {
	match := bitRangePattern.FindStringSubmatch(strings.TrimSpace(s))
	if match == nil {
		return 0, 0, false
	}
	msb, _ = strconv.ParseUint(match[1], 10, 64)
	lsb, _ = strconv.ParseUint(match[2], 10, 64)
	return lsb, msb, true
}

// normalizeBitRange reduces the three accepted bit position encodings to
// offset and width.
func normalizeBitRange(fe *svd.FieldElement, path string) (offset, width uint64, err error) {
	switch {
	case fe.BitRange != "":
		lsb, msb, ok := parseBitRange(fe.BitRange)
		if !ok {
			return 0, 0, &MalformedDocumentError{Path: path, Message: fmt.Sprintf("unparsable bitRange %q", fe.BitRange)}
		}
		if msb < lsb {
			return 0, 0, &MalformedDocumentError{Path: path, Message: fmt.Sprintf("inverted bitRange %q", fe.BitRange)}
		}
		return lsb, msb - lsb + 1, nil

	case fe.Lsb != nil || fe.Msb != nil:
		if fe.Lsb == nil || fe.Msb == nil {
			return 0, 0, &MalformedDocumentError{Path: path, Message: "lsb and msb must be given together"}
		}
		lsb, msb := uint64(*fe.Lsb), uint64(*fe.Msb)
		if msb < lsb {
			return 0, 0, &MalformedDocumentError{Path: path, Message: fmt.Sprintf("msb %d below lsb %d", msb, lsb)}
		}
		return lsb, msb - lsb + 1, nil

	case fe.BitOffset != nil:
		width = 1
		if fe.BitWidth != nil {
			width = uint64(*fe.BitWidth)
		}
		if width == 0 {
			return 0, 0, &MalformedDocumentError{Path: path, Message: "zero bitWidth"}
		}
		return uint64(*fe.BitOffset), width, nil
	}
	return 0, 0, &MalformedDocumentError{Path: path, Message: "field has no bit position"}
}

// buildWriteEffect and buildReadAction follow the enumerated-member policy of
// buildProperties: unknown spellings are warned about and treated as absent.
func (p *treeParser) buildWriteEffect(s, path string) *model.WriteEffect {
	if s == "" {
		return nil
	}
	effect, ok := model.ParseWriteEffect(s)
	if !ok {
		log.Printf("svd: %s: unknown modifiedWriteValues %q", path, s)
		return nil
	}
	return &effect
}

func (p *treeParser) buildReadAction(s, path string) *model.ReadAction {
	if s == "" {
		return nil
	}
	action, ok := model.ParseReadAction(s)
	if !ok {
		log.Printf("svd: %s: unknown readAction %q", path, s)
		return nil
	}
	return &action
}

func (p *treeParser) buildWriteConstraint(we *svd.WriteConstraintElement, path string) (*model.WriteConstraint, error) {
	if we == nil {
		return nil, nil
	}
	constraint := &model.WriteConstraint{
		WriteAsRead:         we.WriteAsRead != nil && bool(*we.WriteAsRead),
		UseEnumeratedValues: we.UseEnumeratedValues != nil && bool(*we.UseEnumeratedValues),
	}
	if we.Range != nil {
		if we.Range.Minimum == nil || we.Range.Maximum == nil {
			return nil, &MalformedDocumentError{Path: path, Message: "writeConstraint range missing minimum or maximum"}
		}
		constraint.Range = &model.WriteConstraintRange{
			Minimum: uint64(*we.Range.Minimum),
			Maximum: uint64(*we.Range.Maximum),
		}
	}
	return constraint, nil
}

func (p *treeParser) buildField(fe *svd.FieldElement, basePath string, register *model.Register) (*model.Field, error) {
	path := basePath + "/" + fe.Name
	if fe.DerivedFrom != "" {
		return nil, &MalformedDocumentError{Path: path, Message: fmt.Sprintf("unresolved derivedFrom %q", fe.DerivedFrom)}
	}
	offset, width, err := normalizeBitRange(fe, path)
	if err != nil {
		return nil, err
	}
	size := register.Size()
	if offset+width > size {
		return nil, &BitRangeOverflowError{Path: path, BitOffset: offset, BitWidth: width, RegisterSize: size}
	}

	field := &model.Field{
		Name:        fe.Name,
		Description: fe.Description,
		BitOffset:   offset,
		BitWidth:    width,
	}
	field.ModifiedWriteValues = p.buildWriteEffect(fe.ModifiedWriteValues, path)
	field.ReadAction = p.buildReadAction(fe.ReadAction, path)
	constraint, err := p.buildWriteConstraint(fe.WriteConstraint, path)
	if err != nil {
		return nil, err
	}
	field.WriteConstraint = constraint

	var haveAccess bool
	if fe.Access != "" {
		if access, ok := model.ParseAccess(fe.Access); ok {
			field.Access = access
			haveAccess = true
		} else {
			log.Printf("svd: %s: unknown access %q", path, fe.Access)
		}
	}
	if !haveAccess {
		access, ok := register.Access()
		if !ok {
			return nil, &MissingPropertyError{Path: path, Property: "access"}
		}
		field.Access = access
	}

	if fe.EnumeratedValues != nil {
		if fe.EnumeratedValues.DerivedFrom != "" {
			return nil, &MalformedDocumentError{Path: path, Message: fmt.Sprintf("unresolved derivedFrom %q", fe.EnumeratedValues.DerivedFrom)}
		}
		for i := range fe.EnumeratedValues.Elements {
			ee := &fe.EnumeratedValues.Elements[i]
			ev := model.EnumeratedValue{
				Name:        ee.Name,
				Description: ee.Description,
				IsDefault:   ee.IsDefault != nil && bool(*ee.IsDefault),
			}
			if ee.Value != nil {
				value := uint64(*ee.Value)
				ev.Value = &value
			} else if !ev.IsDefault {
				return nil, &MalformedDocumentError{Path: path + "/" + ee.Name, Message: "enumeratedValue has no value"}
			}
			field.EnumeratedValues = append(field.EnumeratedValues, ev)
		}
	}
	return field, nil
}

func isReserved(name string) bool {
	return strings.Contains(strings.ToLower(name), "reserved")
}

func boolValue(b *svd.Bool) *bool {
	if b == nil {
		return nil
	}
	v := bool(*b)
	return &v
}
