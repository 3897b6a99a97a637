// Package serializer renders a resolved device back out: either as an SVD
// document or as an ordered key/value tree for JSON and YAML consumers. The
// document form is minimal, a property is only written where the resolved
// value could not be reproduced by inheritance; the tree form is exhaustive
// and writes every attribute of every node.
package serializer

import (
	"bytes"
	"encoding/xml"
	"strings"

	"omibyte.io/svd/model"
	"omibyte.io/svd/svd"
)

// MarshalXML renders the device as an SVD document.
func MarshalXML(device *model.Device) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	encoded, err := xml.MarshalIndent(ToDocument(device), "", "  ")
	if err != nil {
		return nil, err
	}
	buf.Write(encoded)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ToDocument rebuilds the element tree for a resolved device. Expanded array
// instances are emitted as individual elements and derivation is not
// reintroduced; prependToName and appendToName affixes are stripped from
// register names since the document declares the affixes separately.
func ToDocument(device *model.Device) *svd.DeviceElement {
	root := &svd.DeviceElement{
		SchemaVersion:           device.SchemaVersion,
		Vendor:                  device.Vendor,
		VendorID:                device.VendorID,
		Name:                    device.Name,
		Series:                  device.Series,
		Version:                 device.Version,
		Description:             device.Description,
		LicenseText:             device.LicenseText,
		HeaderSystemFilename:    device.HeaderSystemFilename,
		HeaderDefinitionsPrefix: device.HeaderDefinitionsPrefix,
		AddressUnitBits:         intValue(device.AddressUnitBits),
		Width:                   intValue(device.Width),
	}
	root.RegisterPropertiesGroup = propertiesElement(device.Properties, model.Properties{}, nil)

	if device.CPU != nil {
		root.CPU = cpuElement(device.CPU)
	}
	for _, peripheral := range device.Peripherals {
		root.Peripherals.Elements = append(root.Peripherals.Elements, peripheralElement(peripheral, device.Properties))
	}
	return root
}

func cpuElement(cpu *model.CPU) *svd.CPUElement {
	ce := &svd.CPUElement{
		Name:                cpu.Name,
		Revision:            cpu.Revision,
		Endian:              cpu.Endian.String(),
		MPUPresent:          boolElement(cpu.MPUPresent),
		FPUPresent:          boolElement(cpu.FPUPresent),
		ICachePresent:       boolElement(cpu.ICachePresent),
		DCachePresent:       boolElement(cpu.DCachePresent),
		ITCMPresent:         boolElement(cpu.ITCMPresent),
		DTCMPresent:         boolElement(cpu.DTCMPresent),
		VTORPresent:         boolElement(cpu.VTORPresent),
		VendorSystickConfig: boolElement(cpu.VendorSystickConfig),
	}
	if cpu.NVICPrioBits != 0 {
		ce.NVICPrioBits = intValue(cpu.NVICPrioBits)
	}
	return ce
}

func peripheralElement(peripheral *model.Peripheral, deviceProps model.Properties) svd.PeripheralElement {
	pe := svd.PeripheralElement{
		Name:          peripheral.Name,
		Version:       peripheral.Version,
		Description:   peripheral.Description,
		GroupName:     peripheral.GroupName,
		PrependToName: peripheral.PrependToName,
		AppendToName:  peripheral.AppendToName,
		BaseAddress:   hexValue(peripheral.BaseAddress),
	}
	pe.RegisterPropertiesGroup = propertiesElement(peripheral.Properties, deviceProps, nil)

	for _, block := range peripheral.AddressBlocks {
		ae := svd.AddressBlockElement{
			Offset: hexValue(block.Offset),
			Size:   hexValue(block.Size),
			Usage:  block.Usage.String(),
		}
		if block.Protection != nil {
			ae.Protection = block.Protection.String()
		}
		pe.AddressBlocks = append(pe.AddressBlocks, ae)
	}
	for _, interrupt := range peripheral.Interrupts {
		pe.Interrupts = append(pe.Interrupts, svd.InterruptElement{
			Name:        interrupt.Name,
			Description: interrupt.Description,
			Value:       intValue(interrupt.Value),
		})
	}

	if len(peripheral.Registers) > 0 {
		pe.Registers = &svd.RegistersElement{}
		for _, child := range peripheral.Registers {
			switch v := child.(type) {
			case *model.Register:
				pe.Registers.RegisterElements = append(pe.Registers.RegisterElements, registerElement(v, peripheral, peripheral.Properties))
			case *model.Cluster:
				pe.Registers.ClusterElements = append(pe.Registers.ClusterElements, clusterElement(v, peripheral, peripheral.Properties))
			}
		}
	}
	return pe
}

func clusterElement(cluster *model.Cluster, peripheral *model.Peripheral, parentProps model.Properties) svd.ClusterElement {
	ce := svd.ClusterElement{
		Name:          cluster.Name,
		Description:   cluster.Description,
		AddressOffset: hexValue(cluster.AddressOffset),
	}
	ce.RegisterPropertiesGroup = propertiesElement(cluster.Properties, parentProps, nil)

	for _, child := range cluster.Children {
		switch v := child.(type) {
		case *model.Register:
			ce.RegisterElements = append(ce.RegisterElements, registerElement(v, peripheral, cluster.Properties))
		case *model.Cluster:
			ce.ClusterElements = append(ce.ClusterElements, clusterElement(v, peripheral, cluster.Properties))
		}
	}
	return ce
}

func registerElement(register *model.Register, peripheral *model.Peripheral, parentProps model.Properties) svd.RegisterElement {
	size := register.Size()
	re := svd.RegisterElement{
		Name:              stripAffixes(register.Name, peripheral),
		DisplayName:       register.DisplayName,
		Description:       register.Description,
		AlternateGroup:    register.AlternateGroup,
		AlternateRegister: register.AlternateRegister,
		AddressOffset:     hexValue(register.AddressOffset),
		DataType:          register.DataType,
		WriteConstraint:   writeConstraintElement(register.WriteConstraint),
	}
	if register.ModifiedWriteValues != nil {
		re.ModifiedWriteValues = register.ModifiedWriteValues.String()
	}
	if register.ReadAction != nil {
		re.ReadAction = register.ReadAction.String()
	}
	re.RegisterPropertiesGroup = propertiesElement(register.Properties, parentProps, &size)

	if len(register.Fields) > 0 {
		re.Fields = &svd.FieldsElement{}
		for _, field := range register.Fields {
			re.Fields.Elements = append(re.Fields.Elements, fieldElement(field, register))
		}
	}
	return re
}

func fieldElement(field *model.Field, register *model.Register) svd.FieldElement {
	fe := svd.FieldElement{
		Name:            field.Name,
		Description:     field.Description,
		BitOffset:       intValue(field.BitOffset),
		BitWidth:        intValue(field.BitWidth),
		WriteConstraint: writeConstraintElement(field.WriteConstraint),
	}
	if access, ok := register.Access(); !ok || access != field.Access {
		fe.Access = field.Access.String()
	}
	if field.ModifiedWriteValues != nil {
		fe.ModifiedWriteValues = field.ModifiedWriteValues.String()
	}
	if field.ReadAction != nil {
		fe.ReadAction = field.ReadAction.String()
	}

	if len(field.EnumeratedValues) > 0 {
		fe.EnumeratedValues = &svd.EnumeratedValuesElement{}
		for _, ev := range field.EnumeratedValues {
			ee := svd.EnumeratedValueElement{
				Name:        ev.Name,
				Description: ev.Description,
			}
			if ev.Value != nil {
				ee.Value = hexValue(*ev.Value)
			}
			if ev.IsDefault {
				isDefault := svd.Bool(true)
				ee.IsDefault = &isDefault
			}
			fe.EnumeratedValues.Elements = append(fe.EnumeratedValues.Elements, ee)
		}
	}
	return fe
}

// propertiesElement writes the property members a reader could not recover by
// inheriting from ctx. When registerSize is non-nil the scope is a register
// and the architectural defaults apply wherever ctx is silent.
func propertiesElement(props, ctx model.Properties, registerSize *uint64) svd.RegisterPropertiesGroup {
	var group svd.RegisterPropertiesGroup
	materialized := registerSize != nil

	if props.Size != nil {
		inherited, fallback := ctx.Size, uint64(model.DefaultRegisterSize)
		if !omitted(*props.Size, inherited, fallback, materialized) {
			group.Size = intValue(*props.Size)
		}
	}
	if props.Access != nil && (ctx.Access == nil || *ctx.Access != *props.Access) {
		group.Access = props.Access.String()
	}
	if props.Protection != nil && (ctx.Protection == nil || *ctx.Protection != *props.Protection) {
		group.Protection = props.Protection.String()
	}
	if props.ResetValue != nil {
		if !omitted(*props.ResetValue, ctx.ResetValue, 0, materialized) {
			group.ResetValue = hexValue(*props.ResetValue)
		}
	}
	if props.ResetMask != nil {
		var fallback uint64
		if registerSize != nil {
			fallback = model.AllOnes(*registerSize)
		}
		if !omitted(*props.ResetMask, ctx.ResetMask, fallback, materialized) {
			group.ResetMask = hexValue(*props.ResetMask)
		}
	}
	return group
}

// omitted reports whether a numeric property value is recoverable from the
// inherited context, or from the architectural default at a materialized
// scope with no inherited value.
func omitted(v uint64, inherited *uint64, fallback uint64, materialized bool) bool {
	if inherited != nil {
		return v == *inherited
	}
	return materialized && v == fallback
}

func writeConstraintElement(wc *model.WriteConstraint) *svd.WriteConstraintElement {
	if wc == nil {
		return nil
	}
	we := &svd.WriteConstraintElement{}
	if wc.WriteAsRead {
		v := svd.Bool(true)
		we.WriteAsRead = &v
	}
	if wc.UseEnumeratedValues {
		v := svd.Bool(true)
		we.UseEnumeratedValues = &v
	}
	if wc.Range != nil {
		we.Range = &svd.WriteConstraintRangeElement{
			Minimum: hexValue(wc.Range.Minimum),
			Maximum: hexValue(wc.Range.Maximum),
		}
	}
	return we
}

func stripAffixes(name string, peripheral *model.Peripheral) string {
	name = strings.TrimPrefix(name, peripheral.PrependToName)
	return strings.TrimSuffix(name, peripheral.AppendToName)
}

func intValue(v uint64) *svd.Integer {
	out := svd.Integer(v)
	return &out
}

func hexValue(v uint64) *svd.HexInteger {
	out := svd.HexInteger(v)
	return &out
}

func boolElement(v *bool) *svd.Bool {
	if v == nil {
		return nil
	}
	out := svd.Bool(*v)
	return &out
}
