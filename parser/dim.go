package parser

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"omibyte.io/svd/svd"
)

// Expansion rewrites every dimensioned declaration into its concrete
// instances. It runs after derivation so that a template derived from is
// expanded exactly once per deriving element.

// dimLabels returns the substitution label for each instance of a dimensioned
// element. Without a dimIndex the labels are the decimal instance numbers.
func dimLabels(spec string, count uint64, path string) ([]string, error) {
	if spec == "" {
		labels := make([]string, count)
		for i := range labels {
			labels[i] = strconv.Itoa(i)
		}
		return labels, nil
	}

	var labels []string
	if start, stop, isRange := strings.Cut(spec, "-"); isRange && !strings.Contains(spec, ",") {
		startN, startErr := strconv.ParseUint(start, 10, 64)
		stopN, stopErr := strconv.ParseUint(stop, 10, 64)
		switch {
		case startErr == nil && stopErr == nil:
			if stopN < startN {
				return nil, &InvalidDimensionSpecError{Path: path, Reason: "descending dimIndex range " + spec}
			}
			for n := startN; n <= stopN; n++ {
				labels = append(labels, strconv.FormatUint(n, 10))
			}
		case len(start) == 1 && len(stop) == 1 && isLetter(start[0]) && isLetter(stop[0]):
			if stop[0] < start[0] {
				return nil, &InvalidDimensionSpecError{Path: path, Reason: "descending dimIndex range " + spec}
			}
			for c := start[0]; c <= stop[0]; c++ {
				labels = append(labels, string(c))
			}
		default:
			return nil, &InvalidDimensionSpecError{Path: path, Reason: "unparsable dimIndex range " + spec}
		}
	} else {
		for _, label := range strings.Split(spec, ",") {
			labels = append(labels, strings.TrimSpace(label))
		}
	}

	if uint64(len(labels)) != count {
		return nil, &InvalidDimensionSpecError{
			Path:   path,
			Reason: fmt.Sprintf("dimIndex yields %d labels for dim %d", len(labels), count),
		}
	}
	return labels, nil
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// expandName substitutes the instance label into a dimensioned name. Names
// without the %s placeholder get the zero-based instance number appended;
// dimIndex labels only take effect through the placeholder.
func expandName(name, label string, index uint64) string {
	if strings.Contains(name, "%s") {
		return strings.ReplaceAll(name, "%s", label)
	}
	return name + strconv.FormatUint(index, 10)
}

// checkDim validates a dim declaration and produces the instance labels. The
// returned count is zero when the element is not dimensioned.
func checkDim(group *svd.DimElementGroup, path string) (count uint64, increment uint64, labels []string, err error) {
	if group.Dim == nil {
		return 0, 0, nil, nil
	}
	count = uint64(*group.Dim)
	if count == 0 {
		return 0, 0, nil, &InvalidDimensionSpecError{Path: path, Reason: "dim is zero"}
	}
	if group.DimIncrement == nil {
		if count > 1 {
			return 0, 0, nil, &InvalidDimensionSpecError{Path: path, Reason: "dim without dimIncrement"}
		}
	} else {
		increment = uint64(*group.DimIncrement)
	}
	labels, err = dimLabels(group.DimIndex, count, path)
	if err != nil {
		return 0, 0, nil, err
	}
	return count, increment, labels, nil
}

func (p *treeParser) expandPeripherals(root *svd.DeviceElement) error {
	src := root.Peripherals.Elements
	expanded := make([]svd.PeripheralElement, 0, len(src))
	for i := range src {
		pe := &src[i]
		path := p.deviceName + "/" + pe.Name
		count, increment, labels, err := checkDim(&pe.DimElementGroup, path)
		if err != nil {
			return err
		}
		if count == 0 {
			if err := p.expandPeripheralContents(pe); err != nil {
				return err
			}
			expanded = append(expanded, *pe)
			continue
		}
		if pe.BaseAddress == nil {
			return &MalformedDocumentError{Path: path, Message: "dimensioned peripheral without baseAddress"}
		}
		for n := uint64(0); n < count; n++ {
			instance := *pe
			instance.Name = expandName(pe.Name, labels[n], n)
			instance.DimElementGroup = svd.DimElementGroup{}
			address := svd.HexInteger(uint64(*pe.BaseAddress) + n*increment)
			instance.BaseAddress = &address
			instance.AddressBlocks = slices.Clone(pe.AddressBlocks)
			instance.Interrupts = slices.Clone(pe.Interrupts)
			instance.Registers = cloneRegisters(pe.Registers)
			if err := p.expandPeripheralContents(&instance); err != nil {
				return err
			}
			expanded = append(expanded, instance)
		}
	}
	root.Peripherals.Elements = expanded
	return nil
}

func (p *treeParser) expandPeripheralContents(pe *svd.PeripheralElement) error {
	if pe.Registers == nil {
		return nil
	}
	basePath := p.deviceName + "/" + pe.Name
	registers, clusters, err := p.expandRegisterSet(pe.Registers.RegisterElements, pe.Registers.ClusterElements, basePath)
	if err != nil {
		return err
	}
	pe.Registers.RegisterElements = registers
	pe.Registers.ClusterElements = clusters
	return nil
}

func (p *treeParser) expandRegisterSet(registers []svd.RegisterElement, clusters []svd.ClusterElement, basePath string) ([]svd.RegisterElement, []svd.ClusterElement, error) {
	expandedRegisters := make([]svd.RegisterElement, 0, len(registers))
	for i := range registers {
		out, err := p.expandRegister(&registers[i], basePath)
		if err != nil {
			return nil, nil, err
		}
		expandedRegisters = append(expandedRegisters, out...)
	}

	expandedClusters := make([]svd.ClusterElement, 0, len(clusters))
	for i := range clusters {
		out, err := p.expandCluster(&clusters[i], basePath)
		if err != nil {
			return nil, nil, err
		}
		expandedClusters = append(expandedClusters, out...)
	}
	return expandedRegisters, expandedClusters, nil
}

func (p *treeParser) expandRegister(re *svd.RegisterElement, basePath string) ([]svd.RegisterElement, error) {
	path := basePath + "/" + re.Name
	count, increment, labels, err := checkDim(&re.DimElementGroup, path)
	if err != nil {
		return nil, err
	}
	if err := p.expandRegisterFields(re, path); err != nil {
		return nil, err
	}
	if count == 0 {
		return []svd.RegisterElement{*re}, nil
	}
	if re.AddressOffset == nil {
		return nil, &MalformedDocumentError{Path: path, Message: "dimensioned register without addressOffset"}
	}

	out := make([]svd.RegisterElement, 0, count)
	for n := uint64(0); n < count; n++ {
		instance := *re
		instance.Name = expandName(re.Name, labels[n], n)
		if re.DisplayName != "" {
			instance.DisplayName = expandName(re.DisplayName, labels[n], n)
		}
		instance.DimElementGroup = svd.DimElementGroup{}
		offset := svd.HexInteger(uint64(*re.AddressOffset) + n*increment)
		instance.AddressOffset = &offset
		instance.Fields = cloneFields(re.Fields)
		out = append(out, instance)
	}
	return out, nil
}

func (p *treeParser) expandCluster(ce *svd.ClusterElement, basePath string) ([]svd.ClusterElement, error) {
	path := basePath + "/" + ce.Name
	count, increment, labels, err := checkDim(&ce.DimElementGroup, path)
	if err != nil {
		return nil, err
	}

	registers, clusters, err := p.expandRegisterSet(ce.RegisterElements, ce.ClusterElements, path)
	if err != nil {
		return nil, err
	}
	ce.RegisterElements = registers
	ce.ClusterElements = clusters

	if count == 0 {
		return []svd.ClusterElement{*ce}, nil
	}
	if ce.AddressOffset == nil {
		return nil, &MalformedDocumentError{Path: path, Message: "dimensioned cluster without addressOffset"}
	}

	out := make([]svd.ClusterElement, 0, count)
	for n := uint64(0); n < count; n++ {
		instance := *ce
		instance.Name = expandName(ce.Name, labels[n], n)
		instance.DimElementGroup = svd.DimElementGroup{}
		offset := svd.HexInteger(uint64(*ce.AddressOffset) + n*increment)
		instance.AddressOffset = &offset
		instance.RegisterElements = cloneRegisterSlice(ce.RegisterElements)
		instance.ClusterElements = cloneClusterSlice(ce.ClusterElements)
		out = append(out, instance)
	}
	return out, nil
}

// expandRegisterFields expands dimensioned fields in place. The dim increment
// of a field advances its bit offset rather than an address.
func (p *treeParser) expandRegisterFields(re *svd.RegisterElement, basePath string) error {
	if re.Fields == nil {
		return nil
	}
	expanded := make([]svd.FieldElement, 0, len(re.Fields.Elements))
	for i := range re.Fields.Elements {
		fe := &re.Fields.Elements[i]
		path := basePath + "/" + fe.Name
		count, increment, labels, err := checkDim(&fe.DimElementGroup, path)
		if err != nil {
			return err
		}
		if count == 0 {
			expanded = append(expanded, *fe)
			continue
		}
		var rangeLsb, rangeMsb uint64
		switch {
		case fe.BitRange != "":
			var ok bool
			rangeLsb, rangeMsb, ok = parseBitRange(fe.BitRange)
			if !ok {
				return &MalformedDocumentError{Path: path, Message: fmt.Sprintf("unparsable bitRange %q", fe.BitRange)}
			}
		case fe.BitOffset != nil:
		case fe.Lsb != nil && fe.Msb != nil:
		default:
			return &MalformedDocumentError{Path: path, Message: "dimensioned field without a bit position"}
		}
		for n := uint64(0); n < count; n++ {
			instance := *fe
			instance.Name = expandName(fe.Name, labels[n], n)
			instance.DimElementGroup = svd.DimElementGroup{}
			switch {
			case fe.BitRange != "":
				instance.BitRange = fmt.Sprintf("[%d:%d]", rangeMsb+n*increment, rangeLsb+n*increment)
			case fe.BitOffset != nil:
				offset := svd.Integer(uint64(*fe.BitOffset) + n*increment)
				instance.BitOffset = &offset
			default:
				lsb := svd.Integer(uint64(*fe.Lsb) + n*increment)
				msb := svd.Integer(uint64(*fe.Msb) + n*increment)
				instance.Lsb = &lsb
				instance.Msb = &msb
			}
			instance.EnumeratedValues = cloneEnumeratedValues(fe.EnumeratedValues)
			expanded = append(expanded, instance)
		}
	}
	re.Fields.Elements = expanded
	return nil
}
