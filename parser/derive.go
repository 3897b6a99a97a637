package parser

import (
	"hash/fnv"
	"strings"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/topo"

	"omibyte.io/svd/svd"
)

// Derivation is resolved on the raw, un-expanded declarations: a dimensioned
// template derives once and is expanded afterwards. Peripheral references are
// ordered with a topological sort of the derivedFrom graph so that every
// referenced peripheral is merged before anything deriving from it; register,
// cluster and field references are resolved with a depth-tracked walk that
// detects cycles through the resolution stack.

type peripheralNode struct {
	name string
	id   int64
}

func (n *peripheralNode) ID() int64 { return n.id }

func (p *treeParser) resolvePeripheralDerivations(root *svd.DeviceElement) error {
	elements := root.Peripherals.Elements

	graph := multi.NewDirectedGraph()
	nodes := map[string]*peripheralNode{}
	makeNode := func(name string) *peripheralNode {
		if n, ok := nodes[name]; ok {
			return n
		}
		hasher := fnv.New64()
		hasher.Write([]byte(name))
		n := &peripheralNode{name: name, id: int64(hasher.Sum64())}
		nodes[name] = n
		graph.AddNode(n)
		return n
	}

	for i := range elements {
		pe := &elements[i]
		node := makeNode(pe.Name)
		if pe.DerivedFrom == "" {
			continue
		}
		if pe.DerivedFrom == pe.Name {
			return &DerivationCycleError{
				Path:  p.deviceName + "/" + pe.Name,
				Chain: []string{pe.Name, pe.Name},
			}
		}
		if _, ok := root.Peripherals.Find(pe.DerivedFrom); !ok {
			return &DerivationTargetNotFoundError{
				Path:   p.deviceName + "/" + pe.Name,
				Target: pe.DerivedFrom,
			}
		}
		graph.SetLine(graph.NewLine(makeNode(pe.DerivedFrom), node))
	}

	sorted, err := topo.Sort(graph)
	if err != nil {
		unordered, ok := err.(topo.Unorderable)
		if !ok {
			return err
		}
		var chain []string
		for _, n := range unordered[0] {
			chain = append(chain, n.(*peripheralNode).name)
		}
		return &DerivationCycleError{Path: p.deviceName, Chain: chain}
	}

	for _, node := range sorted {
		i, ok := root.Peripherals.Find(node.(*peripheralNode).name)
		if !ok {
			continue
		}
		pe := &elements[i]
		if pe.DerivedFrom == "" {
			continue
		}
		j, _ := root.Peripherals.Find(pe.DerivedFrom)
		mergePeripheral(pe, &elements[j])
		pe.DerivedFrom = ""
	}
	return nil
}

// registerResolver resolves register- and cluster-level derivedFrom
// references at every nesting depth. The scope of an unqualified reference is
// the sibling sequence containing the deriving element; a qualified
// "PERIPH.REG" reference, and only that form, crosses peripherals and
// resolves against the target peripheral's top-level sequence.
type registerResolver struct {
	parser *treeParser
	device *svd.DeviceElement
	stack  []string
}

// registerScope is one sibling sequence of registers and clusters, either a
// peripheral's top level or the contents of a cluster. The slice headers
// alias the element tree so resolved elements are rewritten in place.
type registerScope struct {
	path      string
	registers []svd.RegisterElement
	clusters  []svd.ClusterElement
}

func peripheralScope(pe *svd.PeripheralElement) registerScope {
	s := registerScope{path: pe.Name}
	if pe.Registers != nil {
		s.registers = pe.Registers.RegisterElements
		s.clusters = pe.Registers.ClusterElements
	}
	return s
}

func clusterScope(parent registerScope, ce *svd.ClusterElement) registerScope {
	return registerScope{
		path:      parent.path + "/" + ce.Name,
		registers: ce.RegisterElements,
		clusters:  ce.ClusterElements,
	}
}

func (s registerScope) findRegister(name string) *svd.RegisterElement {
	for i := range s.registers {
		if s.registers[i].Name == name {
			return &s.registers[i]
		}
	}
	return nil
}

func (s registerScope) findCluster(name string) *svd.ClusterElement {
	for i := range s.clusters {
		if s.clusters[i].Name == name {
			return &s.clusters[i]
		}
	}
	return nil
}

func (p *treeParser) resolveRegisterDerivations(root *svd.DeviceElement) error {
	r := &registerResolver{parser: p, device: root}
	for i := range root.Peripherals.Elements {
		pe := &root.Peripherals.Elements[i]
		if err := r.resolveScope(peripheralScope(pe)); err != nil {
			return err
		}
		if err := resolveFieldDerivations(p, pe); err != nil {
			return err
		}
	}
	return nil
}

func (r *registerResolver) resolveScope(s registerScope) error {
	for i := range s.registers {
		if err := r.resolveRegister(s, &s.registers[i]); err != nil {
			return err
		}
	}
	for i := range s.clusters {
		ce := &s.clusters[i]
		if err := r.resolveCluster(s, ce); err != nil {
			return err
		}
		if err := r.resolveScope(clusterScope(s, ce)); err != nil {
			return err
		}
	}
	return nil
}

func (r *registerResolver) path(s registerScope, name string) string {
	return r.parser.deviceName + "/" + s.path + "/" + name
}

func (r *registerResolver) enter(key, path string) error {
	if i := slices.Index(r.stack, key); i >= 0 {
		return &DerivationCycleError{
			Path:  path,
			Chain: append(r.stack[i:len(r.stack):len(r.stack)], key),
		}
	}
	r.stack = append(r.stack, key)
	return nil
}

func (r *registerResolver) leave() {
	r.stack = r.stack[:len(r.stack)-1]
}

// target splits a derivedFrom reference into the scope to search and the
// local element name within it.
func (r *registerResolver) target(s registerScope, ref string) (registerScope, string, bool) {
	if periph, name, qualified := strings.Cut(ref, "."); qualified {
		i, ok := r.device.Peripherals.Find(periph)
		if !ok {
			return registerScope{}, "", false
		}
		return peripheralScope(&r.device.Peripherals.Elements[i]), name, true
	}
	return s, ref, true
}

func (r *registerResolver) resolveRegister(s registerScope, re *svd.RegisterElement) error {
	if re.DerivedFrom == "" {
		return nil
	}
	key := s.path + "." + re.Name
	if err := r.enter(key, r.path(s, re.Name)); err != nil {
		return err
	}
	defer r.leave()

	targetScope, name, ok := r.target(s, re.DerivedFrom)
	var base *svd.RegisterElement
	if ok {
		base = targetScope.findRegister(name)
	}
	if base == nil {
		return &DerivationTargetNotFoundError{Path: r.path(s, re.Name), Target: re.DerivedFrom}
	}
	if err := r.resolveRegister(targetScope, base); err != nil {
		return err
	}
	mergeRegister(re, base)
	re.DerivedFrom = ""
	return nil
}

func (r *registerResolver) resolveCluster(s registerScope, ce *svd.ClusterElement) error {
	if ce.DerivedFrom == "" {
		return nil
	}
	key := s.path + "." + ce.Name
	if err := r.enter(key, r.path(s, ce.Name)); err != nil {
		return err
	}
	defer r.leave()

	targetScope, name, ok := r.target(s, ce.DerivedFrom)
	var base *svd.ClusterElement
	if ok {
		base = targetScope.findCluster(name)
	}
	if base == nil {
		return &DerivationTargetNotFoundError{Path: r.path(s, ce.Name), Target: ce.DerivedFrom}
	}
	if err := r.resolveCluster(targetScope, base); err != nil {
		return err
	}
	mergeCluster(ce, base)
	ce.DerivedFrom = ""
	return nil
}

// resolveEnumeratedValueDerivations flattens derivedFrom references between
// enumeratedValues containers. The reference names the <name> child of the
// source container and is looked up across the whole document, matching the
// first declaration in document order.
func (p *treeParser) resolveEnumeratedValueDerivations(root *svd.DeviceElement) error {
	type entry struct {
		element *svd.EnumeratedValuesElement
		path    string
	}
	var all []entry
	byName := map[string]*svd.EnumeratedValuesElement{}

	var collectRegisters func(registers []svd.RegisterElement, clusters []svd.ClusterElement, basePath string)
	collectRegisters = func(registers []svd.RegisterElement, clusters []svd.ClusterElement, basePath string) {
		for i := range registers {
			re := &registers[i]
			if re.Fields == nil {
				continue
			}
			for j := range re.Fields.Elements {
				fe := &re.Fields.Elements[j]
				ev := fe.EnumeratedValues
				if ev == nil {
					continue
				}
				all = append(all, entry{element: ev, path: basePath + "/" + re.Name + "/" + fe.Name})
				if ev.Name != "" {
					if _, taken := byName[ev.Name]; !taken {
						byName[ev.Name] = ev
					}
				}
			}
		}
		for i := range clusters {
			ce := &clusters[i]
			collectRegisters(ce.RegisterElements, ce.ClusterElements, basePath+"/"+ce.Name)
		}
	}
	for i := range root.Peripherals.Elements {
		pe := &root.Peripherals.Elements[i]
		if pe.Registers == nil {
			continue
		}
		collectRegisters(pe.Registers.RegisterElements, pe.Registers.ClusterElements, p.deviceName+"/"+pe.Name)
	}

	var resolve func(ev *svd.EnumeratedValuesElement, path string, stack []*svd.EnumeratedValuesElement) error
	resolve = func(ev *svd.EnumeratedValuesElement, path string, stack []*svd.EnumeratedValuesElement) error {
		if ev.DerivedFrom == "" {
			return nil
		}
		if slices.Contains(stack, ev) {
			var chain []string
			for _, e := range stack {
				chain = append(chain, e.Name)
			}
			return &DerivationCycleError{Path: path, Chain: append(chain, ev.Name)}
		}
		base, ok := byName[ev.DerivedFrom]
		if !ok {
			return &DerivationTargetNotFoundError{Path: path, Target: ev.DerivedFrom}
		}
		if err := resolve(base, path, append(stack, ev)); err != nil {
			return err
		}
		if len(ev.Elements) == 0 {
			ev.Elements = slices.Clone(base.Elements)
		}
		if ev.Usage == "" {
			ev.Usage = base.Usage
		}
		if ev.HeaderEnumName == "" {
			ev.HeaderEnumName = base.HeaderEnumName
		}
		ev.DerivedFrom = ""
		return nil
	}
	for _, e := range all {
		if err := resolve(e.element, e.path, nil); err != nil {
			return err
		}
	}
	return nil
}

// resolveFieldDerivations handles field-level derivedFrom references, which
// are scoped to siblings within the same register.
func resolveFieldDerivations(p *treeParser, pe *svd.PeripheralElement) error {
	if pe.Registers == nil {
		return nil
	}
	for i := range pe.Registers.RegisterElements {
		re := &pe.Registers.RegisterElements[i]
		if err := resolveRegisterFields(p, pe, re); err != nil {
			return err
		}
	}
	for i := range pe.Registers.ClusterElements {
		if err := resolveClusterFields(p, pe, &pe.Registers.ClusterElements[i]); err != nil {
			return err
		}
	}
	return nil
}

func resolveClusterFields(p *treeParser, pe *svd.PeripheralElement, ce *svd.ClusterElement) error {
	for i := range ce.RegisterElements {
		if err := resolveRegisterFields(p, pe, &ce.RegisterElements[i]); err != nil {
			return err
		}
	}
	for i := range ce.ClusterElements {
		if err := resolveClusterFields(p, pe, &ce.ClusterElements[i]); err != nil {
			return err
		}
	}
	return nil
}

func resolveRegisterFields(p *treeParser, pe *svd.PeripheralElement, re *svd.RegisterElement) error {
	if re.Fields == nil {
		return nil
	}
	fields := re.Fields.Elements
	var resolve func(fe *svd.FieldElement, stack []string) error
	resolve = func(fe *svd.FieldElement, stack []string) error {
		if fe.DerivedFrom == "" {
			return nil
		}
		path := p.deviceName + "/" + pe.Name + "/" + re.Name + "/" + fe.Name
		if i := slices.Index(stack, fe.Name); i >= 0 {
			return &DerivationCycleError{Path: path, Chain: append(stack[i:], fe.Name)}
		}
		var base *svd.FieldElement
		for j := range fields {
			if fields[j].Name == fe.DerivedFrom {
				base = &fields[j]
				break
			}
		}
		if base == nil {
			return &DerivationTargetNotFoundError{Path: path, Target: fe.DerivedFrom}
		}
		if err := resolve(base, append(stack, fe.Name)); err != nil {
			return err
		}
		mergeField(fe, base)
		fe.DerivedFrom = ""
		return nil
	}
	for i := range fields {
		if err := resolve(&fields[i], nil); err != nil {
			return err
		}
	}
	return nil
}
