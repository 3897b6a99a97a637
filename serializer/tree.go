package serializer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"omibyte.io/svd/model"
)

// Tree is an insertion-ordered key/value mapping. Values are scalars, nested
// trees, or []any lists of either. A nil value is rendered as an explicit
// null: the tree form writes every attribute, absent ones included, which
// keeps the key set of a node independent of the document it came from.
type Tree struct {
	pairs []treePair
}

type treePair struct {
	key   string
	value any
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{}
}

// Set appends the pair, replacing the value in place if the key exists.
func (t *Tree) Set(key string, value any) *Tree {
	for i := range t.pairs {
		if t.pairs[i].key == key {
			t.pairs[i].value = value
			return t
		}
	}
	t.pairs = append(t.pairs, treePair{key: key, value: value})
	return t
}

// Get returns the value stored under key.
func (t *Tree) Get(key string) (any, bool) {
	for i := range t.pairs {
		if t.pairs[i].key == key {
			return t.pairs[i].value, true
		}
	}
	return nil, false
}

// Len returns the number of keys.
func (t *Tree) Len() int {
	return len(t.pairs)
}

// Keys returns the keys in insertion order.
func (t *Tree) Keys() []string {
	keys := make([]string, len(t.pairs))
	for i, p := range t.pairs {
		keys[i] = p.key
	}
	return keys
}

func (t *Tree) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range t.pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := writeJSONValue(&buf, p.value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONValue(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case *Tree:
		encoded, err := v.MarshalJSON()
		if err != nil {
			return err
		}
		buf.Write(encoded)
	case []any:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(encoded)
	}
	return nil
}

// MarshalYAML renders the tree as a mapping node so the key order survives.
func (t *Tree) MarshalYAML() (any, error) {
	return t.yamlNode()
}

func (t *Tree) yamlNode() (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, p := range t.pairs {
		value, err := yamlValue(p.value)
		if err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.key},
			value)
	}
	return node, nil
}

func yamlValue(value any) (*yaml.Node, error) {
	switch v := value.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case *Tree:
		return v.yamlNode()
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v {
			child, err := yamlValue(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v)}, nil
	case uint64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatUint(v, 10)}, nil
	}
	return nil, fmt.Errorf("serializer: unsupported tree value %T", value)
}

// Digest returns a hex digest of the tree content that is independent of key
// insertion order. The tree is re-encoded as canonical CBOR, which sorts map
// keys, and hashed.
func (t *Tree) Digest() (string, error) {
	mode, err := cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		return "", err
	}
	encoded, err := mode.Marshal(t.canonical())
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

func (t *Tree) canonical() map[string]any {
	out := make(map[string]any, len(t.pairs))
	for _, p := range t.pairs {
		out[p.key] = canonicalValue(p.value)
	}
	return out
}

func canonicalValue(value any) any {
	switch v := value.(type) {
	case *Tree:
		return v.canonical()
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = canonicalValue(item)
		}
		return out
	}
	return value
}

// MarshalJSON renders the device's key/value tree as indented JSON.
func MarshalJSON(device *model.Device) ([]byte, error) {
	encoded, err := json.MarshalIndent(ToTree(device), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(encoded, '\n'), nil
}

// MarshalYAML renders the device's key/value tree as YAML.
func MarshalYAML(device *model.Device) ([]byte, error) {
	return yaml.Marshal(ToTree(device))
}

// ToTree flattens the resolved device into the key/value form. Unlike the
// document serializer, every attribute of every node is written, with null
// standing in for anything the source never set.
func ToTree(device *model.Device) *Tree {
	t := NewTree()
	t.Set("schema_version", optString(device.SchemaVersion))
	t.Set("vendor", optString(device.Vendor))
	t.Set("vendor_id", optString(device.VendorID))
	t.Set("name", device.Name)
	t.Set("series", optString(device.Series))
	t.Set("version", optString(device.Version))
	t.Set("description", optString(device.Description))
	t.Set("license_text", optString(device.LicenseText))
	t.Set("header_system_filename", optString(device.HeaderSystemFilename))
	t.Set("header_definitions_prefix", optString(device.HeaderDefinitionsPrefix))
	t.Set("address_unit_bits", device.AddressUnitBits)
	t.Set("width", device.Width)
	setProperties(t, device.Properties)
	if device.CPU != nil {
		t.Set("cpu", cpuTree(device.CPU))
	} else {
		t.Set("cpu", nil)
	}

	peripherals := make([]any, 0, len(device.Peripherals))
	for _, peripheral := range device.Peripherals {
		peripherals = append(peripherals, peripheralTree(peripheral))
	}
	t.Set("peripherals", peripherals)
	return t
}

func cpuTree(cpu *model.CPU) *Tree {
	t := NewTree()
	t.Set("name", cpu.Name)
	t.Set("revision", optString(cpu.Revision))
	t.Set("endian", cpu.Endian.String())
	t.Set("mpu_present", optBool(cpu.MPUPresent))
	t.Set("fpu_present", optBool(cpu.FPUPresent))
	t.Set("icache_present", optBool(cpu.ICachePresent))
	t.Set("dcache_present", optBool(cpu.DCachePresent))
	t.Set("itcm_present", optBool(cpu.ITCMPresent))
	t.Set("dtcm_present", optBool(cpu.DTCMPresent))
	t.Set("vtor_present", optBool(cpu.VTORPresent))
	t.Set("nvic_prio_bits", cpu.NVICPrioBits)
	t.Set("vendor_systick_config", optBool(cpu.VendorSystickConfig))
	return t
}

func peripheralTree(peripheral *model.Peripheral) *Tree {
	t := NewTree()
	t.Set("name", peripheral.Name)
	t.Set("version", optString(peripheral.Version))
	t.Set("description", optString(peripheral.Description))
	t.Set("group_name", optString(peripheral.GroupName))
	t.Set("prepend_to_name", optString(peripheral.PrependToName))
	t.Set("append_to_name", optString(peripheral.AppendToName))
	t.Set("base_address", peripheral.BaseAddress)
	setProperties(t, peripheral.Properties)

	blocks := make([]any, 0, len(peripheral.AddressBlocks))
	for _, block := range peripheral.AddressBlocks {
		bt := NewTree()
		bt.Set("offset", block.Offset)
		bt.Set("size", block.Size)
		bt.Set("usage", block.Usage.String())
		if block.Protection != nil {
			bt.Set("protection", block.Protection.String())
		} else {
			bt.Set("protection", nil)
		}
		blocks = append(blocks, bt)
	}
	t.Set("address_blocks", blocks)

	interrupts := make([]any, 0, len(peripheral.Interrupts))
	for _, interrupt := range peripheral.Interrupts {
		it := NewTree()
		it.Set("name", interrupt.Name)
		it.Set("description", optString(interrupt.Description))
		it.Set("value", interrupt.Value)
		interrupts = append(interrupts, it)
	}
	t.Set("interrupts", interrupts)

	t.Set("registers", registerSetTrees(peripheral.Registers))
	return t
}

func registerSetTrees(children []model.RegisterOrCluster) []any {
	out := make([]any, 0, len(children))
	for _, child := range children {
		switch v := child.(type) {
		case *model.Register:
			out = append(out, registerTree(v))
		case *model.Cluster:
			out = append(out, clusterTree(v))
		}
	}
	return out
}

func clusterTree(cluster *model.Cluster) *Tree {
	t := NewTree()
	t.Set("kind", "cluster")
	t.Set("name", cluster.Name)
	t.Set("description", optString(cluster.Description))
	t.Set("address_offset", cluster.AddressOffset)
	setProperties(t, cluster.Properties)
	t.Set("children", registerSetTrees(cluster.Children))
	return t
}

func registerTree(register *model.Register) *Tree {
	t := NewTree()
	t.Set("kind", "register")
	t.Set("name", register.Name)
	t.Set("display_name", optString(register.DisplayName))
	t.Set("description", optString(register.Description))
	t.Set("alternate_group", optString(register.AlternateGroup))
	t.Set("alternate_register", optString(register.AlternateRegister))
	t.Set("address_offset", register.AddressOffset)
	t.Set("data_type", optString(register.DataType))
	setWriteSemantics(t, register.ModifiedWriteValues, register.WriteConstraint, register.ReadAction)
	setProperties(t, register.Properties)

	fields := make([]any, 0, len(register.Fields))
	for _, field := range register.Fields {
		fields = append(fields, fieldTree(field))
	}
	t.Set("fields", fields)
	return t
}

func fieldTree(field *model.Field) *Tree {
	t := NewTree()
	t.Set("name", field.Name)
	t.Set("description", optString(field.Description))
	t.Set("bit_offset", field.BitOffset)
	t.Set("bit_width", field.BitWidth)
	t.Set("access", field.Access.String())
	setWriteSemantics(t, field.ModifiedWriteValues, field.WriteConstraint, field.ReadAction)

	values := make([]any, 0, len(field.EnumeratedValues))
	for _, ev := range field.EnumeratedValues {
		et := NewTree()
		et.Set("name", ev.Name)
		et.Set("description", optString(ev.Description))
		et.Set("value", optU64(ev.Value))
		et.Set("is_default", ev.IsDefault)
		values = append(values, et)
	}
	t.Set("enumerated_values", values)
	return t
}

func setWriteSemantics(t *Tree, effect *model.WriteEffect, constraint *model.WriteConstraint, action *model.ReadAction) {
	if effect != nil {
		t.Set("modified_write_values", effect.String())
	} else {
		t.Set("modified_write_values", nil)
	}
	if constraint != nil {
		ct := NewTree()
		ct.Set("write_as_read", constraint.WriteAsRead)
		ct.Set("use_enumerated_values", constraint.UseEnumeratedValues)
		if constraint.Range != nil {
			rt := NewTree()
			rt.Set("minimum", constraint.Range.Minimum)
			rt.Set("maximum", constraint.Range.Maximum)
			ct.Set("range", rt)
		} else {
			ct.Set("range", nil)
		}
		t.Set("write_constraint", ct)
	} else {
		t.Set("write_constraint", nil)
	}
	if action != nil {
		t.Set("read_action", action.String())
	} else {
		t.Set("read_action", nil)
	}
}

func setProperties(t *Tree, props model.Properties) {
	t.Set("size", optU64(props.Size))
	if props.Access != nil {
		t.Set("access", props.Access.String())
	} else {
		t.Set("access", nil)
	}
	if props.Protection != nil {
		t.Set("protection", props.Protection.String())
	} else {
		t.Set("protection", nil)
	}
	t.Set("reset_value", optU64(props.ResetValue))
	t.Set("reset_mask", optU64(props.ResetMask))
}

func optString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func optBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func optU64(v *uint64) any {
	if v == nil {
		return nil
	}
	return *v
}
