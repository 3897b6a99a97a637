package parser

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omibyte.io/svd/model"
)

func TestDimLabels(t *testing.T) {
	tests := []struct {
		name     string
		spec     string
		count    uint64
		expected []string
	}{
		{"default indices", "", 3, []string{"0", "1", "2"}},
		{"comma list", "A,B,C", 3, []string{"A", "B", "C"}},
		{"comma list with spaces", "0, 1, 2", 3, []string{"0", "1", "2"}},
		{"numeric range", "3-6", 4, []string{"3", "4", "5", "6"}},
		{"alphabetic range", "A-D", 4, []string{"A", "B", "C", "D"}},
		{"lowercase range", "a-c", 3, []string{"a", "b", "c"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			labels, err := dimLabels(test.spec, test.count, "dev/p")
			require.NoError(t, err)
			assert.Equal(t, test.expected, labels)
		})
	}
}

func TestDimLabelErrors(t *testing.T) {
	tests := []struct {
		name  string
		spec  string
		count uint64
	}{
		{"count mismatch", "A,B", 3},
		{"range count mismatch", "0-3", 3},
		{"descending numeric range", "6-3", 4},
		{"descending alphabetic range", "D-A", 4},
		{"garbage range", "x1-y2", 2},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := dimLabels(test.spec, test.count, "dev/p")
			var invalid *InvalidDimensionSpecError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, "dev/p", invalid.Path)
		})
	}
}

func TestExpandName(t *testing.T) {
	assert.Equal(t, "GPIO2", expandName("GPIO%s", "2", 0))
	assert.Equal(t, "CH_B_CR", expandName("CH_%s_CR", "B", 1))
	assert.Equal(t, "MODER3", expandName("MODER", "3", 3))
	assert.Equal(t, "DMA1", expandName("DMA", "B", 1), "without a placeholder the instance number wins over the label")
}

func TestRegisterExpansion(t *testing.T) {
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <access>read-write</access>
  <peripherals>
    <peripheral>
      <name>TIMER0</name>
      <baseAddress>0x40020000</baseAddress>
      <registers>
        <register>
          <name>CCR%s</name>
          <addressOffset>0x10</addressOffset>
          <dim>4</dim>
          <dimIncrement>0x4</dimIncrement>
          <fields>
            <field>
              <name>VALUE</name>
              <bitOffset>0</bitOffset>
              <bitWidth>16</bitWidth>
            </field>
          </fields>
        </register>
      </registers>
    </peripheral>
  </peripherals>
</device>`

	device, err := Parse([]byte(document), Options{})
	require.NoError(t, err)

	timer := device.Peripherals[0]
	regs := timer.AllRegisters()
	require.Len(t, regs, 4)
	for i, expected := range []struct {
		name   string
		offset uint64
	}{
		{"CCR0", 0x10},
		{"CCR1", 0x14},
		{"CCR2", 0x18},
		{"CCR3", 0x1c},
	} {
		assert.Equal(t, expected.name, regs[i].Name)
		assert.Equal(t, expected.offset, regs[i].AddressOffset)
		_, ok := regs[i].Field("VALUE")
		assert.True(t, ok, "each instance carries its own fields")
	}
}

func TestPeripheralExpansion(t *testing.T) {
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <access>read-write</access>
  <peripherals>
    <peripheral>
      <name>DMA%s</name>
      <baseAddress>0x1000</baseAddress>
      <dim>4</dim>
      <dimIncrement>0x100</dimIncrement>
      <dimIndex>A,B,C,D</dimIndex>
      <registers>
        <register>
          <name>CR</name>
          <addressOffset>0x0</addressOffset>
        </register>
      </registers>
    </peripheral>
  </peripherals>
</device>`

	device, err := Parse([]byte(document), Options{})
	require.NoError(t, err)
	require.Len(t, device.Peripherals, 4)

	for i, expected := range []struct {
		name string
		base uint64
	}{
		{"DMAA", 0x1000},
		{"DMAB", 0x1100},
		{"DMAC", 0x1200},
		{"DMAD", 0x1300},
	} {
		p := device.Peripherals[i]
		assert.Equal(t, expected.name, p.Name)
		assert.Equal(t, expected.base, p.BaseAddress)
		_, ok := p.Register("CR")
		assert.True(t, ok)
	}
}

func TestFieldExpansion(t *testing.T) {
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <access>read-write</access>
  <peripherals>
    <peripheral>
      <name>GPIOA</name>
      <baseAddress>0x40000000</baseAddress>
      <registers>
        <register>
          <name>MODER</name>
          <addressOffset>0x0</addressOffset>
          <fields>
            <field>
              <name>MODE%s</name>
              <bitOffset>0</bitOffset>
              <bitWidth>2</bitWidth>
              <dim>16</dim>
              <dimIncrement>2</dimIncrement>
            </field>
          </fields>
        </register>
      </registers>
    </peripheral>
  </peripherals>
</device>`

	device, err := Parse([]byte(document), Options{})
	require.NoError(t, err)

	moder := device.Peripherals[0].AllRegisters()[0]
	require.Len(t, moder.Fields, 16)
	assert.Equal(t, "MODE0", moder.Fields[0].Name)
	assert.Equal(t, uint64(0), moder.Fields[0].BitOffset)
	assert.Equal(t, "MODE15", moder.Fields[15].Name)
	assert.Equal(t, uint64(30), moder.Fields[15].BitOffset)
	assert.Equal(t, uint64(2), moder.Fields[15].BitWidth)
}

func TestClusterExpansion(t *testing.T) {
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <access>read-write</access>
  <peripherals>
    <peripheral>
      <name>TIMER0</name>
      <baseAddress>0x40020000</baseAddress>
      <registers>
        <cluster>
          <name>CH[%s]</name>
          <addressOffset>0x10</addressOffset>
          <dim>2</dim>
          <dimIncrement>0x10</dimIncrement>
          <register>
            <name>CCR</name>
            <addressOffset>0x0</addressOffset>
          </register>
        </cluster>
      </registers>
    </peripheral>
  </peripherals>
</device>`

	device, err := Parse([]byte(document), Options{})
	require.NoError(t, err)

	timer := device.Peripherals[0]
	require.Len(t, timer.Registers, 2)
	ch0, ok := timer.Registers[0].(*model.Cluster)
	require.True(t, ok)
	assert.Equal(t, "CH[0]", ch0.Name)
	assert.Equal(t, uint64(0x10), ch0.AddressOffset)
	ch1, ok := timer.Registers[1].(*model.Cluster)
	require.True(t, ok)
	assert.Equal(t, "CH[1]", ch1.Name)
	assert.Equal(t, uint64(0x20), ch1.AddressOffset)
	require.Len(t, ch1.Children, 1)
}

func TestBitRangeFieldExpansion(t *testing.T) {
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <access>read-write</access>
  <peripherals>
    <peripheral>
      <name>GPIOA</name>
      <baseAddress>0x40000000</baseAddress>
      <registers>
        <register>
          <name>MODER</name>
          <addressOffset>0x0</addressOffset>
          <fields>
            <field>
              <name>MODE%s</name>
              <bitRange>[1:0]</bitRange>
              <dim>4</dim>
              <dimIncrement>2</dimIncrement>
            </field>
          </fields>
        </register>
      </registers>
    </peripheral>
  </peripherals>
</device>`

	device, err := Parse([]byte(document), Options{})
	require.NoError(t, err)

	moder := device.Peripherals[0].AllRegisters()[0]
	require.Len(t, moder.Fields, 4)
	for i, field := range moder.Fields {
		assert.Equal(t, uint64(2*i), field.BitOffset)
		assert.Equal(t, uint64(2), field.BitWidth)
	}
}

func TestSingleElementDimWithoutIncrement(t *testing.T) {
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <access>read-write</access>
  <peripherals>
    <peripheral>
      <name>P0</name>
      <baseAddress>0x0</baseAddress>
      <registers>
        <register>
          <name>CR%s</name>
          <addressOffset>0x0</addressOffset>
          <dim>1</dim>
        </register>
      </registers>
    </peripheral>
  </peripherals>
</device>`

	device, err := Parse([]byte(document), Options{})
	require.NoError(t, err)

	_, ok := device.Peripherals[0].Register("CR0")
	assert.True(t, ok, "a single-element array needs no increment")
}

func TestDerivedTemplateExpandsPerInstance(t *testing.T) {
	// The template is derived once and the deriving element expanded with its
	// own dim spec afterwards.
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <access>read-write</access>
  <peripherals>
    <peripheral>
      <name>P0</name>
      <baseAddress>0x0</baseAddress>
      <registers>
        <register>
          <name>TPL</name>
          <addressOffset>0x0</addressOffset>
          <size>16</size>
        </register>
        <register derivedFrom="TPL">
          <name>OUT%s</name>
          <addressOffset>0x100</addressOffset>
          <dim>2</dim>
          <dimIncrement>0x2</dimIncrement>
        </register>
      </registers>
    </peripheral>
  </peripherals>
</device>`

	device, err := Parse([]byte(document), Options{})
	require.NoError(t, err)

	p0 := device.Peripherals[0]
	out0, ok := p0.Register("OUT0")
	require.True(t, ok)
	assert.Equal(t, uint64(0x100), out0.AddressOffset)
	assert.Equal(t, uint64(16), out0.Size())
	out1, ok := p0.Register("OUT1")
	require.True(t, ok)
	assert.Equal(t, uint64(0x102), out1.AddressOffset)
}

func TestDimSpecErrors(t *testing.T) {
	tests := []struct {
		name    string
		element string
	}{
		{"dim without increment", `<register><name>R%s</name><addressOffset>0x0</addressOffset><dim>2</dim></register>`},
		{"zero dim", `<register><name>R%s</name><addressOffset>0x0</addressOffset><dim>0</dim><dimIncrement>0x4</dimIncrement></register>`},
		{"index mismatch", `<register><name>R%s</name><addressOffset>0x0</addressOffset><dim>2</dim><dimIncrement>0x4</dimIncrement><dimIndex>A,B,C</dimIndex></register>`},
	}
	const template = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <access>read-write</access>
  <peripherals>
    <peripheral>
      <name>P0</name>
      <baseAddress>0x0</baseAddress>
      <registers>%s</registers>
    </peripheral>
  </peripherals>
</device>`
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(fmt.Sprintf(template, test.element)), Options{})
			var invalid *InvalidDimensionSpecError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}
