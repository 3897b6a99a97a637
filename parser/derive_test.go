package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omibyte.io/svd/model"
)

func TestPeripheralDerivation(t *testing.T) {
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <access>read-write</access>
  <peripherals>
    <peripheral>
      <name>GPIOA</name>
      <description>General purpose I/O</description>
      <groupName>GPIO</groupName>
      <baseAddress>0x40000000</baseAddress>
      <registers>
        <register>
          <name>MODER</name>
          <addressOffset>0x0</addressOffset>
          <resetValue>0xA8000000</resetValue>
        </register>
      </registers>
    </peripheral>
    <peripheral derivedFrom="GPIOA">
      <name>GPIOB</name>
      <baseAddress>0x40000400</baseAddress>
    </peripheral>
  </peripherals>
</device>`

	device, err := Parse([]byte(document), Options{})
	require.NoError(t, err)
	require.Len(t, device.Peripherals, 2)

	gpiob, ok := device.Peripheral("GPIOB")
	require.True(t, ok)
	assert.Equal(t, uint64(0x40000400), gpiob.BaseAddress, "own base address wins")
	assert.Equal(t, "General purpose I/O", gpiob.Description)
	assert.Equal(t, "GPIO", gpiob.GroupName)

	moder, ok := gpiob.Register("MODER")
	require.True(t, ok)
	assert.Equal(t, uint64(0xa8000000), moder.ResetValue())
}

func TestPeripheralDerivationChainInDocumentOrder(t *testing.T) {
	// C derives from B which derives from A, declared in reverse order so
	// that resolution must follow the dependency order rather than the
	// document order.
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <access>read-write</access>
  <peripherals>
    <peripheral derivedFrom="B">
      <name>C</name>
      <baseAddress>0x42000000</baseAddress>
    </peripheral>
    <peripheral derivedFrom="A">
      <name>B</name>
      <baseAddress>0x41000000</baseAddress>
    </peripheral>
    <peripheral>
      <name>A</name>
      <description>origin</description>
      <baseAddress>0x40000000</baseAddress>
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

	c, ok := device.Peripheral("C")
	require.True(t, ok)
	assert.Equal(t, "origin", c.Description)
	_, ok = c.Register("CR")
	assert.True(t, ok, "registers propagate across the whole chain")
}

func TestPeripheralDerivationCycle(t *testing.T) {
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <peripherals>
    <peripheral derivedFrom="B">
      <name>A</name>
      <baseAddress>0x0</baseAddress>
    </peripheral>
    <peripheral derivedFrom="A">
      <name>B</name>
      <baseAddress>0x100</baseAddress>
    </peripheral>
  </peripherals>
</device>`

	_, err := Parse([]byte(document), Options{})
	var cycle *DerivationCycleError
	require.ErrorAs(t, err, &cycle)
	assert.ElementsMatch(t, []string{"A", "B"}, cycle.Chain)
}

func TestPeripheralSelfDerivation(t *testing.T) {
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <peripherals>
    <peripheral derivedFrom="A">
      <name>A</name>
      <baseAddress>0x0</baseAddress>
    </peripheral>
  </peripherals>
</device>`

	_, err := Parse([]byte(document), Options{})
	var cycle *DerivationCycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"A", "A"}, cycle.Chain)
}

func TestPeripheralDerivationTargetNotFound(t *testing.T) {
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <peripherals>
    <peripheral derivedFrom="NOPE">
      <name>A</name>
      <baseAddress>0x0</baseAddress>
    </peripheral>
  </peripherals>
</device>`

	_, err := Parse([]byte(document), Options{})
	var notFound *DerivationTargetNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "NOPE", notFound.Target)
	assert.Contains(t, notFound.Path, "TESTDEV/A")
}

func TestRegisterDerivation(t *testing.T) {
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <access>read-write</access>
  <peripherals>
    <peripheral>
      <name>UART0</name>
      <baseAddress>0x40010000</baseAddress>
      <registers>
        <register>
          <name>DR</name>
          <description>Data register</description>
          <addressOffset>0x0</addressOffset>
          <size>8</size>
          <fields>
            <field>
              <name>DATA</name>
              <bitOffset>0</bitOffset>
              <bitWidth>8</bitWidth>
            </field>
          </fields>
        </register>
        <register derivedFrom="DR">
          <name>RDR</name>
          <addressOffset>0x4</addressOffset>
          <access>read-only</access>
        </register>
      </registers>
    </peripheral>
    <peripheral>
      <name>UART1</name>
      <baseAddress>0x40011000</baseAddress>
      <registers>
        <register derivedFrom="UART0.DR">
          <name>DR</name>
          <addressOffset>0x0</addressOffset>
        </register>
      </registers>
    </peripheral>
  </peripherals>
</device>`

	device, err := Parse([]byte(document), Options{})
	require.NoError(t, err)

	uart0, ok := device.Peripheral("UART0")
	require.True(t, ok)
	rdr, ok := uart0.Register("RDR")
	require.True(t, ok)
	assert.Equal(t, uint64(0x4), rdr.AddressOffset)
	assert.Equal(t, uint64(8), rdr.Size())
	assert.Equal(t, "Data register", rdr.Description)
	access, ok := rdr.Access()
	require.True(t, ok)
	assert.Equal(t, model.AccessReadOnly, access, "local override wins over the base")
	_, ok = rdr.Field("DATA")
	assert.True(t, ok)

	uart1, ok := device.Peripheral("UART1")
	require.True(t, ok)
	dr, ok := uart1.Register("DR")
	require.True(t, ok)
	assert.Equal(t, uint64(8), dr.Size(), "qualified reference crosses peripherals")
	_, ok = dr.Field("DATA")
	assert.True(t, ok)
}

func TestRegisterDerivationCycle(t *testing.T) {
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <access>read-write</access>
  <peripherals>
    <peripheral>
      <name>P0</name>
      <baseAddress>0x0</baseAddress>
      <registers>
        <register derivedFrom="B">
          <name>A</name>
          <addressOffset>0x0</addressOffset>
        </register>
        <register derivedFrom="A">
          <name>B</name>
          <addressOffset>0x4</addressOffset>
        </register>
      </registers>
    </peripheral>
  </peripherals>
</device>`

	_, err := Parse([]byte(document), Options{})
	var cycle *DerivationCycleError
	require.ErrorAs(t, err, &cycle)
	assert.Contains(t, cycle.Chain, "P0.A")
	assert.Contains(t, cycle.Chain, "P0.B")
}

func TestRegisterDerivationTargetNotFound(t *testing.T) {
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <access>read-write</access>
  <peripherals>
    <peripheral>
      <name>P0</name>
      <baseAddress>0x0</baseAddress>
      <registers>
        <register derivedFrom="MISSING.CR">
          <name>A</name>
          <addressOffset>0x0</addressOffset>
        </register>
      </registers>
    </peripheral>
  </peripherals>
</device>`

	_, err := Parse([]byte(document), Options{})
	var notFound *DerivationTargetNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "MISSING.CR", notFound.Target)
}

func TestFieldDerivation(t *testing.T) {
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
          <name>CR</name>
          <addressOffset>0x0</addressOffset>
          <fields>
            <field>
              <name>CH0</name>
              <description>Channel enable</description>
              <bitOffset>0</bitOffset>
              <bitWidth>1</bitWidth>
              <enumeratedValues>
                <enumeratedValue>
                  <name>OFF</name>
                  <value>0</value>
                </enumeratedValue>
                <enumeratedValue>
                  <name>ON</name>
                  <value>1</value>
                </enumeratedValue>
              </enumeratedValues>
            </field>
            <field derivedFrom="CH0">
              <name>CH1</name>
              <bitOffset>1</bitOffset>
              <bitWidth>1</bitWidth>
            </field>
          </fields>
        </register>
      </registers>
    </peripheral>
  </peripherals>
</device>`

	device, err := Parse([]byte(document), Options{})
	require.NoError(t, err)

	cr := device.Peripherals[0].AllRegisters()[0]
	ch1, ok := cr.Field("CH1")
	require.True(t, ok)
	assert.Equal(t, uint64(1), ch1.BitOffset, "own bit position wins")
	assert.Equal(t, "Channel enable", ch1.Description)
	require.True(t, ch1.IsEnumerated())
	ev, ok := ch1.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "ON", ev.Name)
}

func TestClusterDerivation(t *testing.T) {
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
          <name>CH0</name>
          <addressOffset>0x10</addressOffset>
          <register>
            <name>CCR</name>
            <addressOffset>0x0</addressOffset>
          </register>
        </cluster>
        <cluster derivedFrom="CH0">
          <name>CH1</name>
          <addressOffset>0x20</addressOffset>
        </cluster>
      </registers>
    </peripheral>
  </peripherals>
</device>`

	device, err := Parse([]byte(document), Options{})
	require.NoError(t, err)

	timer := device.Peripherals[0]
	require.Len(t, timer.Registers, 2)
	ch1, ok := timer.Registers[1].(*model.Cluster)
	require.True(t, ok)
	assert.Equal(t, "CH1", ch1.Name)
	assert.Equal(t, uint64(0x20), ch1.AddressOffset)
	require.Len(t, ch1.Children, 1)
	ccr, ok := ch1.Children[0].(*model.Register)
	require.True(t, ok)
	assert.Equal(t, "CCR", ccr.Name)
	assert.Equal(t, uint64(0), ccr.AddressOffset, "cluster children keep cluster-relative offsets")
}

func TestClusterNestedRegisterDerivation(t *testing.T) {
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <access>read-write</access>
  <peripherals>
    <peripheral>
      <name>UART0</name>
      <baseAddress>0x40010000</baseAddress>
      <registers>
        <cluster>
          <name>CH</name>
          <addressOffset>0x10</addressOffset>
          <register>
            <name>TPL</name>
            <description>Transmit template</description>
            <addressOffset>0x0</addressOffset>
            <size>8</size>
            <fields>
              <field>
                <name>DATA</name>
                <bitOffset>0</bitOffset>
                <bitWidth>8</bitWidth>
              </field>
            </fields>
          </register>
          <register derivedFrom="TPL">
            <name>RDR</name>
            <addressOffset>0x4</addressOffset>
          </register>
        </cluster>
      </registers>
    </peripheral>
  </peripherals>
</device>`

	device, err := Parse([]byte(document), Options{})
	require.NoError(t, err)

	uart := device.Peripherals[0]
	ch, ok := uart.Registers[0].(*model.Cluster)
	require.True(t, ok)
	require.Len(t, ch.Children, 2)
	rdr, ok := ch.Children[1].(*model.Register)
	require.True(t, ok)
	assert.Equal(t, "RDR", rdr.Name)
	assert.Equal(t, uint64(8), rdr.Size(), "size inherited from the sibling template")
	assert.Equal(t, "Transmit template", rdr.Description)
	require.Len(t, rdr.Fields, 1)
	assert.Equal(t, "DATA", rdr.Fields[0].Name)
}

func TestClusterNestedDerivationTargetNotFound(t *testing.T) {
	// The sibling scope of a nested register is its containing cluster, not
	// the peripheral top level.
	const document = `
<device schemaVersion="1.1">
  <name>TESTDEV</name>
  <access>read-write</access>
  <peripherals>
    <peripheral>
      <name>UART0</name>
      <baseAddress>0x40010000</baseAddress>
      <registers>
        <register>
          <name>CR</name>
          <addressOffset>0x0</addressOffset>
        </register>
        <cluster>
          <name>CH</name>
          <addressOffset>0x10</addressOffset>
          <register derivedFrom="CR">
            <name>RDR</name>
            <addressOffset>0x4</addressOffset>
          </register>
        </cluster>
      </registers>
    </peripheral>
  </peripherals>
</device>`

	_, err := Parse([]byte(document), Options{})
	var notFound *DerivationTargetNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "CR", notFound.Target)
	assert.Equal(t, "TESTDEV/UART0/CH/RDR", notFound.Path)
}

func TestEnumeratedValuesDerivation(t *testing.T) {
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
              <name>MODE0</name>
              <bitOffset>0</bitOffset>
              <bitWidth>2</bitWidth>
              <enumeratedValues>
                <name>MODE_SEL</name>
                <usage>read-write</usage>
                <enumeratedValue>
                  <name>INPUT</name>
                  <value>0</value>
                </enumeratedValue>
                <enumeratedValue>
                  <name>OUTPUT</name>
                  <value>1</value>
                </enumeratedValue>
              </enumeratedValues>
            </field>
            <field>
              <name>MODE1</name>
              <bitOffset>2</bitOffset>
              <bitWidth>2</bitWidth>
              <enumeratedValues derivedFrom="MODE_SEL"/>
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
	mode1, ok := moder.Field("MODE1")
	require.True(t, ok)
	require.Len(t, mode1.EnumeratedValues, 2)
	assert.Equal(t, "INPUT", mode1.EnumeratedValues[0].Name)
	output, ok := mode1.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "OUTPUT", output.Name)
}

func TestEnumeratedValuesDerivationTargetNotFound(t *testing.T) {
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
              <name>MODE0</name>
              <bitOffset>0</bitOffset>
              <bitWidth>2</bitWidth>
              <enumeratedValues derivedFrom="MISSING"/>
            </field>
          </fields>
        </register>
      </registers>
    </peripheral>
  </peripherals>
</device>`

	_, err := Parse([]byte(document), Options{})
	var notFound *DerivationTargetNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "MISSING", notFound.Target)
}
