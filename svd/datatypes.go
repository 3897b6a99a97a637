package svd

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Integer is a scalar number as it appears in an SVD document. Vendor files
// mix decimal, 0x-prefixed hexadecimal, #-prefixed binary and true/false
// spellings for the same schema types, so all of them are accepted on input.
// Integer renders as decimal; HexInteger renders as 0x-prefixed hexadecimal.
type Integer uint64

// HexInteger is an Integer that marshals in hexadecimal. Addresses, offsets
// and reset data use this type so that serialized output keeps the
// conventional SVD formatting.
type HexInteger uint64

// Bool accepts the 0/1 and true/false spellings used by SVD files.
type Bool bool

func parseInteger(v string) (uint64, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch {
	case strings.HasPrefix(v, "0x"):
		return strconv.ParseUint(strings.TrimPrefix(v, "0x"), 16, 64)
	case strings.HasPrefix(v, "#"):
		// Some Freescale files write binary values like #1xx where "x" marks
		// don't-care bits. Those bits read as zero.
		return strconv.ParseUint(strings.ReplaceAll(v[1:], "x", "0"), 2, 64)
	case strings.HasPrefix(v, "true"):
		return 1, nil
	case strings.HasPrefix(v, "false"):
		return 0, nil
	default:
		return strconv.ParseUint(v, 10, 64)
	}
}

func (h *Integer) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var v string
	if err := d.DecodeElement(&v, &start); err != nil {
		return err
	}
	value, err := parseInteger(v)
	if err != nil {
		return err
	}
	*h = Integer(value)
	return nil
}

func (h Integer) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement(strconv.FormatUint(uint64(h), 10), start)
}

func (h *HexInteger) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var v string
	if err := d.DecodeElement(&v, &start); err != nil {
		return err
	}
	value, err := parseInteger(v)
	if err != nil {
		return err
	}
	*h = HexInteger(value)
	return nil
}

func (h HexInteger) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement("0x"+strconv.FormatUint(uint64(h), 16), start)
}

func (b *Bool) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var v string
	if err := d.DecodeElement(&v, &start); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false":
		*b = false
	case "1", "true":
		*b = true
	default:
		return fmt.Errorf("invalid boolean value %q", v)
	}
	return nil
}

func (b Bool) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement(strconv.FormatBool(bool(b)), start)
}
