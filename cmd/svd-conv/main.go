package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"omibyte.io/svd/parser"
	"omibyte.io/svd/registry"
	"omibyte.io/svd/serializer"
)

var (
	svdIn          string
	output         string
	format         string
	registryRoot   string
	vendor         string
	mcu            string
	schemaVersion  string
	removeReserved bool
	quiet          bool
)

func init() {
	flag.StringVar(&svdIn, "in", "", "input SVD file")
	flag.StringVar(&output, "out", "", "output file (default stdout)")
	flag.StringVar(&format, "format", "xml", "output format: xml, json or yaml")
	flag.StringVar(&registryRoot, "registry", "", "SVD collection root to look the input up in")
	flag.StringVar(&vendor, "vendor", "", "vendor directory within the registry")
	flag.StringVar(&mcu, "mcu", "", "look the input up by MCU name within the registry")
	flag.StringVar(&schemaVersion, "schema-version", "1.1", "assumed schema version for documents without one")
	flag.BoolVar(&removeReserved, "remove-reserved", false, "drop reserved registers and fields")
	flag.BoolVar(&quiet, "quiet", false, "suppress the device summary")
	flag.Parse()
}

func main() {
	buf, err := readInput()
	if err != nil {
		log.Fatal("file io error: ", err)
	}

	device, err := parser.Parse(buf, parser.Options{
		SchemaVersion:  schemaVersion,
		RemoveReserved: removeReserved,
	})
	if err != nil {
		log.Fatal("parse error: ", err)
	}

	if !quiet {
		fmt.Println("Resolved the following device:")
		fmt.Printf("Name:\t\t%s\n", device.Name)
		fmt.Printf("Vendor:\t\t%s\n", device.Vendor)
		if device.CPU != nil {
			fmt.Printf("CPU:\t\t%s\n", device.CPU.Name)
			fmt.Printf("Endian:\t\t%s\n", device.CPU.Endian)
		}
		fmt.Printf("Width:\t\t%v-bit\n", device.Width)
		fmt.Printf("Peripherals:\t%v\n", len(device.Peripherals))
	}

	var encoded []byte
	switch format {
	case "xml":
		encoded, err = serializer.MarshalXML(device)
	case "json":
		encoded, err = serializer.MarshalJSON(device)
	case "yaml":
		encoded, err = serializer.MarshalYAML(device)
	default:
		log.Fatal("unknown output format: ", format)
	}
	if err != nil {
		log.Fatal("encode error: ", err)
	}

	if output == "" {
		os.Stdout.Write(encoded)
		return
	}
	if err = os.WriteFile(output, encoded, 0644); err != nil {
		log.Fatal("file io error: ", err)
	}
	if !quiet {
		fmt.Println("Done.")
	}
}

func readInput() ([]byte, error) {
	if registryRoot != "" {
		reg := registry.New(registryRoot)
		switch {
		case mcu != "":
			return reg.ForMCU(mcu)
		case vendor != "" && svdIn != "":
			return reg.SVD(vendor, svdIn)
		}
		return nil, fmt.Errorf("registry lookup needs -mcu or -vendor with -in")
	}
	if svdIn == "" {
		return nil, fmt.Errorf("no input file")
	}
	return os.ReadFile(svdIn)
}
