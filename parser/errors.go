package parser

import (
	"fmt"
	"strings"
)

// MalformedDocumentError reports a structurally invalid SVD document: either
// the XML itself could not be decoded or a required element is missing.
type MalformedDocumentError struct {
	Path    string
	Message string
	Cause   error
}

func (e *MalformedDocumentError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("malformed SVD document at %s: %s", e.Path, e.Message)
	}
	return "malformed SVD document: " + e.Message
}

func (e *MalformedDocumentError) Unwrap() error { return e.Cause }

// SchemaVersionError reports an unsupported or unparsable schemaVersion
// attribute.
type SchemaVersionError struct {
	Version string
}

func (e *SchemaVersionError) Error() string {
	return fmt.Sprintf("unsupported SVD schema version %q", e.Version)
}

// DerivationCycleError reports a derivedFrom chain that revisits an element.
type DerivationCycleError struct {
	Path  string
	Chain []string
}

func (e *DerivationCycleError) Error() string {
	return fmt.Sprintf("derivation cycle at %s: %s", e.Path, strings.Join(e.Chain, " -> "))
}

// DerivationTargetNotFoundError reports a derivedFrom reference whose target
// does not exist in the scope the reference is resolved in.
type DerivationTargetNotFoundError struct {
	Path   string
	Target string
}

func (e *DerivationTargetNotFoundError) Error() string {
	return fmt.Sprintf("derivation target %q not found for %s", e.Target, e.Path)
}

// InvalidDimensionSpecError reports an inconsistent dim declaration.
type InvalidDimensionSpecError struct {
	Path   string
	Reason string
}

func (e *InvalidDimensionSpecError) Error() string {
	return fmt.Sprintf("invalid dimension spec at %s: %s", e.Path, e.Reason)
}

// MissingPropertyError reports a property that is still unset after the full
// inheritance walk but is required at its scope.
type MissingPropertyError struct {
	Path     string
	Property string
}

func (e *MissingPropertyError) Error() string {
	return fmt.Sprintf("property %q unresolved at %s", e.Property, e.Path)
}

// BitRangeOverflowError reports a field extending past its register width.
type BitRangeOverflowError struct {
	Path         string
	BitOffset    uint64
	BitWidth     uint64
	RegisterSize uint64
}

func (e *BitRangeOverflowError) Error() string {
	return fmt.Sprintf("bit range [%d:%d] at %s exceeds register size %d",
		e.BitOffset+e.BitWidth-1, e.BitOffset, e.Path, e.RegisterSize)
}
