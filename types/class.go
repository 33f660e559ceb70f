package types

import "fmt"

// ProposalClass categorizes a proposal and determines its default
// agreement threshold and round deadline. The enumeration is closed:
// adding a class requires updating every switch below, which the compiler
// checks via NumClasses.
type ProposalClass uint8

const (
	ClassCritical ProposalClass = iota
	ClassStandard
	ClassAssetTransfer
	ClassCrossChain
	ClassAdministrative
	ClassGeneric

	// NumClasses is the number of proposal classes. Keep last.
	NumClasses
)

// Valid reports whether c is a known proposal class.
func (c ProposalClass) Valid() bool {
	return c < NumClasses
}

// String returns the canonical class name.
func (c ProposalClass) String() string {
	switch c {
	case ClassCritical:
		return "critical"
	case ClassStandard:
		return "standard"
	case ClassAssetTransfer:
		return "asset_transfer"
	case ClassCrossChain:
		return "cross_chain"
	case ClassAdministrative:
		return "administrative"
	case ClassGeneric:
		return "generic"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// ParseClass resolves a class name as used on the wire.
func ParseClass(s string) (ProposalClass, error) {
	for c := ProposalClass(0); c < NumClasses; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown proposal class %q", s)
}

// DefaultThreshold returns the seeded agreement percentage for the class.
func (c ProposalClass) DefaultThreshold() uint32 {
	switch c {
	case ClassCritical:
		return 60
	case ClassStandard, ClassAssetTransfer:
		return 67
	case ClassCrossChain, ClassAdministrative, ClassGeneric:
		return 80
	default:
		return 80
	}
}

// DefaultDeadlineTicks returns the seeded round duration in ticks.
// Critical rounds are latency-sensitive and get the shortest window.
func (c ProposalClass) DefaultDeadlineTicks() uint32 {
	switch c {
	case ClassCritical:
		return 2
	case ClassStandard:
		return 5
	case ClassAssetTransfer, ClassCrossChain, ClassAdministrative, ClassGeneric:
		return 20
	default:
		return 20
	}
}
