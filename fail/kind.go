package fail

import (
	"fmt"
	"sort"
)

// Family groups failure kinds by how they are reported to the caller.
type Family int

const (
	FamilyValidation Family = iota + 1
	FamilyBusiness
	FamilyIncident
)

func (f Family) String() string {
	switch f {
	case FamilyValidation:
		return "validation"
	case FamilyBusiness:
		return "business"
	case FamilyIncident:
		return "incident"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Kind identifies one concrete failure. Codes are part of the wire contract
// with calling systems and must never be reused.
type Kind struct {
	code   string
	name   string
	family Family
}

func (k Kind) Code() string   { return k.code }
func (k Kind) Name() string   { return k.name }
func (k Kind) Family() Family { return k.family }

func (k Kind) String() string {
	return k.code + " " + k.name
}

var catalog = map[string]Kind{}

func register(family Family, code, name string) Kind {
	if code == "" {
		panic("fail: empty kind code for " + name)
	}
	if prev, ok := catalog[code]; ok {
		panic(fmt.Sprintf("fail: code %s registered twice (%s, %s)", code, prev.name, name))
	}
	k := Kind{code: code, name: name, family: family}
	catalog[code] = k
	return k
}

// Catalog returns every registered kind ordered by code.
func Catalog() []Kind {
	out := make([]Kind, 0, len(catalog))
	for _, k := range catalog {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].code < out[j].code })
	return out
}

// Request and data validation.
var (
	KindMissingRequiredAttribute = register(FamilyValidation, "DR-1", "MissingRequiredAttribute")
	KindDataTypeMismatch         = register(FamilyValidation, "DR-2", "DataTypeMismatch")
	KindUnknownValue             = register(FamilyValidation, "DR-3", "UnknownValue")
	KindDataFormatMismatch       = register(FamilyValidation, "DR-4", "DataFormatMismatch")
	KindDataMismatchToPattern    = register(FamilyValidation, "DR-5", "DataMismatchToPattern")
	KindEmptyArray               = register(FamilyValidation, "DR-6", "EmptyArray")
	KindEmptyString              = register(FamilyValidation, "DR-7", "EmptyString")
	KindUniquenessDataMismatch   = register(FamilyValidation, "DR-8", "UniquenessDataMismatch")

	KindUnknownAction     = register(FamilyValidation, "RQ-1", "UnknownAction")
	KindCommandInProgress = register(FamilyValidation, "RQ-2", "CommandInProgress")
	KindPayloadTooLarge   = register(FamilyValidation, "RQ-3", "PayloadTooLarge")
)

// Business rules.
var (
	KindTenderNotFound     = register(FamilyBusiness, "VR-1", "TenderNotFound")
	KindInvalidOwner       = register(FamilyBusiness, "VR-2", "InvalidOwner")
	KindInvalidToken       = register(FamilyBusiness, "VR-3", "InvalidToken")
	KindInvalidTenderState = register(FamilyBusiness, "VR-4", "InvalidTenderState")
	KindLotsNotFound       = register(FamilyBusiness, "VR-5", "LotsNotFound")
)

// System faults.
var (
	KindDatabase        = register(FamilyIncident, "IN-1", "Database")
	KindParsing         = register(FamilyIncident, "IN-2", "Parsing")
	KindDeserialization = register(FamilyIncident, "IN-3", "Deserialization")
	KindSerialization   = register(FamilyIncident, "IN-4", "Serialization")
	KindUnexpected      = register(FamilyIncident, "IN-5", "Unexpected")
	KindConfiguration   = register(FamilyIncident, "IN-6", "Configuration")
)
