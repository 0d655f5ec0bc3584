package tender

import (
	"regexp"

	"access-api/envelope"
	"access-api/fail"
	"access-api/result"
)

var (
	cpidPattern = regexp.MustCompile(`^[a-z]{4}-[a-z0-9]{6}-[A-Z]{2}-[0-9]{13}$`)
	ocidPattern = regexp.MustCompile(`^[a-z]{4}-[a-z0-9]{6}-[A-Z]{2}-[0-9]{13}-(AC|EI|EV|FS|NP|PN)-[0-9]{13}$`)
)

type ref struct {
	cpid string
	ocid string
}

func matchPattern(name, value string, re *regexp.Regexp) result.ValidationResult {
	if !re.MatchString(value) {
		return result.Invalid(fail.DataMismatchToPattern(name, re.String()))
	}
	return result.Ok()
}

func newRef(cpid, ocid string) result.Result[ref] {
	return result.Lift(result.Validate(
		func() result.ValidationResult { return matchPattern("cpid", cpid, cpidPattern) },
		func() result.ValidationResult { return matchPattern("ocid", ocid, ocidPattern) },
	), ref{cpid: cpid, ocid: ocid})
}

// required reads a v1 context attribute.
func required(name, value string) result.Result[string] {
	if value == "" {
		return result.Failure[string](fail.MissingRequiredAttribute("context." + name))
	}
	return result.Success(value)
}

func contextRef(cmd envelope.Descriptor) result.Result[ref] {
	c := cmd.Context
	if c == nil {
		c = &envelope.Context{}
	}
	cpid, f := required("cpid", c.Cpid).Unwrap()
	if f != nil {
		return result.Failure[ref](f)
	}
	ocid, f := required("ocid", c.Ocid).Unwrap()
	if f != nil {
		return result.Failure[ref](f)
	}
	return newRef(cpid, ocid)
}

func paramsRef(fields envelope.Fields) result.Result[ref] {
	cpid, f := fields.String("cpid").Unwrap()
	if f != nil {
		return result.Failure[ref](f)
	}
	ocid, f := fields.String("ocid").Unwrap()
	if f != nil {
		return result.Failure[ref](f)
	}
	return newRef(cpid, ocid)
}

// stateFilter matches a tender or lot state. Empty StatusDetails matches any
// details.
type stateFilter struct {
	Status        Status        `json:"status"`
	StatusDetails StatusDetails `json:"statusDetails,omitempty"`
}

func (sf stateFilter) matches(s State) bool {
	if sf.Status != s.Status {
		return false
	}
	return sf.StatusDetails == "" || sf.StatusDetails == s.StatusDetails
}

func validateFilters(name string, filters []stateFilter) result.ValidationResult {
	if len(filters) == 0 {
		return result.Invalid(fail.EmptyArray(name))
	}
	seen := make(map[stateFilter]struct{}, len(filters))
	for _, sf := range filters {
		switch {
		case sf.Status == "":
			return result.Invalid(fail.MissingRequiredAttribute(name + ".status"))
		case !knownStatus(sf.Status):
			return result.Invalid(fail.UnknownValue(name+".status", string(sf.Status)))
		case sf.StatusDetails != "" && !knownDetails(sf.StatusDetails):
			return result.Invalid(fail.UnknownValue(name+".statusDetails", string(sf.StatusDetails)))
		}
		if _, dup := seen[sf]; dup {
			return result.Invalid(fail.UniquenessDataMismatch(name, string(sf.Status)+"/"+string(sf.StatusDetails)))
		}
		seen[sf] = struct{}{}
	}
	return result.Ok()
}

// filters reads a required, non-empty list of state filters.
func filters(fields envelope.Fields, name string) result.Result[[]stateFilter] {
	return result.Then(envelope.Decode[[]stateFilter](fields, name, "array"), func(list []stateFilter) result.ValidationResult {
		return validateFilters(name, list)
	})
}

// optionalFilters is like filters but an absent member means "no filter".
func optionalFilters(fields envelope.Fields, name string) result.Result[result.Option[[]stateFilter]] {
	if !fields.Has(name) {
		return result.Success(result.None[[]stateFilter]())
	}
	return result.Map(filters(fields, name), result.Some[[]stateFilter])
}
