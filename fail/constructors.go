package fail

import "fmt"

func MissingRequiredAttribute(name string) *Validation {
	return NewValidation(KindMissingRequiredAttribute,
		fmt.Sprintf("Missing required attribute '%s'.", name), Detail{Name: name})
}

func DataTypeMismatch(name, expected string) *Validation {
	return NewValidation(KindDataTypeMismatch,
		fmt.Sprintf("Attribute '%s' has an invalid type, expected %s.", name, expected), Detail{Name: name})
}

func UnknownValue(name, value string) *Validation {
	return NewValidation(KindUnknownValue,
		fmt.Sprintf("Attribute '%s' has unknown value '%s'.", name, value), Detail{Name: name})
}

func DataFormatMismatch(name, expected string) *Validation {
	return NewValidation(KindDataFormatMismatch,
		fmt.Sprintf("Attribute '%s' does not match format '%s'.", name, expected), Detail{Name: name})
}

func DataMismatchToPattern(name, pattern string) *Validation {
	return NewValidation(KindDataMismatchToPattern,
		fmt.Sprintf("Attribute '%s' does not match pattern '%s'.", name, pattern), Detail{Name: name})
}

func EmptyArray(name string) *Validation {
	return NewValidation(KindEmptyArray,
		fmt.Sprintf("Array '%s' is empty.", name), Detail{Name: name})
}

func EmptyString(name string) *Validation {
	return NewValidation(KindEmptyString,
		fmt.Sprintf("Attribute '%s' is an empty string.", name), Detail{Name: name})
}

func UniquenessDataMismatch(name, value string) *Validation {
	return NewValidation(KindUniquenessDataMismatch,
		fmt.Sprintf("Array '%s' contains duplicate value '%s'.", name, value), Detail{Name: name, ID: value})
}

func UnknownAction(action, version string) *Validation {
	return NewValidation(KindUnknownAction,
		fmt.Sprintf("Unknown action '%s' for version '%s'.", action, version), Detail{Name: action})
}

func CommandInProgress(commandID, action string) *Validation {
	return NewValidation(KindCommandInProgress,
		fmt.Sprintf("Command '%s' with action '%s' is already being processed.", commandID, action), Detail{ID: commandID})
}

func PayloadTooLarge(limit int64) *Validation {
	return NewValidation(KindPayloadTooLarge,
		fmt.Sprintf("Request body exceeds %d bytes.", limit))
}

func Database(operation string, cause error) *Incident {
	return NewIncident(KindDatabase, LevelError,
		fmt.Sprintf("Database incident during %s.", operation), cause)
}

// Parsing reports input that could not be read at all. It is a warning: the
// request was broken, not the service.
func Parsing(what string, cause error) *Incident {
	return NewIncident(KindParsing, LevelWarning,
		fmt.Sprintf("Error parsing %s.", what), cause)
}

func Deserialization(what string, cause error) *Incident {
	return NewIncident(KindDeserialization, LevelError,
		fmt.Sprintf("Error deserializing %s.", what), cause)
}

func Serialization(what string, cause error) *Incident {
	return NewIncident(KindSerialization, LevelError,
		fmt.Sprintf("Error serializing %s.", what), cause)
}

// Unexpected wraps a fault that escaped a handler, usually a recovered panic.
func Unexpected(cause error) *Incident {
	return NewIncident(KindUnexpected, LevelError, "Unexpected error while processing the command.", cause)
}

func Configuration(description string) *Incident {
	return NewIncident(KindConfiguration, LevelError, description, nil)
}
