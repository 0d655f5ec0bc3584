package fail

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogCodesAreUnique(t *testing.T) {
	seen := map[string]string{}
	for _, k := range Catalog() {
		prev, dup := seen[k.Code()]
		require.Falsef(t, dup, "code %s used by %s and %s", k.Code(), prev, k.Name())
		seen[k.Code()] = k.Name()
	}
	assert.Len(t, seen, len(catalog))
}

func TestRegisterRejectsDuplicateCode(t *testing.T) {
	assert.Panics(t, func() {
		register(FamilyValidation, KindUnknownAction.Code(), "Again")
	})
	assert.Equal(t, "UnknownAction", catalog[KindUnknownAction.Code()].Name())
}

func TestConstructorsEnforceFamily(t *testing.T) {
	assert.Panics(t, func() { NewValidation(KindDatabase, "x") })
	assert.Panics(t, func() { NewBusiness(KindUnknownAction, "x") })
	assert.Panics(t, func() { NewIncident(KindTenderNotFound, LevelError, "x", nil) })
}

type familyVisitor struct{}

func (familyVisitor) Validation(*Validation) string  { return "validation" }
func (familyVisitor) Business(*BusinessError) string { return "business" }
func (familyVisitor) Incident(*Incident) string      { return "incident" }

func TestVisitCoversEveryFamily(t *testing.T) {
	for _, k := range Catalog() {
		var f Fail
		switch k.Family() {
		case FamilyValidation:
			f = NewValidation(k, "d")
		case FamilyBusiness:
			f = NewBusiness(k, "d")
		case FamilyIncident:
			f = NewIncident(k, LevelError, "d", nil)
		default:
			t.Fatalf("kind %s has no family", k)
		}
		assert.Equal(t, k.Family().String(), Visit[string](f, familyVisitor{}), "kind %s", k)
		assert.Equal(t, k.Code(), f.Code())
	}
}

func TestIncidentKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	inc := Database("history lookup", cause)

	require.ErrorIs(t, inc, cause)
	assert.Equal(t, LevelError, inc.Level())
	assert.Contains(t, inc.Error(), "connection reset")
	assert.NotContains(t, inc.Description(), "connection reset")
	assert.True(t, IsIncident(inc))
	assert.False(t, IsError(inc))
}

func TestDetailsAreCopied(t *testing.T) {
	v := MissingRequiredAttribute("cpid")
	details := v.Details()
	require.Len(t, details, 1)
	details[0].Name = "changed"

	assert.Equal(t, "cpid", v.Details()[0].Name)
	assert.True(t, IsError(v))
}

func TestIncidentLevels(t *testing.T) {
	tests := []struct {
		name string
		inc  *Incident
		want Level
	}{
		{name: "database", inc: Database("history write", nil), want: LevelError},
		{name: "parsing", inc: Parsing("request body", errors.New("unexpected EOF")), want: LevelWarning},
		{name: "unexpected", inc: Unexpected(errors.New("boom")), want: LevelError},
		{name: "defaulted", inc: NewIncident(KindConfiguration, "", "d", nil), want: LevelError},
		{name: "info", inc: NewIncident(KindConfiguration, LevelInfo, "d", nil), want: LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.inc.Level())
		})
	}
}
