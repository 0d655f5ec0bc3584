package tender

import (
	"fmt"

	"access-api/fail"
)

func tenderNotFound(cpid, ocid string) *fail.BusinessError {
	return fail.NewBusiness(fail.KindTenderNotFound,
		fmt.Sprintf("Tender not found by cpid '%s' and ocid '%s'.", cpid, ocid), fail.Detail{ID: ocid})
}

func invalidOwner(ocid string) *fail.BusinessError {
	return fail.NewBusiness(fail.KindInvalidOwner,
		fmt.Sprintf("Owner does not match the owner of tender '%s'.", ocid), fail.Detail{ID: ocid, Name: "owner"})
}

func invalidToken(ocid string) *fail.BusinessError {
	return fail.NewBusiness(fail.KindInvalidToken,
		fmt.Sprintf("Token does not match the token of tender '%s'.", ocid), fail.Detail{ID: ocid, Name: "token"})
}

func invalidTenderState(t Tender) *fail.BusinessError {
	return fail.NewBusiness(fail.KindInvalidTenderState,
		fmt.Sprintf("Tender '%s' has invalid state '%s/%s'.", t.Ocid, t.Status, t.StatusDetails), fail.Detail{ID: t.Ocid})
}

func lotsNotFound(ocid string) *fail.BusinessError {
	return fail.NewBusiness(fail.KindLotsNotFound,
		fmt.Sprintf("Tender '%s' has no lots.", ocid), fail.Detail{ID: ocid})
}
