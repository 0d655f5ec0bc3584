package tender

import (
	"context"
	"errors"

	"access-api/dispatch"
	"access-api/envelope"
	"access-api/fail"
	"access-api/result"
)

const (
	ActionCheckAccessToTender   envelope.ActionKey = "checkAccessToTender"
	ActionSetTenderSuspended    envelope.ActionKey = "setTenderSuspended"
	ActionSetTenderUnsuspended  envelope.ActionKey = "setTenderUnsuspended"
	ActionGetTenderState        envelope.ActionKey = "getTenderState"
	ActionCheckTenderState      envelope.ActionKey = "checkTenderState"
	ActionSetTenderUnsuccessful envelope.ActionKey = "setTenderUnsuccessful"
	ActionFindLotIds            envelope.ActionKey = "findLotIds"
)

// Service runs the tender actions against a Repository.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register adds every tender action to registry.
func Register(registry *dispatch.Registry, s *Service) {
	registry.Register(
		dispatch.NewCheck(envelope.V1, ActionCheckAccessToTender, s.CheckAccess),
		dispatch.NewCommand(envelope.V1, ActionSetTenderSuspended, s.SetSuspended),
		dispatch.NewCommand(envelope.V1, ActionSetTenderUnsuspended, s.SetUnsuspended),
		dispatch.NewCommand(envelope.V2, ActionGetTenderState, s.GetState),
		dispatch.NewCheck(envelope.V2, ActionCheckTenderState, s.CheckState),
		dispatch.NewCommand(envelope.V2, ActionSetTenderUnsuccessful, s.SetUnsuccessful),
		dispatch.NewQuery(envelope.V2, ActionFindLotIds, s.FindLotIds),
	)
}

func (s *Service) load(ctx context.Context, r ref) result.Result[Tender] {
	found, err := s.repo.Find(ctx, r.cpid, r.ocid)
	if err != nil {
		return result.Failure[Tender](fail.Database("tender lookup", err))
	}
	t, ok := found.Get()
	if !ok {
		return result.Failure[Tender](tenderNotFound(r.cpid, r.ocid))
	}
	return result.Success(t)
}

func (s *Service) save(ctx context.Context, t Tender) result.Result[Tender] {
	if err := s.repo.Save(ctx, t); err != nil {
		if errors.Is(err, ErrConflict) {
			return result.Failure[Tender](fail.Database("tender update (concurrent modification)", err))
		}
		return result.Failure[Tender](fail.Database("tender update", err))
	}
	return result.Success(t)
}

// CheckAccess verifies that the owner and token of the v1 context match the
// tender.
func (s *Service) CheckAccess(ctx context.Context, cmd envelope.Descriptor) result.ValidationResult {
	r, f := contextRef(cmd).Unwrap()
	if f != nil {
		return result.Invalid(f)
	}
	owner, f := required("owner", cmd.Context.Owner).Unwrap()
	if f != nil {
		return result.Invalid(f)
	}
	token, f := required("token", cmd.Context.Token).Unwrap()
	if f != nil {
		return result.Invalid(f)
	}
	return result.ToValidation(result.Then(s.load(ctx, r), func(t Tender) result.ValidationResult {
		return result.Validate(
			func() result.ValidationResult {
				if t.Owner != owner {
					return result.Invalid(invalidOwner(t.Ocid))
				}
				return result.Ok()
			},
			func() result.ValidationResult {
				if t.Token != token {
					return result.Invalid(invalidToken(t.Ocid))
				}
				return result.Ok()
			},
		)
	}))
}

// SetSuspended moves an active tender to suspended.
func (s *Service) SetSuspended(ctx context.Context, cmd envelope.Descriptor) result.Result[State] {
	t := result.FlatMap(contextRef(cmd), func(r ref) result.Result[Tender] { return s.load(ctx, r) })
	t = result.Then(t, func(t Tender) result.ValidationResult {
		if t.Status != StatusActive || t.StatusDetails == DetailsSuspended {
			return result.Invalid(invalidTenderState(t))
		}
		return result.Ok()
	})
	t = result.FlatMap(t, func(t Tender) result.Result[Tender] {
		t.StatusDetails = DetailsSuspended
		return s.save(ctx, t)
	})
	return result.Map(t, Tender.State)
}

// SetUnsuspended resumes a suspended tender in the phase named by the v1
// context.
func (s *Service) SetUnsuspended(ctx context.Context, cmd envelope.Descriptor) result.Result[State] {
	r, f := contextRef(cmd).Unwrap()
	if f != nil {
		return result.Failure[State](f)
	}
	phase, f := required("phase", cmd.Context.Phase).Unwrap()
	if f != nil {
		return result.Failure[State](f)
	}
	details := StatusDetails(phase)
	if !knownDetails(details) {
		return result.Failure[State](fail.UnknownValue("context.phase", phase))
	}

	t, f := s.load(ctx, r).Unwrap()
	if f != nil {
		return result.Failure[State](f)
	}
	if t.Status != StatusActive || t.StatusDetails != DetailsSuspended {
		return result.Failure[State](invalidTenderState(t))
	}
	t.StatusDetails = details
	return result.Map(s.save(ctx, t), Tender.State)
}

// GetState returns the current state of the tender.
func (s *Service) GetState(ctx context.Context, cmd envelope.Descriptor) result.Result[State] {
	r := result.FlatMap(cmd.Params(), paramsRef)
	return result.Map(result.FlatMap(r, func(r ref) result.Result[Tender] { return s.load(ctx, r) }), Tender.State)
}

// CheckState passes when the tender is in one of params.allowedStates.
func (s *Service) CheckState(ctx context.Context, cmd envelope.Descriptor) result.ValidationResult {
	fields, f := cmd.Params().Unwrap()
	if f != nil {
		return result.Invalid(f)
	}
	r, f := paramsRef(fields).Unwrap()
	if f != nil {
		return result.Invalid(f)
	}
	allowed, f := filters(fields, "allowedStates").Unwrap()
	if f != nil {
		return result.Invalid(f)
	}
	return result.ToValidation(result.Then(s.load(ctx, r), func(t Tender) result.ValidationResult {
		for _, sf := range allowed {
			if sf.matches(t.State()) {
				return result.Ok()
			}
		}
		return result.Invalid(invalidTenderState(t))
	}))
}

// UnsuccessfulResult lists the new state of the tender and of every lot the
// action changed.
type UnsuccessfulResult struct {
	Tender State `json:"tender"`
	Lots   []Lot `json:"lots"`
}

// SetUnsuccessful closes an active tender and its active lots as
// unsuccessful.
func (s *Service) SetUnsuccessful(ctx context.Context, cmd envelope.Descriptor) result.Result[UnsuccessfulResult] {
	r, f := result.FlatMap(cmd.Params(), paramsRef).Unwrap()
	if f != nil {
		return result.Failure[UnsuccessfulResult](f)
	}
	t, f := s.load(ctx, r).Unwrap()
	if f != nil {
		return result.Failure[UnsuccessfulResult](f)
	}
	if t.Status != StatusActive {
		return result.Failure[UnsuccessfulResult](invalidTenderState(t))
	}

	t.Status = StatusUnsuccessful
	t.StatusDetails = DetailsEmpty
	changed := make([]Lot, 0, len(t.Lots))
	lots := make([]Lot, len(t.Lots))
	for i, lot := range t.Lots {
		if lot.Status == StatusActive {
			lot.Status = StatusUnsuccessful
			lot.StatusDetails = DetailsEmpty
			changed = append(changed, lot)
		}
		lots[i] = lot
	}
	t.Lots = lots

	return result.Map(s.save(ctx, t), func(t Tender) UnsuccessfulResult {
		return UnsuccessfulResult{Tender: t.State(), Lots: changed}
	})
}

// FindLotIds returns the ids of the lots matching params.states, or of all
// lots when no states are given.
func (s *Service) FindLotIds(ctx context.Context, cmd envelope.Descriptor) result.Result[[]string] {
	fields, f := cmd.Params().Unwrap()
	if f != nil {
		return result.Failure[[]string](f)
	}
	r, f := paramsRef(fields).Unwrap()
	if f != nil {
		return result.Failure[[]string](f)
	}
	states, f := optionalFilters(fields, "states").Unwrap()
	if f != nil {
		return result.Failure[[]string](f)
	}
	t, f := s.load(ctx, r).Unwrap()
	if f != nil {
		return result.Failure[[]string](f)
	}
	if len(t.Lots) == 0 {
		return result.Failure[[]string](lotsNotFound(t.Ocid))
	}

	wanted, filtered := states.Get()
	ids := make([]string, 0, len(t.Lots))
	for _, lot := range t.Lots {
		if !filtered || anyMatch(wanted, lot.State()) {
			ids = append(ids, lot.ID)
		}
	}
	return result.Success(ids)
}

func anyMatch(list []stateFilter, s State) bool {
	for _, sf := range list {
		if sf.matches(s) {
			return true
		}
	}
	return false
}
