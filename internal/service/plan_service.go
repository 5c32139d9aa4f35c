package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fithero/planner/internal/aijson"
	"fithero/planner/internal/config"
	"fithero/planner/internal/domain"
	"fithero/planner/internal/extract"
	"fithero/planner/internal/generator"
	"fithero/planner/internal/lock"
	"fithero/planner/internal/logger"
	"fithero/planner/internal/repository"
	"fithero/planner/internal/safety"
	"fithero/planner/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/singleflight"
)

const methodValidatedUpstream = "validated_upstream"

// GenerateRequest asks for the plan of one type covering one month.
type GenerateRequest struct {
	PlayerID primitive.ObjectID
	Month    int
	Year     int
	Type     domain.PlanType
	Params   domain.GenerationParams
}

func (r GenerateRequest) Key() domain.PlanKey {
	return domain.PlanKey{PlayerID: r.PlayerID, Month: r.Month, Year: r.Year, Type: r.Type}
}

// PlanService runs the generate -> filter -> validate pipeline.
type PlanService interface {
	// Generate returns the current plan for the key, calling the AI
	// collaborator only when no ACTIVE or ERROR row exists yet.
	Generate(ctx context.Context, req GenerateRequest) (*domain.MonthlyPlan, error)
	// Regenerate retires the current rows for the key and generates afresh.
	Regenerate(ctx context.Context, req GenerateRequest) (*domain.MonthlyPlan, error)
	Get(ctx context.Context, key domain.PlanKey) (*domain.MonthlyPlan, error)
	History(ctx context.Context, key domain.PlanKey) ([]domain.MonthlyPlan, error)
	RawPayloadURL(ctx context.Context, planID primitive.ObjectID) (string, error)
}

// PlanOptions tunes regeneration and archiving.
type PlanOptions struct {
	RegenerationMode string // config.RegenerationSupersede or config.RegenerationDelete
	ArchivePrefix    string
	PresignExpiry    time.Duration
	GenerateTimeout  time.Duration // bounds one AI call; zero leaves it to the generator
}

type planService struct {
	plans   repository.MonthlyPlanRepository
	gen     generator.Generator
	locker  lock.Locker
	archive storage.Archive // nil disables raw payload archiving
	opts    PlanOptions
	log     *logger.Logger
	now     func() time.Time
	flight  singleflight.Group
}

// NewPlanService creates a new instance of planService.
func NewPlanService(
	plans repository.MonthlyPlanRepository,
	gen generator.Generator,
	locker lock.Locker,
	archive storage.Archive,
	opts PlanOptions,
	log *logger.Logger,
) PlanService {
	if opts.RegenerationMode == "" {
		opts.RegenerationMode = config.RegenerationSupersede
	}
	if locker == nil {
		locker = lock.NewLocalLocker(0)
	}
	return &planService{
		plans:   plans,
		gen:     gen,
		locker:  locker,
		archive: archive,
		opts:    opts,
		log:     logger.OrNop(log).With("component", "PlanService"),
		now:     time.Now,
	}
}

func (s *planService) Generate(ctx context.Context, req GenerateRequest) (*domain.MonthlyPlan, error) {
	key := req.Key()
	if err := key.Validate(); err != nil {
		return nil, err
	}

	// Terminal rows are served without taking the lock.
	existing, err := s.plans.FindCurrent(ctx, key)
	if err == nil && (existing.Status == domain.StatusActive || existing.Status == domain.StatusError) {
		return existing, nil
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// The shared run is detached from the cancellation of whichever caller started it.
	ch := s.flight.DoChan(key.String(), func() (any, error) {
		return s.generateLocked(context.WithoutCancel(ctx), req, false)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.log.Debug("joined in-flight generation", "plan", key.String())
		}
		plan := *res.Val.(*domain.MonthlyPlan)
		return &plan, nil
	}
}

func (s *planService) Regenerate(ctx context.Context, req GenerateRequest) (*domain.MonthlyPlan, error) {
	if err := req.Key().Validate(); err != nil {
		return nil, err
	}
	return s.generateLocked(context.WithoutCancel(ctx), req, true)
}

func (s *planService) Get(ctx context.Context, key domain.PlanKey) (*domain.MonthlyPlan, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	plan, err := s.plans.FindCurrent(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

func (s *planService) History(ctx context.Context, key domain.PlanKey) ([]domain.MonthlyPlan, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return s.plans.ListByKey(ctx, key)
}

func (s *planService) RawPayloadURL(ctx context.Context, planID primitive.ObjectID) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveDisabled
	}
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrPlanNotFound
		}
		return "", err
	}
	if plan.RawObjectKey == "" {
		return "", ErrRawPayloadMissing
	}
	return s.archive.GeneratePresignedDownloadURL(ctx, plan.RawObjectKey, s.opts.PresignExpiry)
}

// generateLocked holds the key's lock across find -> create -> call -> persist.
// With retire set, current rows are superseded or deleted first.
func (s *planService) generateLocked(ctx context.Context, req GenerateRequest, retire bool) (*domain.MonthlyPlan, error) {
	key := req.Key()
	release, err := s.locker.Acquire(ctx, "plan:"+key.String())
	if err != nil {
		return nil, err
	}
	defer release()

	if retire {
		if err := s.retire(ctx, key); err != nil {
			return nil, err
		}
		return s.run(ctx, req)
	}

	existing, err := s.plans.FindCurrent(ctx, key)
	switch {
	case err == nil:
		if existing.Status == domain.StatusActive || existing.Status == domain.StatusError {
			return existing, nil
		}
		// A PENDING or FILTERED row seen under the lock was abandoned by a run that died.
		s.log.Warn("superseding abandoned plan", "plan", key.String(), "planId", existing.ID.Hex(), "status", existing.Status)
		if _, err := s.plans.Supersede(ctx, key, s.now()); err != nil {
			return nil, fmt.Errorf("supersede abandoned plan: %w", err)
		}
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, err
	}
	return s.run(ctx, req)
}

func (s *planService) retire(ctx context.Context, key domain.PlanKey) error {
	if s.opts.RegenerationMode == config.RegenerationDelete {
		rows, err := s.plans.ListByKey(ctx, key)
		if err != nil {
			return err
		}
		n, err := s.plans.DeleteByKey(ctx, key)
		if err != nil {
			return fmt.Errorf("delete plans for regeneration: %w", err)
		}
		s.log.Info("deleted plans for regeneration", "plan", key.String(), "count", n)
		s.dropArchived(ctx, rows)
		return nil
	}

	n, err := s.plans.Supersede(ctx, key, s.now())
	if err != nil {
		return fmt.Errorf("supersede plans for regeneration: %w", err)
	}
	s.log.Info("superseded plans for regeneration", "plan", key.String(), "count", n)
	return nil
}

// dropArchived removes archived payloads no longer referenced by any row.
func (s *planService) dropArchived(ctx context.Context, rows []domain.MonthlyPlan) {
	if s.archive == nil {
		return
	}
	seen := map[string]bool{}
	for _, row := range rows {
		if row.RawObjectKey == "" || seen[row.RawObjectKey] {
			continue
		}
		seen[row.RawObjectKey] = true
		// A seeded sibling may share the object; keep it when one still points at it.
		if sib, err := s.plans.FindCurrent(ctx, row.Key().Sibling()); err == nil && sib.RawObjectKey == row.RawObjectKey {
			continue
		}
		if err := s.archive.DeleteObject(ctx, row.RawObjectKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.log.Warn("failed to delete archived payload", "key", row.RawObjectKey, "error", err)
		}
	}
}

// run executes one full pipeline pass for a key that has no current row.
func (s *planService) run(ctx context.Context, req GenerateRequest) (*domain.MonthlyPlan, error) {
	key := req.Key()
	now := s.now()

	plan := &domain.MonthlyPlan{
		PlayerID:  key.PlayerID,
		Month:     key.Month,
		Year:      key.Year,
		PlanType:  key.Type,
		Status:    domain.StatusPending,
		Params:    req.Params,
		CreatedAt: now,
	}
	id, err := s.plans.Create(ctx, plan)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Another process created the row without sharing our lock.
			return s.plans.FindCurrent(ctx, key)
		}
		return nil, fmt.Errorf("create pending plan: %w", err)
	}
	plan.ID = id
	log := s.log.With("plan", key.String(), "planId", id.Hex())
	log.Info("plan created", "status", plan.Status)

	started := time.Now()
	genCtx := ctx
	if s.opts.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.opts.GenerateTimeout)
		defer cancel()
	}
	resp, err := s.gen.Generate(genCtx, generator.Request{
		PlayerID: key.PlayerID.Hex(),
		Month:    key.Month,
		Year:     key.Year,
		Type:     key.Type,
		Params:   req.Params,
	})
	if err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil) {
		// Interrupted, not failed: retire the row so the next call starts over.
		log.Warn("AI generation interrupted", "latency", time.Since(started), "error", err)
		if _, serr := s.plans.Supersede(context.WithoutCancel(ctx), key, s.now()); serr != nil {
			log.Error("failed to retire interrupted plan", "error", serr)
		}
		return nil, fmt.Errorf("plan generation interrupted: %w", err)
	}
	if err != nil {
		log.Error("AI generation failed", "latency", time.Since(started), "error", err)
		plan.ErrorLog = &domain.ErrorLog{Errors: []string{"generation failed: " + err.Error()}}
		if terr := s.transition(ctx, log, plan, domain.StatusError); terr != nil {
			log.Error("failed to record generation failure", "error", terr)
		}
		return nil, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
	log.Info("AI generation completed", "latency", time.Since(started), "kind", resp.Kind.String(), "bytes", len(resp.Raw))

	generatedAt := s.now()
	plan.GeneratedAt = &generatedAt
	plan.RawResponse = string(resp.Raw)
	s.archiveRaw(ctx, log, plan, resp.Raw)

	if resp.Kind == generator.Validated {
		return s.acceptValidated(ctx, log, plan, resp)
	}

	raw, strategy, parseErr := recoverPayload(resp)
	errLog := &domain.ErrorLog{}
	if parseErr != nil {
		log.Warn("recovery parser could not repair payload", "error", parseErr)
		errLog.FilterErrors = append(errLog.FilterErrors, parseErr.Error())
	} else {
		log.Info("payload recovered", "strategy", strategy)
	}
	plan.ErrorLog = errLog

	shape := extract.Extract(raw, key.Type, key.Month, key.Year)
	meta := &domain.FilterMetadata{
		FilteredAt:       s.now(),
		FilterVersion:    filterVersion,
		RecoveryStrategy: string(strategy),
	}
	errLog.FilterMetadata = meta

	switch sh := shape.(type) {
	case extract.RecognizedWorkoutPlan:
		meta.ExtractionMethod = sh.Method
		meta.Synthesized = sh.Synthesized
		if sh.Synthesized {
			errLog.FilterErrors = append(errLog.FilterErrors, "no workout days found in response; synthesized default structure")
		}
		plan.FilteredData = filterDocument(sh.Document())
	case extract.RecognizedMealPlan:
		meta.ExtractionMethod = sh.Method
		plan.FilteredData = filterDocument(sh.Document())
	case extract.Unrecognized:
		errLog.FilterErrors = append(errLog.FilterErrors, sh.Reason)
	}
	meta.WarningsCount = len(errLog.FilterErrors)

	if plan.FilteredData == nil {
		if err := s.transition(ctx, log, plan, domain.StatusError); err != nil {
			return nil, err
		}
		return plan, nil
	}
	if err := s.transition(ctx, log, plan, domain.StatusFiltered); err != nil {
		return nil, err
	}

	if raw != nil {
		s.seedSibling(ctx, plan, raw, strategy)
	}

	if err := s.validate(ctx, log, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// recoverPayload returns the object the extractor works on. A parse failure
// yields a nil object and the error.
func recoverPayload(resp *generator.Response) (map[string]any, aijson.Strategy, error) {
	if resp.Kind == generator.Structured {
		return resp.Data, aijson.StrategyDirect, nil
	}
	v, strategy, err := aijson.ParseWithStrategy(resp.Text)
	if err != nil {
		return nil, "", err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, strategy, aijson.ErrNotObject
	}
	return obj, strategy, nil
}

func filterDocument(doc domain.Document) domain.Document {
	return domain.Document(safety.FilterObject(doc))
}

// acceptValidated stores an upstream-validated reply as ACTIVE without
// re-running filter and validation.
func (s *planService) acceptValidated(ctx context.Context, log *logger.Logger, plan *domain.MonthlyPlan, resp *generator.Response) (*domain.MonthlyPlan, error) {
	plan.FilteredData = domain.Document(resp.Data).Clone()
	plan.ValidatedData = domain.Document(resp.Validated).Clone()
	plan.ErrorLog = &domain.ErrorLog{FilterMetadata: &domain.FilterMetadata{
		FilteredAt:       s.now(),
		FilterVersion:    filterVersion,
		ExtractionMethod: methodValidatedUpstream,
	}}
	if err := s.transition(ctx, log, plan, domain.StatusActive); err != nil {
		return nil, err
	}
	return plan, nil
}

// validate moves a FILTERED plan to ACTIVE or ERROR. Validator errors are
// appended next to the filter warnings.
func (s *planService) validate(ctx context.Context, log *logger.Logger, plan *domain.MonthlyPlan) error {
	if err := ValidatePlan(plan.PlanType, plan.FilteredData); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			if plan.ErrorLog == nil {
				plan.ErrorLog = &domain.ErrorLog{}
			}
			plan.ErrorLog.Errors = append(plan.ErrorLog.Errors, verr.Missing...)
		}
		log.Warn("plan failed validation", "error", err)
		return s.transition(ctx, log, plan, domain.StatusError)
	}
	plan.ValidatedData = stampValidated(plan.FilteredData, s.now())
	return s.transition(ctx, log, plan, domain.StatusActive)
}

func (s *planService) transition(ctx context.Context, log *logger.Logger, plan *domain.MonthlyPlan, next domain.PlanStatus) error {
	from := plan.Status
	if !from.CanTransitionTo(next) {
		return fmt.Errorf("illegal plan transition %s -> %s", from, next)
	}
	plan.Status = next
	if err := s.plans.Update(ctx, plan); err != nil {
		plan.Status = from
		return fmt.Errorf("persist %s plan: %w", next, err)
	}
	log.Info("plan status changed", "from", from, "to", next)
	return nil
}

// seedSibling creates the other plan type for the same period when the
// response also carries it. Failures are logged and never affect the primary.
func (s *planService) seedSibling(ctx context.Context, primary *domain.MonthlyPlan, raw map[string]any, strategy aijson.Strategy) {
	key := primary.Key().Sibling()
	log := s.log.With("plan", key.String(), "seededFrom", primary.ID.Hex())

	var (
		doc    domain.Document
		method string
	)
	switch sh := extract.Extract(raw, key.Type, key.Month, key.Year).(type) {
	case extract.RecognizedWorkoutPlan:
		if sh.Synthesized {
			return
		}
		doc, method = sh.Document(), sh.Method
	case extract.RecognizedMealPlan:
		doc, method = sh.Document(), sh.Method
	default:
		return
	}

	if _, err := s.plans.FindCurrent(ctx, key); err == nil {
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		log.Warn("sibling lookup failed", "error", err)
		return
	}

	now := s.now()
	sibling := &domain.MonthlyPlan{
		PlayerID:     key.PlayerID,
		Month:        key.Month,
		Year:         key.Year,
		PlanType:     key.Type,
		Status:       domain.StatusFiltered,
		RawResponse:  primary.RawResponse,
		RawObjectKey: primary.RawObjectKey,
		FilteredData: filterDocument(doc),
		ErrorLog: &domain.ErrorLog{FilterMetadata: &domain.FilterMetadata{
			FilteredAt:       now,
			FilterVersion:    filterVersion,
			ExtractionMethod: method,
			RecoveryStrategy: string(strategy),
		}},
		GeneratedAt: primary.GeneratedAt,
		CreatedAt:   now,
	}
	id, err := s.plans.Create(ctx, sibling)
	if err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			log.Warn("failed to seed sibling plan", "error", err)
		}
		return
	}
	sibling.ID = id
	log = log.With("planId", id.Hex())
	log.Info("sibling plan seeded", "status", sibling.Status)

	if err := s.validate(ctx, log, sibling); err != nil {
		log.Warn("failed to validate sibling plan", "error", err)
	}
}

// archiveRaw writes the captured response to the archive and records its key.
func (s *planService) archiveRaw(ctx context.Context, log *logger.Logger, plan *domain.MonthlyPlan, raw []byte) {
	if s.archive == nil || len(raw) == 0 {
		return
	}
	objectKey := storage.RawObjectKey(s.opts.ArchivePrefix, plan.Key())
	if err := s.archive.PutObject(ctx, objectKey, raw, "application/json"); err != nil {
		log.Warn("failed to archive raw AI payload", "key", objectKey, "error", err)
		return
	}
	plan.RawObjectKey = objectKey
}
