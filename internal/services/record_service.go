package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"homeledger/internal/amqp"
	"homeledger/internal/core"
	"homeledger/internal/log"
	"homeledger/internal/storage"
)

// Policy decides what happens when a record row is written but its balance
// delta fails.
type Policy string

const (
	// PolicyStrict rolls the whole mutation back.
	PolicyStrict Policy = "strict"
	// PolicyLenient commits the record and reports a BalanceWarning. The
	// account balance may then drift until it is reconciled.
	PolicyLenient Policy = "lenient"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyStrict, nil
	case PolicyStrict, PolicyLenient:
		return p, nil
	default:
		return "", fmt.Errorf("unknown balance policy %q", s)
	}
}

// RecordInput describes a new record. A zero Date means today and a zero
// MemberID means the default member.
type RecordInput struct {
	Date       core.Date
	Kind       core.Kind
	CategoryID int64
	AccountID  int64
	MemberID   int64
	Amount     core.Money
	Remark     string
}

// RecordPatch lists the fields to change on an existing record; nil keeps the
// current value. A blank Remark also keeps the current remark; set
// ClearRemark to remove it.
type RecordPatch struct {
	Date        *core.Date
	Kind        *core.Kind
	CategoryID  *int64
	AccountID   *int64
	MemberID    *int64
	Amount      *core.Money
	Remark      *string
	ClearRemark bool
}

func (p RecordPatch) apply(r core.Record) core.Record {
	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.Kind != nil {
		r.Kind = *p.Kind
	}
	if p.CategoryID != nil {
		r.CategoryID = *p.CategoryID
	}
	if p.AccountID != nil {
		r.AccountID = *p.AccountID
	}
	if p.MemberID != nil {
		r.MemberID = *p.MemberID
		if r.MemberID == 0 {
			r.MemberID = core.SelfMemberID
		}
	}
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	switch {
	case p.ClearRemark:
		r.Remark = ""
	case p.Remark != nil && strings.TrimSpace(*p.Remark) != "":
		r.Remark = strings.TrimSpace(*p.Remark)
	}
	return r
}

type AddResult struct {
	ID             int64
	BalanceWarning error
}

// EditResult reports how many rows an edit changed. NoOp is set when the
// patch left the record as it was; nothing is committed in that case.
type EditResult struct {
	Changed        int64
	NoOp           bool
	BalanceWarning error
}

type DeleteResult struct {
	Record         core.Record
	BalanceWarning error
}

var errNoChange = errors.New("no change")

// RecordService adds, edits and deletes records. Each call is one
// transaction covering the record row and the balance deltas it causes.
type RecordService struct {
	store     Store
	policy    Policy
	publisher EventPublisher
	logger    *log.Logger
	now       func() time.Time
}

// NewRecordService builds the service. publisher may be nil to disable events.
func NewRecordService(store Store, policy Policy, publisher EventPublisher) *RecordService {
	if policy == "" {
		policy = PolicyStrict
	}
	return &RecordService{
		store:     store,
		policy:    policy,
		publisher: publisher,
		logger:    log.Default(log.ComponentRecord),
		now:       time.Now,
	}
}

func (s *RecordService) Policy() Policy {
	return s.policy
}

// Add validates and stores a new record and applies its contribution to the
// account balance.
func (s *RecordService) Add(ctx context.Context, in RecordInput) (AddResult, error) {
	now := s.now()
	r := core.Record{
		Date:       in.Date,
		Kind:       in.Kind,
		CategoryID: in.CategoryID,
		AccountID:  in.AccountID,
		MemberID:   in.MemberID,
		Amount:     in.Amount,
		Remark:     strings.TrimSpace(in.Remark),
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}
	if r.Date.IsZero() {
		r.Date = core.DateOf(now)
	}
	if r.MemberID == 0 {
		r.MemberID = core.SelfMemberID
	}
	if err := r.Validate(); err != nil {
		return AddResult{}, fmt.Errorf("add record: %w", err)
	}

	var res AddResult
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		if err := checkRecordRefs(ctx, q, r); err != nil {
			return err
		}
		id, err := q.CreateRecord(ctx, r)
		if err != nil {
			return &core.PersistenceError{Stage: core.StageRecord, Err: err}
		}
		r.ID = id
		res.ID = id

		if err := NewBalanceLedger(q).RecordCreated(ctx, r); err != nil {
			return s.balanceFailure(ctx, &res.BalanceWarning, err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "Add record failed", r, err)
		return AddResult{}, fmt.Errorf("add record: %w", err)
	}

	s.logger.InfoContext(ctx, "Record added", log.NewFields().WithOperation(log.OpCreate).WithRecord(r).ToSlice()...)
	s.publish(ctx, amqp.EventRecordCreated, r.ID, r.AccountID)
	return res, nil
}

// Edit applies patch to record id. The old contribution is reversed and the
// new one applied, so moving a record between accounts updates both.
func (s *RecordService) Edit(ctx context.Context, id int64, patch RecordPatch) (EditResult, error) {
	var (
		res          EditResult
		old, updated core.Record
	)
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		cur, err := q.GetRecord(ctx, id)
		if err != nil {
			return notFound("record", id, err)
		}
		next := patch.apply(cur)
		if err := next.Validate(); err != nil {
			return err
		}
		if err := checkRecordRefs(ctx, q, next); err != nil {
			return err
		}
		if sameContent(cur, next) {
			return errNoChange
		}

		next.UpdatedAt = s.now().UTC()
		n, err := q.UpdateRecord(ctx, next)
		if err != nil {
			return &core.PersistenceError{Stage: core.StageRecord, Err: err}
		}
		if n == 0 {
			return errNoChange
		}
		res.Changed = n
		old, updated = cur, next

		if err := NewBalanceLedger(q).RecordEdited(ctx, cur, next); err != nil {
			return s.balanceFailure(ctx, &res.BalanceWarning, err)
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		s.logger.DebugContext(ctx, "Record edit changed nothing", log.FieldRecordID, id)
		return EditResult{NoOp: true}, nil
	}
	if err != nil {
		s.logFailure(ctx, "Edit record failed", core.Record{ID: id}, err)
		return EditResult{}, fmt.Errorf("edit record %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Record edited", log.NewFields().WithOperation(log.OpUpdate).WithRecord(updated).ToSlice()...)
	s.publish(ctx, amqp.EventRecordUpdated, id, old.AccountID, updated.AccountID)
	return res, nil
}

// Delete removes record id and reverses its contribution. The removed record
// is returned as it was before deletion.
func (s *RecordService) Delete(ctx context.Context, id int64) (DeleteResult, error) {
	var res DeleteResult
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		cur, err := q.GetRecord(ctx, id)
		if err != nil {
			return notFound("record", id, err)
		}
		if err := q.DeleteRecord(ctx, id); err != nil {
			return &core.PersistenceError{Stage: core.StageRecord, Err: err}
		}
		res.Record = cur

		if err := NewBalanceLedger(q).RecordDeleted(ctx, cur); err != nil {
			return s.balanceFailure(ctx, &res.BalanceWarning, err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "Delete record failed", core.Record{ID: id}, err)
		return DeleteResult{}, fmt.Errorf("delete record %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Record deleted", log.NewFields().WithOperation(log.OpDelete).WithRecord(res.Record).ToSlice()...)
	s.publish(ctx, amqp.EventRecordDeleted, id, res.Record.AccountID)
	return res, nil
}

func (s *RecordService) Get(ctx context.Context, id int64) (core.Record, error) {
	r, err := s.store.Queries().GetRecord(ctx, id)
	if err != nil {
		return core.Record{}, notFound("record", id, err)
	}
	return r, nil
}

// List returns one page of records, newest first, and the total number of
// records matching the filter.
func (s *RecordService) List(ctx context.Context, f storage.RecordFilter) ([]core.RecordView, int64, error) {
	q := s.store.Queries()
	total, err := q.CountRecords(ctx, f)
	if err != nil {
		return nil, 0, readFailure("count records", err)
	}
	views, err := q.ListRecords(ctx, f)
	if err != nil {
		return nil, 0, readFailure("list records", err)
	}
	s.logger.DebugContext(ctx, "Records listed",
		log.FieldOperation, log.OpList, "total", total, "page_rows", len(views))
	return views, total, nil
}

// balanceFailure applies the policy to a failed delta. Under the strict
// policy the returned error aborts the transaction; under the lenient one
// the failure is stored in warning and the transaction commits.
func (s *RecordService) balanceFailure(ctx context.Context, warning *error, err error) error {
	perr := &core.PersistenceError{Stage: core.StageBalance, Err: err}
	if s.policy != PolicyLenient {
		return perr
	}
	*warning = perr
	s.logger.WarnContext(ctx, "Record committed with stale balance",
		log.FieldPolicy, s.policy, log.FieldError, err)
	return nil
}

func (s *RecordService) logFailure(ctx context.Context, msg string, r core.Record, err error) {
	fields := log.NewFields().WithRecord(r).WithError(err)
	if stage, ok := core.FailedStage(err); ok {
		fields[log.FieldStage] = string(stage)
		s.logger.ErrorContext(ctx, msg, fields.ToSlice()...)
		return
	}
	s.logger.DebugContext(ctx, msg, fields.ToSlice()...)
}

func (s *RecordService) publish(ctx context.Context, t amqp.EventType, recordID int64, accountIDs ...int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(t, recordID, accountIDs...)); err != nil {
		// the mutation is already committed
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldOperation, log.OpPublish,
			log.FieldEventType, t, log.FieldRecordID, recordID, log.FieldError, err)
	}
}

// checkRecordRefs verifies that the category, account and member exist and
// that the category's kind matches the record's kind.
func checkRecordRefs(ctx context.Context, q *storage.Queries, r core.Record) error {
	c, err := q.GetCategory(ctx, r.CategoryID)
	if err != nil {
		return notFound("category", r.CategoryID, err)
	}
	if c.Kind != r.Kind {
		return fmt.Errorf("%w: category %q is %s, record is %s", core.ErrKindMismatch, c.Name, c.Kind, r.Kind)
	}
	if _, err := q.GetAccount(ctx, r.AccountID); err != nil {
		return notFound("account", r.AccountID, err)
	}
	if _, err := q.GetMember(ctx, r.MemberID); err != nil {
		return notFound("member", r.MemberID, err)
	}
	return nil
}

// readFailure wraps a query error; validation errors pass through unchanged.
func readFailure(what string, err error) error {
	if errors.Is(err, core.ErrValidation) || errors.Is(err, core.ErrPersistence) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return &core.PersistenceError{Stage: core.StageRecord, Err: fmt.Errorf("%s: %w", what, err)}
}

func sameContent(a, b core.Record) bool {
	return a.Date.Equal(b.Date.Time) &&
		a.Kind == b.Kind &&
		a.CategoryID == b.CategoryID &&
		a.AccountID == b.AccountID &&
		a.MemberID == b.MemberID &&
		a.Amount == b.Amount &&
		a.Remark == b.Remark
}
