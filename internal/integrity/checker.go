package integrity

import (
	"context"
	"fmt"
	"sort"

	"reservation-service/internal/models"
	"reservation-service/internal/stay"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type IssueKind string

const (
	IssueDepositOverlap     IssueKind = "DEPOSIT_POLICY_OVERLAP"
	IssueSpecialDayConflict IssueKind = "SPECIAL_DAY_CONFLICT"
	IssueLedgerDrift        IssueKind = "LEDGER_DRIFT"
)

type Issue struct {
	Kind    IssueKind   `json:"kind"`
	Message string      `json:"message"`
	IDs     []uuid.UUID `json:"ids,omitempty"`
}

type Report struct {
	Issues []Issue `json:"issues"`
}

func (r Report) OK() bool { return len(r.Issues) == 0 }

// Source: то, что проверка читает из хранилища.
type Source interface {
	ListDepositPolicies(ctx context.Context, onlyActive bool) ([]models.DepositPolicy, error)
	ListSpecialDays(ctx context.Context, f models.SpecialDayFilter) ([]models.SpecialDay, error)
	LedgerDrift(ctx context.Context) ([]models.LedgerDrift, error)
}

// Checker ищет нарушения инвариантов, которые проверяются только при записи:
// пересечение активных политик депозита, два активных правила на одну (дату, категорию),
// расхождение леджера с активными бронями.
type Checker struct {
	src Source
	log *zap.Logger
}

func NewChecker(src Source, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{src: src, log: log}
}

func (c *Checker) CheckDepositPolicies(ctx context.Context) ([]Issue, error) {
	policies, err := c.src.ListDepositPolicies(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list deposit policies: %w", err)
	}
	sort.SliceStable(policies, func(i, j int) bool { return policies[i].MinRooms < policies[j].MinRooms })

	var issues []Issue
	for i := range policies {
		for j := i + 1; j < len(policies); j++ {
			a, b := &policies[i], &policies[j]
			if b.MinRooms > a.MaxRooms {
				break
			}
			issues = append(issues, Issue{
				Kind: IssueDepositOverlap,
				Message: fmt.Sprintf("active deposit policies [%d,%d] and [%d,%d] overlap",
					a.MinRooms, a.MaxRooms, b.MinRooms, b.MaxRooms),
				IDs: []uuid.UUID{a.ID, b.ID},
			})
		}
	}
	return issues, nil
}

func (c *Checker) CheckSpecialDays(ctx context.Context) ([]Issue, error) {
	days, err := c.src.ListSpecialDays(ctx, models.SpecialDayFilter{OnlyActive: true})
	if err != nil {
		return nil, fmt.Errorf("list special days: %w", err)
	}

	type scope struct {
		date     string
		category string
	}
	groups := make(map[scope][]uuid.UUID)
	var order []scope
	for _, d := range days {
		k := scope{date: d.Date.Format(stay.DateLayout), category: "*"}
		if d.RoomCategoryID != nil {
			k.category = d.RoomCategoryID.String()
		}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], d.ID)
	}

	var issues []Issue
	for _, k := range order {
		ids := groups[k]
		if len(ids) < 2 {
			continue
		}
		issues = append(issues, Issue{
			Kind:    IssueSpecialDayConflict,
			Message: fmt.Sprintf("%d active rules for date %s, category %s", len(ids), k.date, k.category),
			IDs:     ids,
		})
	}
	return issues, nil
}

func (c *Checker) CheckLedger(ctx context.Context) ([]Issue, error) {
	drift, err := c.src.LedgerDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger drift: %w", err)
	}
	issues := make([]Issue, 0, len(drift))
	for _, d := range drift {
		issues = append(issues, Issue{
			Kind: IssueLedgerDrift,
			Message: fmt.Sprintf("category %s night %s: ledger has %d available, bookings imply %d",
				d.RoomCategoryID, d.Night.Format(stay.DateLayout), d.AvailableRooms, d.ExpectedRooms),
			IDs: []uuid.UUID{d.RoomCategoryID},
		})
	}
	return issues, nil
}

// Run выполняет все проверки и пишет найденное в лог.
func (c *Checker) Run(ctx context.Context) (Report, error) {
	var report Report
	for _, check := range []func(context.Context) ([]Issue, error){
		c.CheckDepositPolicies,
		c.CheckSpecialDays,
		c.CheckLedger,
	} {
		issues, err := check(ctx)
		if err != nil {
			c.log.Error("integrity check failed", zap.Error(err))
			return report, err
		}
		report.Issues = append(report.Issues, issues...)
	}

	for _, is := range report.Issues {
		c.log.Warn("integrity issue", zap.String("kind", string(is.Kind)), zap.String("message", is.Message))
	}
	if report.OK() {
		c.log.Info("integrity check passed")
	}
	return report, nil
}
