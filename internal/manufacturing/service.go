package manufacturing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// MaterialLine compares what an order needs of one material with what is on hand.
type MaterialLine struct {
	RawMaterialID uuid.UUID       `json:"raw_material_id"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	Required      decimal.Decimal `json:"required"`
	Available     decimal.Decimal `json:"available"`
	Shortage      decimal.Decimal `json:"shortage"`
}

// Feasibility reports whether an order can be produced from current stock.
type Feasibility struct {
	OrderID   uuid.UUID      `json:"order_id"`
	Feasible  bool           `json:"feasible"`
	Materials []MaterialLine `json:"materials"`
}

// Shortages returns the lines that cannot be covered.
func (f Feasibility) Shortages() []MaterialLine {
	var out []MaterialLine
	for _, line := range f.Materials {
		if line.Shortage.IsPositive() {
			out = append(out, line)
		}
	}
	return out
}

type Service interface {
	MaterialRequirements(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	CheckFeasibility(ctx context.Context, orderID uuid.UUID) (*Feasibility, error)
	DeductRawMaterials(ctx context.Context, actor *outbox.ActorRef, orderID uuid.UUID) (*Feasibility, error)
	ListLowMaterials(ctx context.Context) ([]models.RawMaterial, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	now    func() time.Time
}

func NewService(repo Repository, tx txRunner, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("manufacturing repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: emitter,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Requirements sums quantity_required times ordered quantity per material.
// Units without a specification contribute nothing.
func Requirements(items []models.OrderItem, specs []models.ManufacturingSpecification) map[uuid.UUID]decimal.Decimal {
	perUnit := make(map[uuid.UUID][]models.ManufacturingSpecification, len(specs))
	for _, spec := range specs {
		perUnit[spec.VariantSizeID] = append(perUnit[spec.VariantSizeID], spec)
	}
	out := make(map[uuid.UUID]decimal.Decimal)
	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		for _, spec := range perUnit[item.VariantSizeID] {
			out[spec.RawMaterialID] = out[spec.RawMaterialID].Add(spec.QuantityRequired.Mul(qty))
		}
	}
	return out
}

func (s *service) MaterialRequirements(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	_, required, err := s.requirements(ctx, s.repo, orderID)
	return required, err
}

func (s *service) CheckFeasibility(ctx context.Context, orderID uuid.UUID) (*Feasibility, error) {
	_, required, err := s.requirements(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	materials, err := s.repo.FindMaterials(ctx, materialIDs(required), false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load raw materials")
	}
	return compare(orderID, required, materials), nil
}

// DeductRawMaterials draws every required material for the order in one
// transaction. Any shortage aborts the whole batch and an order is only ever
// drawn once.
func (s *service) DeductRawMaterials(ctx context.Context, actor *outbox.ActorRef, orderID uuid.UUID) (*Feasibility, error) {
	var out *Feasibility
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, required, err := s.requirements(ctx, repo, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case enums.OrderStatusConfirmed, enums.OrderStatusProcessing:
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("raw materials cannot be drawn while order is %s", order.Status))
		}
		if order.MaterialsDeductedAt != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "raw materials already deducted for order")
		}

		ids := materialIDs(required)
		materials, err := repo.FindMaterials(ctx, ids, true)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock raw materials")
		}
		check := compare(orderID, required, materials)
		if !check.Feasible {
			return shortageError(check)
		}

		remaining := make(map[uuid.UUID]decimal.Decimal, len(ids))
		for _, line := range check.Materials {
			ok, err := repo.Deduct(ctx, line.RawMaterialID, line.Required)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deduct raw material")
			}
			if !ok {
				return shortageError(check)
			}
			remaining[line.RawMaterialID] = line.Available.Sub(line.Required)
		}
		marked, err := repo.MarkDeducted(ctx, order.ID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark materials deducted")
		}
		if !marked {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "raw materials already deducted for order")
		}

		err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRawMaterialsDeducted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.RawMaterialsDeductedEvent{
				OrderID:   order.ID,
				Deducted:  required,
				Remaining: remaining,
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit raw materials deducted")
		}
		out = check
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) ListLowMaterials(ctx context.Context) ([]models.RawMaterial, error) {
	rows, err := s.repo.ListLow(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low materials")
	}
	return rows, nil
}

func (s *service) requirements(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, map[uuid.UUID]decimal.Decimal, error) {
	if orderID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	units := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		units = append(units, item.VariantSizeID)
	}
	specs, err := repo.SpecsForUnits(ctx, units)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load manufacturing specifications")
	}
	return order, Requirements(order.Items, specs), nil
}

func compare(orderID uuid.UUID, required map[uuid.UUID]decimal.Decimal, materials []models.RawMaterial) *Feasibility {
	byID := make(map[uuid.UUID]models.RawMaterial, len(materials))
	for _, m := range materials {
		byID[m.ID] = m
	}
	out := &Feasibility{OrderID: orderID, Feasible: true, Materials: make([]MaterialLine, 0, len(required))}
	for _, id := range materialIDs(required) {
		need := required[id]
		m := byID[id]
		line := MaterialLine{
			RawMaterialID: id,
			Name:          m.Name,
			Unit:          m.Unit,
			Required:      need,
			Available:     m.CurrentQuantity,
			Shortage:      decimal.Zero,
		}
		if need.GreaterThan(m.CurrentQuantity) {
			line.Shortage = need.Sub(m.CurrentQuantity)
			out.Feasible = false
		}
		out.Materials = append(out.Materials, line)
	}
	return out
}

func materialIDs(required map[uuid.UUID]decimal.Decimal) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(required))
	for id := range required {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func shortageError(check *Feasibility) error {
	details := make(map[string]string)
	for _, line := range check.Shortages() {
		details[line.RawMaterialID.String()] = line.Shortage.String()
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient raw materials").WithDetails(details)
}
