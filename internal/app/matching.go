package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"cgtTracker/internal/cgt"
	"cgtTracker/internal/domain"
	"cgtTracker/internal/ports"
)

// ManualLot is one caller-chosen (parcel, quantity) pair for manual matching.
type ManualLot struct {
	ParcelID int64
	Quantity decimal.Decimal
}

// MatchingService is the allocation and commit engine. Allocate is a pure read
// path producing proposed allocations against a snapshot of lot state; Commit
// re-validates each lot under an exclusive unit of work and is the only place
// lot remaining quantity is ever mutated.
type MatchingService struct {
	logger      ports.Logger
	parcels     ports.ParcelRepository
	allocations ports.AllocationRepository
	uow         ports.UnitOfWork
}

// NewMatchingService creates the matching engine.
func NewMatchingService(logger ports.Logger, parcels ports.ParcelRepository, allocations ports.AllocationRepository, uow ports.UnitOfWork) (*MatchingService, error) {
	if logger == nil || parcels == nil || allocations == nil || uow == nil {
		return nil, fmt.Errorf("missing required dependencies for MatchingService")
	}
	return &MatchingService{logger: logger, parcels: parcels, allocations: allocations, uow: uow}, nil
}

// Allocate selects lots for a sell transaction under the given strategy and
// apportions the sell's unmatched quantity across them. Allocations already
// committed for the sell reduce what is left to match; a fully matched sell is
// rejected. The result is unpersisted; discard it freely, or hand it to Commit.
// Manual strategy requires the manual pairs; the automatic strategies ignore them.
//
// Fails with *AllocationError if the transaction is not a sell, it is already
// fully matched, the available lots cannot fully satisfy the quantity, or the
// manual pairs are malformed. It never returns a partial allocation.
func (s *MatchingService) Allocate(ctx context.Context, sell *domain.Transaction, strategy domain.Strategy, manual []ManualLot) ([]*domain.ProposedAllocation, error) {
	if sell == nil || !sell.IsSell() {
		return nil, &AllocationError{Reason: "transaction must be a SELL"}
	}
	if !sell.Quantity.IsPositive() {
		return nil, &AllocationError{Reason: fmt.Sprintf("sell quantity must be positive, got %s", sell.Quantity)}
	}

	already, err := s.alreadyMatched(ctx, sell.ID)
	if err != nil {
		return nil, err
	}
	target := sell.Quantity.Sub(already)
	if !target.IsPositive() {
		return nil, &AllocationError{Reason: fmt.Sprintf(
			"sell %d is already fully matched (%s of %s units)", sell.ID, already, sell.Quantity)}
	}

	var proposed []*domain.ProposedAllocation
	switch strategy {
	case domain.EarliestFirst, domain.LatestFirst, domain.HighestCostFirst:
		proposed, err = s.allocateAuto(ctx, sell, strategy, target)
	case domain.Manual:
		proposed, err = s.allocateManual(ctx, sell, manual, target)
	default:
		return nil, &AllocationError{Reason: fmt.Sprintf("unknown strategy %v", strategy)}
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "Allocation proposed", map[string]interface{}{
		"sellID":   sell.ID,
		"strategy": strategy.String(),
		"lots":     len(proposed),
	})
	return proposed, nil
}

// alreadyMatched sums the committed allocations of a sell. A zero ID marks an
// unpersisted sell (forecasting), which has no history.
func (s *MatchingService) alreadyMatched(ctx context.Context, sellID int64) (decimal.Decimal, error) {
	if sellID == 0 {
		return decimal.Zero, nil
	}
	existing, err := s.allocations.FindBySellTransaction(ctx, sellID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load existing allocations for sell %d: %w", sellID, err)
	}
	total := decimal.Zero
	for _, a := range existing {
		total = total.Add(a.MatchedQuantity)
	}
	return total, nil
}

func lotOrderFor(strategy domain.Strategy) ports.LotOrder {
	switch strategy {
	case domain.LatestFirst:
		return ports.ByAcquisitionDesc
	case domain.HighestCostFirst:
		return ports.ByCostPerUnitDesc
	default:
		return ports.ByAcquisitionAsc
	}
}

func (s *MatchingService) allocateAuto(ctx context.Context, sell *domain.Transaction, strategy domain.Strategy, target decimal.Decimal) ([]*domain.ProposedAllocation, error) {
	candidates, err := s.parcels.AvailableBySecurity(ctx, sell.SecurityID, lotOrderFor(strategy))
	if err != nil {
		return nil, fmt.Errorf("failed to load available parcels: %w", err)
	}

	proposed := make([]*domain.ProposedAllocation, 0, len(candidates))
	remaining := target

	for _, parcel := range candidates {
		if !remaining.IsPositive() {
			break
		}
		qty := decimal.Min(parcel.RemainingQuantity, remaining)
		proposed = append(proposed, buildProposal(parcel, sell, qty))
		remaining = remaining.Sub(qty)
	}

	if remaining.IsPositive() {
		return nil, &AllocationError{Reason: fmt.Sprintf(
			"insufficient parcels: need %s units, only %s available",
			target, target.Sub(remaining))}
	}
	return proposed, nil
}

func (s *MatchingService) allocateManual(ctx context.Context, sell *domain.Transaction, manual []ManualLot, target decimal.Decimal) ([]*domain.ProposedAllocation, error) {
	if len(manual) == 0 {
		return nil, &AllocationError{Reason: "manual matching requires parcel/quantity pairs"}
	}

	proposed := make([]*domain.ProposedAllocation, 0, len(manual))
	totalMatched := decimal.Zero

	for _, lot := range manual {
		if !lot.Quantity.IsPositive() {
			continue
		}
		parcel, err := s.parcels.FindParcelByID(ctx, lot.ParcelID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parcel %d: %w", lot.ParcelID, err)
		}
		if parcel == nil {
			return nil, &AllocationError{Reason: fmt.Sprintf("parcel %d does not exist", lot.ParcelID)}
		}
		if parcel.SecurityID != sell.SecurityID {
			return nil, &AllocationError{Reason: fmt.Sprintf("parcel %d is for a different security", lot.ParcelID)}
		}
		if lot.Quantity.GreaterThan(parcel.RemainingQuantity) {
			return nil, &AllocationError{Reason: fmt.Sprintf(
				"cannot match %s from parcel %d: only %s remaining",
				lot.Quantity, lot.ParcelID, parcel.RemainingQuantity)}
		}
		proposed = append(proposed, buildProposal(parcel, sell, lot.Quantity))
		totalMatched = totalMatched.Add(lot.Quantity)
	}

	if !totalMatched.Equal(target) {
		return nil, &AllocationError{Reason: fmt.Sprintf(
			"total matched quantity (%s) does not equal unmatched sell quantity (%s)",
			totalMatched, target)}
	}
	return proposed, nil
}

// buildProposal computes the tax outcome for one slice and wraps it as an
// unpersisted proposed allocation.
func buildProposal(parcel *domain.Parcel, sell *domain.Transaction, qty decimal.Decimal) *domain.ProposedAllocation {
	b := cgt.ComputeGain(parcel, sell, qty)
	return &domain.ProposedAllocation{
		Parcel:            parcel,
		SellTransactionID: sell.ID,
		MatchedQuantity:   qty,
		CostBase:          b.CostBase,
		Proceeds:          b.Proceeds,
		GainLoss:          b.GainLoss,
		HoldingDays:       b.HoldingDays,
		DiscountEligible:  b.DiscountEligible,
		DiscountAmount:    b.DiscountAmount,
		NetGain:           b.NetGain,
	}
}

// Commit persists a proposal against its sell transaction as a single
// all-or-nothing unit of work. Under the exclusive transaction the sell's
// committed allocations are re-summed, so the combined matched quantity can
// never exceed the sell's quantity even if the same proposal (or another one for
// the same sell) was committed in between. Each referenced lot is likewise
// re-read; if any proposed quantity now exceeds the lot's fresh remaining
// quantity, the whole operation fails with *AllocationError and every mutation
// made so far is rolled back.
func (s *MatchingService) Commit(ctx context.Context, sell *domain.Transaction, proposed []*domain.ProposedAllocation) ([]*domain.Allocation, error) {
	if sell == nil || !sell.IsSell() {
		return nil, &AllocationError{Reason: "transaction must be a SELL"}
	}
	if len(proposed) == 0 {
		return nil, &AllocationError{Reason: "no proposed allocations to commit"}
	}
	totalProposed := decimal.Zero
	for _, pa := range proposed {
		if pa.SellTransactionID != sell.ID {
			return nil, &AllocationError{Reason: fmt.Sprintf(
				"proposal for sell %d cannot be committed against sell %d",
				pa.SellTransactionID, sell.ID)}
		}
		if !pa.MatchedQuantity.IsPositive() {
			return nil, &AllocationError{Reason: fmt.Sprintf(
				"matched quantity must be positive, got %s for parcel %d",
				pa.MatchedQuantity, pa.Parcel.ID)}
		}
		totalProposed = totalProposed.Add(pa.MatchedQuantity)
	}

	committed := make([]*domain.Allocation, 0, len(proposed))
	err := s.uow.RunExclusive(ctx, func(tx ports.MatchTx) error {
		already, err := tx.MatchedQuantityForSell(ctx, sell.ID)
		if err != nil {
			return err
		}
		if already.Add(totalProposed).GreaterThan(sell.Quantity) {
			return &AllocationError{Reason: fmt.Sprintf(
				"sell %d quantity (%s) cannot cover %s already matched plus %s proposed",
				sell.ID, sell.Quantity, already, totalProposed)}
		}

		for _, pa := range proposed {
			fresh, err := tx.ParcelForUpdate(ctx, pa.Parcel.ID)
			if err != nil {
				return err
			}
			if pa.MatchedQuantity.GreaterThan(fresh.RemainingQuantity) {
				return &AllocationError{Reason: fmt.Sprintf(
					"parcel %d remaining quantity (%s) is below matched quantity (%s); lot changed since proposal",
					fresh.ID, fresh.RemainingQuantity, pa.MatchedQuantity)}
			}

			remaining := fresh.RemainingQuantity.Sub(pa.MatchedQuantity)
			if err := tx.UpdateParcelQuantity(ctx, fresh.ID, remaining, remaining.IsZero()); err != nil {
				return err
			}

			alloc := &domain.Allocation{
				ParcelID:          fresh.ID,
				SellTransactionID: pa.SellTransactionID,
				MatchedQuantity:   pa.MatchedQuantity,
				CostBase:          pa.CostBase,
				Proceeds:          pa.Proceeds,
				GainLoss:          pa.GainLoss,
				HoldingDays:       pa.HoldingDays,
				DiscountEligible:  pa.DiscountEligible,
				DiscountAmount:    pa.DiscountAmount,
				NetGain:           pa.NetGain,
			}
			if _, err := tx.CreateAllocation(ctx, alloc); err != nil {
				return err
			}
			committed = append(committed, alloc)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn(ctx, "Commit failed, all lot mutations rolled back", map[string]interface{}{"reason": err.Error()})
		return nil, err
	}

	s.logger.Info(ctx, "Allocations committed", map[string]interface{}{"count": len(committed)})
	return committed, nil
}
