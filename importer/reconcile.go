package importer

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
)

// reconcileDeals projects a batch of imported deals onto reservations. One
// failing deal is logged and counted, never fatal for the batch.
func reconcileDeals(ctx context.Context, deps *Deps, userUid string, candidates []*dealCandidate) error {
	logger := deps.Logger

	for _, candidate := range candidates {
		if candidate.deal == nil || candidate.action == models.EntryActionError {
			continue
		}
		reservationId, err := reconcileDeal(ctx, deps, userUid, candidate.deal)
		if err != nil {
			config.LogError(logger, "importer", "reconcileDeals", "reconcile deal", candidate.contractNumber, err)
			continue
		}
		candidate.reservationId = &reservationId
	}
	return nil
}

// reconcileDeal finds-or-creates the reservation for one deal and applies
// the monotonic status merge. Missing catalog rows are created as
// placeholders instead of blocking the sync.
func reconcileDeal(ctx context.Context, deps *Deps, userUid string, deal *models.MonthlyDeal) (int, error) {
	reported := models.MapReportedStatus(deal.StatusText)

	existing, err := deps.Reservations.FindByExternalNumber(ctx, userUid, deal.SupplierId, deal.ContractNumber)
	if err != nil {
		return 0, err
	}

	dateFrom, dateTo := reservationDates(deal)

	if existing != nil {
		existing.Status = models.MergeStatus(existing.Status, reported)
		existing.PeriodType = models.ClassifyPeriodType(dateFrom, dateTo)
		existing.DateFrom = dateFrom
		existing.DateTo = dateTo
		existing.TotalAmount = deal.TotalAmount
		if err := deps.Reservations.UpdateFromImport(ctx, userUid, existing); err != nil {
			return 0, err
		}
		return existing.ID, nil
	}

	customer, err := deps.Catalog.FindOrCreateCustomer(ctx, userUid, deal.CustomerName)
	if err != nil {
		return 0, err
	}
	branch, err := deps.Catalog.FindOrCreateBranch(ctx, userUid, deal.Branch)
	if err != nil {
		return 0, err
	}
	vehicleType, err := deps.Catalog.FindOrCreateVehicleType(ctx, userUid, deal.VehicleType)
	if err != nil {
		return 0, err
	}
	agent, err := deps.Catalog.FindOrCreateAgent(ctx, userUid, deal.AgentName)
	if err != nil {
		return 0, err
	}

	reservation := &models.Reservation{
		SupplierId:     deal.SupplierId,
		ExternalNumber: deal.ContractNumber,
		CustomerId:     customer.ID,
		BranchId:       branch.ID,
		VehicleTypeId:  vehicleType.ID,
		AgentId:        agent.ID,
		Status:         models.MergeStatus(models.ReservationDraft, reported),
		PeriodType:     models.ClassifyPeriodType(dateFrom, dateTo),
		DateFrom:       dateFrom,
		DateTo:         dateTo,
		TotalAmount:    deal.TotalAmount,
		HoldAmount:     models.DefaultHoldAmount,
		VatInclusive:   utils.NewTrue(),
	}
	if err := deps.Reservations.Insert(ctx, userUid, reservation); err != nil {
		return 0, err
	}
	return reservation.ID, nil
}

// reservationDates resolves the deal's date range, defaulting a missing end
// date to start plus one day.
func reservationDates(deal *models.MonthlyDeal) (time.Time, time.Time) {
	var dateFrom time.Time
	if deal.DateFrom != nil {
		dateFrom = *deal.DateFrom
	} else {
		dateFrom = time.Now().UTC().Truncate(24 * time.Hour)
	}
	dateTo := dateFrom.Add(24 * time.Hour)
	if deal.DateTo != nil {
		dateTo = *deal.DateTo
	}
	return dateFrom, dateTo
}
