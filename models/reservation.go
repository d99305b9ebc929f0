package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReservationStatus string

const (
	ReservationDraft          ReservationStatus = "DRAFT"
	ReservationSentToSupplier ReservationStatus = "SENT_TO_SUPPLIER"
	ReservationSentToCustomer ReservationStatus = "SENT_TO_CUSTOMER"
	ReservationConfirmed      ReservationStatus = "CONFIRMED"
	ReservationPaid           ReservationStatus = "PAID"
	ReservationCancelled      ReservationStatus = "CANCELLED"
)

// statusRank totally orders the non-cancelled lifecycle; CANCELLED ranks with
// PAID for comparison purposes.
var statusRank = map[ReservationStatus]int{
	ReservationDraft:          0,
	ReservationSentToSupplier: 1,
	ReservationSentToCustomer: 2,
	ReservationConfirmed:      3,
	ReservationPaid:           4,
	ReservationCancelled:      4,
}

func StatusRank(status ReservationStatus) int {
	rank, ok := statusRank[status]
	if !ok {
		return 0
	}
	return rank
}

// MergeStatus applies the monotonic merge rule: a reported status is applied
// only when it ranks at least as high as the current one. Cancellation always
// applies, whatever the current stage.
func MergeStatus(current ReservationStatus, reported ReservationStatus) ReservationStatus {
	if reported == ReservationCancelled {
		return ReservationCancelled
	}
	if StatusRank(reported) >= StatusRank(current) {
		return reported
	}
	return current
}

var paidKeywords = []string{"paid", "closed", "settled", "שולם", "סגור"}
var cancelledKeywords = []string{"cancel", "cancelled", "canceled", "void", "בוטל", "מבוטל"}
var confirmedKeywords = []string{"confirm", "active", "open", "approved", "פתוח", "מאושר", "פעיל"}

// MapReportedStatus fuzzy-matches a supplier's free-text status against known
// keyword sets. Unrecognized text defaults to CONFIRMED: a deal the supplier
// reports at all is at least a confirmed booking.
func MapReportedStatus(statusText string) ReservationStatus {
	text := strings.ToLower(strings.TrimSpace(statusText))
	for _, kw := range cancelledKeywords {
		if strings.Contains(text, kw) {
			return ReservationCancelled
		}
	}
	for _, kw := range paidKeywords {
		if strings.Contains(text, kw) {
			return ReservationPaid
		}
	}
	for _, kw := range confirmedKeywords {
		if strings.Contains(text, kw) {
			return ReservationConfirmed
		}
	}
	return ReservationConfirmed
}

type PeriodType string

const (
	PeriodDaily   PeriodType = "DAILY"
	PeriodWeekly  PeriodType = "WEEKLY"
	PeriodMonthly PeriodType = "MONTHLY"
)

// ClassifyPeriodType derives the rental period class from the date span:
// up to 6 days daily, up to 23 days weekly, monthly beyond that.
func ClassifyPeriodType(dateFrom time.Time, dateTo time.Time) PeriodType {
	days := int(dateTo.Sub(dateFrom).Hours() / 24)
	switch {
	case days <= 6:
		return PeriodDaily
	case days <= 23:
		return PeriodWeekly
	default:
		return PeriodMonthly
	}
}

// DefaultHoldAmount is the deposit placed on reservations auto-created from
// supplier files.
var DefaultHoldAmount = decimal.NewFromInt(500)

// Reservation is the lifecycle record an imported deal is projected onto,
// synced by (supplier, external contract number). Imports create and update
// reservations; they never delete them.
type Reservation struct {
	ID             int               `gorm:"primary_key" json:"id"`
	UserUid        string            `gorm:"size:64;not null;index:uniq_reservation,unique" json:"user_uid"`
	SupplierId     int               `gorm:"not null;index:uniq_reservation,unique" json:"supplier_id"`
	ExternalNumber string            `gorm:"size:50;not null;index:uniq_reservation,unique" json:"external_number"`
	CustomerId     int               `gorm:"index" json:"customer_id"`
	BranchId       int               `gorm:"index" json:"branch_id"`
	VehicleTypeId  int               `gorm:"index" json:"vehicle_type_id"`
	AgentId        int               `gorm:"index" json:"agent_id"`
	Status         ReservationStatus `gorm:"size:20;not null" json:"status"`
	PeriodType     PeriodType        `gorm:"size:10;not null" json:"period_type"`
	DateFrom       time.Time         `gorm:"not null" json:"date_from"`
	DateTo         time.Time         `gorm:"not null" json:"date_to"`
	TotalAmount    decimal.Decimal   `gorm:"type:decimal(18,2)" json:"total_amount"`
	HoldAmount     decimal.Decimal   `gorm:"type:decimal(18,2)" json:"hold_amount"`
	VatInclusive   *bool             `gorm:"not null;default:true" json:"vat_inclusive"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func FindReservationBySupplierAndExternalNumber(ctx context.Context, userUid string, supplierId int, externalNumber string) (*Reservation, error) {
	db := config.GetDB()
	var reservation Reservation
	err := db.WithContext(ctx).
		Where("user_uid = ? AND supplier_id = ? AND external_number = ?", userUid, supplierId, externalNumber).
		First(&reservation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func InsertReservation(ctx context.Context, userUid string, reservation *Reservation) error {
	reservation.UserUid = userUid
	db := config.GetDB()
	return db.WithContext(ctx).Create(reservation).Error
}

// UpdateReservationFromImport refreshes the supplier-sourced fields of an
// existing reservation. The status passed in must already be merged.
func UpdateReservationFromImport(ctx context.Context, userUid string, reservation *Reservation) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(&Reservation{}).
		Where("user_uid = ? AND id = ?", userUid, reservation.ID).
		Updates(map[string]interface{}{
			"Status":      reservation.Status,
			"PeriodType":  reservation.PeriodType,
			"DateFrom":    reservation.DateFrom,
			"DateTo":      reservation.DateTo,
			"TotalAmount": reservation.TotalAmount,
		}).Error
}
