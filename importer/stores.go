package importer

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"github.com/sirupsen/logrus"
)

// The pipeline talks to storage through these interfaces so strategies and
// reconciliation can be exercised against fakes. The gorm-backed
// implementations below just delegate to the models layer.

type DealStore interface {
	UpsertHeader(ctx context.Context, userUid string, header *models.MonthlyHeader) (models.UpsertAction, error)
	UpsertDeal(ctx context.Context, userUid string, deal *models.MonthlyDeal) (models.UpsertAction, error)
	FindDealByNaturalKey(ctx context.Context, userUid string, supplierId int, contractNumber string) (*models.MonthlyDeal, error)
}

type AuditStore interface {
	CreateRun(ctx context.Context, userUid string, run *models.ImportRun) error
	AppendEntry(ctx context.Context, userUid string, entry *models.ImportRunEntry) error
	FinalizeRun(ctx context.Context, userUid string, run *models.ImportRun) error
	CountRunsByFingerprint(ctx context.Context, userUid string, supplierId int, fingerprint string) (int64, error)
}

type ReservationStore interface {
	FindByExternalNumber(ctx context.Context, userUid string, supplierId int, externalNumber string) (*models.Reservation, error)
	Insert(ctx context.Context, userUid string, reservation *models.Reservation) error
	UpdateFromImport(ctx context.Context, userUid string, reservation *models.Reservation) error
}

type CatalogStore interface {
	FindOrCreateCustomer(ctx context.Context, userUid string, name string) (*models.Customer, error)
	FindOrCreateBranch(ctx context.Context, userUid string, name string) (*models.Branch, error)
	FindOrCreateVehicleType(ctx context.Context, userUid string, name string) (*models.VehicleType, error)
	FindOrCreateAgent(ctx context.Context, userUid string, name string) (*models.Agent, error)
}

type TemplateStore interface {
	ActiveMapping(ctx context.Context, userUid string, supplierId int) (*models.TemplateMapping, error)
}

type PriceListStore interface {
	Replace(ctx context.Context, userUid string, priceList *models.PriceList) error
}

// RunLocker serializes imports for the same (supplier, period, format). The
// returned release func is safe to call once.
type RunLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Deps bundles everything a pipeline run needs. Tests swap in fakes; real
// callers use DefaultDeps.
type Deps struct {
	Deals        DealStore
	Audit        AuditStore
	Reservations ReservationStore
	Catalog      CatalogStore
	Templates    TemplateStore
	PriceLists   PriceListStore
	Locker       RunLocker
	Logger       *logrus.Logger
}

func DefaultDeps() *Deps {
	return &Deps{
		Deals:        gormDealStore{},
		Audit:        gormAuditStore{},
		Reservations: gormReservationStore{},
		Catalog:      gormCatalogStore{},
		Templates:    gormTemplateStore{},
		PriceLists:   gormPriceListStore{},
		Locker:       redisRunLocker{},
		Logger:       config.GetLogger(),
	}
}

type gormDealStore struct{}

func (gormDealStore) UpsertHeader(ctx context.Context, userUid string, header *models.MonthlyHeader) (models.UpsertAction, error) {
	return models.UpsertMonthlyHeader(ctx, userUid, header)
}

func (gormDealStore) UpsertDeal(ctx context.Context, userUid string, deal *models.MonthlyDeal) (models.UpsertAction, error) {
	return models.UpsertMonthlyDeal(ctx, userUid, deal)
}

func (gormDealStore) FindDealByNaturalKey(ctx context.Context, userUid string, supplierId int, contractNumber string) (*models.MonthlyDeal, error) {
	return models.FindDealByNaturalKey(ctx, userUid, supplierId, contractNumber)
}

type gormAuditStore struct{}

func (gormAuditStore) CreateRun(ctx context.Context, userUid string, run *models.ImportRun) error {
	return models.CreateImportRun(ctx, userUid, run)
}

func (gormAuditStore) AppendEntry(ctx context.Context, userUid string, entry *models.ImportRunEntry) error {
	return models.AppendImportRunEntry(ctx, userUid, entry)
}

func (gormAuditStore) FinalizeRun(ctx context.Context, userUid string, run *models.ImportRun) error {
	return models.FinalizeImportRun(ctx, userUid, run)
}

func (gormAuditStore) CountRunsByFingerprint(ctx context.Context, userUid string, supplierId int, fingerprint string) (int64, error) {
	return models.CountRunsByFingerprint(ctx, userUid, supplierId, fingerprint)
}

type gormReservationStore struct{}

func (gormReservationStore) FindByExternalNumber(ctx context.Context, userUid string, supplierId int, externalNumber string) (*models.Reservation, error) {
	return models.FindReservationBySupplierAndExternalNumber(ctx, userUid, supplierId, externalNumber)
}

func (gormReservationStore) Insert(ctx context.Context, userUid string, reservation *models.Reservation) error {
	return models.InsertReservation(ctx, userUid, reservation)
}

func (gormReservationStore) UpdateFromImport(ctx context.Context, userUid string, reservation *models.Reservation) error {
	return models.UpdateReservationFromImport(ctx, userUid, reservation)
}

type gormCatalogStore struct{}

func (gormCatalogStore) FindOrCreateCustomer(ctx context.Context, userUid string, name string) (*models.Customer, error) {
	return models.FindOrCreateCustomer(ctx, userUid, name)
}

func (gormCatalogStore) FindOrCreateBranch(ctx context.Context, userUid string, name string) (*models.Branch, error) {
	return models.FindOrCreateBranch(ctx, userUid, name)
}

func (gormCatalogStore) FindOrCreateVehicleType(ctx context.Context, userUid string, name string) (*models.VehicleType, error) {
	return models.FindOrCreateVehicleType(ctx, userUid, name)
}

func (gormCatalogStore) FindOrCreateAgent(ctx context.Context, userUid string, name string) (*models.Agent, error) {
	return models.FindOrCreateAgent(ctx, userUid, name)
}

type gormTemplateStore struct{}

func (gormTemplateStore) ActiveMapping(ctx context.Context, userUid string, supplierId int) (*models.TemplateMapping, error) {
	return models.ActiveTemplateMapping(ctx, userUid, supplierId)
}

type gormPriceListStore struct{}

func (gormPriceListStore) Replace(ctx context.Context, userUid string, priceList *models.PriceList) error {
	return models.ReplacePriceList(ctx, userUid, priceList)
}

type redisRunLocker struct{}

func (redisRunLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return utils.ImportLock(ctx, key, ttl, "importer", "Acquire")
}
