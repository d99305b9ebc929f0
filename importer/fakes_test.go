package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// NOTE: These tests are intentionally DB-free. The fake stores below replay
// the persistence semantics (fingerprint-compared upserts, natural keys,
// tenant scoping is assumed handled by the caller) so the pipeline's control
// flow can be validated without MySQL or Redis.

type fakeStores struct {
	headers      map[string]*models.MonthlyHeader
	deals        map[string]*models.MonthlyDeal
	runs         []*models.ImportRun
	entries      []*models.ImportRunEntry
	reservations map[string]*models.Reservation
	catalogNames map[string]int
	mapping      *models.TemplateMapping
	priceLists   []*models.PriceList
	nextId       int

	failDealUpserts  map[string]bool
	priorRunsByPrint map[string]int64
	lockHeld         bool
}

func newFakeStores() *fakeStores {
	return &fakeStores{
		headers:          map[string]*models.MonthlyHeader{},
		deals:            map[string]*models.MonthlyDeal{},
		reservations:     map[string]*models.Reservation{},
		catalogNames:     map[string]int{},
		failDealUpserts:  map[string]bool{},
		priorRunsByPrint: map[string]int64{},
	}
}

func (s *fakeStores) id() int {
	s.nextId++
	return s.nextId
}

func headerKey(h *models.MonthlyHeader) string {
	return fmt.Sprintf("%d|%s|%s|%d|%d", h.SupplierId, h.AgentName, h.ContractType, h.Year, h.Month)
}

func dealKey(supplierId int, contractNumber string) string {
	return fmt.Sprintf("%d|%s", supplierId, contractNumber)
}

func (s *fakeStores) UpsertHeader(ctx context.Context, userUid string, header *models.MonthlyHeader) (models.UpsertAction, error) {
	key := headerKey(header)
	existing, found := s.headers[key]
	if !found {
		header.ID = s.id()
		stored := *header
		s.headers[key] = &stored
		return models.UpsertCreated, nil
	}
	header.ID = existing.ID
	if existing.Fingerprint == header.Fingerprint {
		return models.UpsertSkipped, nil
	}
	stored := *header
	s.headers[key] = &stored
	return models.UpsertUpdated, nil
}

func (s *fakeStores) UpsertDeal(ctx context.Context, userUid string, deal *models.MonthlyDeal) (models.UpsertAction, error) {
	if s.failDealUpserts[deal.ContractNumber] {
		return "", fmt.Errorf("injected failure for %s", deal.ContractNumber)
	}
	key := dealKey(deal.SupplierId, deal.ContractNumber)
	existing, found := s.deals[key]
	if !found {
		deal.ID = s.id()
		stored := *deal
		s.deals[key] = &stored
		return models.UpsertCreated, nil
	}
	deal.ID = existing.ID
	if existing.Fingerprint == deal.Fingerprint {
		return models.UpsertSkipped, nil
	}
	stored := *deal
	s.deals[key] = &stored
	return models.UpsertUpdated, nil
}

func (s *fakeStores) FindDealByNaturalKey(ctx context.Context, userUid string, supplierId int, contractNumber string) (*models.MonthlyDeal, error) {
	deal, found := s.deals[dealKey(supplierId, contractNumber)]
	if !found {
		return nil, nil
	}
	return deal, nil
}

func (s *fakeStores) CreateRun(ctx context.Context, userUid string, run *models.ImportRun) error {
	run.ID = s.id()
	s.runs = append(s.runs, run)
	return nil
}

func (s *fakeStores) AppendEntry(ctx context.Context, userUid string, entry *models.ImportRunEntry) error {
	entry.ID = s.id()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeStores) FinalizeRun(ctx context.Context, userUid string, run *models.ImportRun) error {
	return nil
}

func (s *fakeStores) CountRunsByFingerprint(ctx context.Context, userUid string, supplierId int, fingerprint string) (int64, error) {
	return s.priorRunsByPrint[fingerprint], nil
}

func (s *fakeStores) FindByExternalNumber(ctx context.Context, userUid string, supplierId int, externalNumber string) (*models.Reservation, error) {
	reservation, found := s.reservations[dealKey(supplierId, externalNumber)]
	if !found {
		return nil, nil
	}
	return reservation, nil
}

func (s *fakeStores) Insert(ctx context.Context, userUid string, reservation *models.Reservation) error {
	reservation.ID = s.id()
	s.reservations[dealKey(reservation.SupplierId, reservation.ExternalNumber)] = reservation
	return nil
}

func (s *fakeStores) UpdateFromImport(ctx context.Context, userUid string, reservation *models.Reservation) error {
	s.reservations[dealKey(reservation.SupplierId, reservation.ExternalNumber)] = reservation
	return nil
}

func (s *fakeStores) findOrCreateCatalog(name string) int {
	if id, found := s.catalogNames[name]; found {
		return id
	}
	id := s.id()
	s.catalogNames[name] = id
	return id
}

func (s *fakeStores) FindOrCreateCustomer(ctx context.Context, userUid string, name string) (*models.Customer, error) {
	return &models.Customer{ID: s.findOrCreateCatalog("customer:" + name), Name: name}, nil
}

func (s *fakeStores) FindOrCreateBranch(ctx context.Context, userUid string, name string) (*models.Branch, error) {
	return &models.Branch{ID: s.findOrCreateCatalog("branch:" + name), Name: name}, nil
}

func (s *fakeStores) FindOrCreateVehicleType(ctx context.Context, userUid string, name string) (*models.VehicleType, error) {
	return &models.VehicleType{ID: s.findOrCreateCatalog("vehicleType:" + name), Name: name}, nil
}

func (s *fakeStores) FindOrCreateAgent(ctx context.Context, userUid string, name string) (*models.Agent, error) {
	return &models.Agent{ID: s.findOrCreateCatalog("agent:" + name), Name: name}, nil
}

func (s *fakeStores) ActiveMapping(ctx context.Context, userUid string, supplierId int) (*models.TemplateMapping, error) {
	return s.mapping, nil
}

func (s *fakeStores) Replace(ctx context.Context, userUid string, priceList *models.PriceList) error {
	priceList.ID = s.id()
	s.priceLists = append(s.priceLists, priceList)
	return nil
}

func (s *fakeStores) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	s.lockHeld = true
	return func() { s.lockHeld = false }, nil
}

func newTestDeps(stores *fakeStores) *Deps {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Deps{
		Deals:        stores,
		Audit:        stores,
		Reservations: stores,
		Catalog:      stores,
		Templates:    stores,
		PriceLists:   stores,
		Locker:       stores,
		Logger:       logger,
	}
}

// buildWorkbook renders rows into an in-memory xlsx. time.Time values come
// back date-formatted, numbers numeric, everything else as text.
func buildWorkbook(t *testing.T, rows [][]interface{}) io.ReadSeeker {
	t.Helper()
	return bytes.NewReader(workbookBytes(t, rows))
}

func workbookBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetList()[0]
	for r, row := range rows {
		for c, value := range row {
			if value == nil {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("cell name for (%d,%d): %v", c, r, err)
			}
			if err := f.SetCellValue(sheet, axis, value); err != nil {
				t.Fatalf("set cell %s: %v", axis, err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}
