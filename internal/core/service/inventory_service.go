package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/allshop-fulfillment/internal/core/domain"
	"github.com/rl1809/allshop-fulfillment/internal/port"
)

type InventoryService struct {
	store  port.DocumentStore
	logger *zap.Logger
	now    func() time.Time
}

func NewInventoryService(store port.DocumentStore, logger *zap.Logger) *InventoryService {
	return &InventoryService{
		store:  store,
		logger: logger.Named("inventory"),
		now:    time.Now,
	}
}

type RegisterLotInput struct {
	ProductID     string
	ProductName   string
	Variant       string
	PurchasePrice decimal.Decimal
	Serials       []string
}

// serialRecord reserves a serial catalog-wide.
type serialRecord struct {
	Serial string `json:"serial"`
	LotID  string `json:"lotId"`
}

// RegisterLot records a purchased lot with one AVAILABLE unit per serial.
// Serials must be unique across the whole catalog.
func (s *InventoryService) RegisterLot(ctx context.Context, in RegisterLotInput) (*domain.Lot, error) {
	if strings.TrimSpace(in.ProductID) == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrInvalidLot)
	}
	if len(in.Serials) == 0 {
		return nil, fmt.Errorf("%w: at least one serial is required", ErrInvalidLot)
	}
	if in.PurchasePrice.IsNegative() {
		return nil, fmt.Errorf("%w: purchase price must not be negative", ErrInvalidLot)
	}

	now := s.now()
	lot := domain.Lot{
		ID:             uuid.NewString(),
		ProductID:      strings.TrimSpace(in.ProductID),
		ProductName:    in.ProductName,
		Variant:        strings.TrimSpace(in.Variant),
		PurchasePrice:  in.PurchasePrice,
		QuantityBought: len(in.Serials),
		Status:         domain.LotStatusInStock,
		Units:          make([]domain.Unit, 0, len(in.Serials)),
		PurchasedAt:    now,
		UpdatedAt:      now,
	}

	seen := make(map[string]bool, len(in.Serials))
	for _, raw := range in.Serials {
		serial := domain.NormalizeSerial(raw)
		if serial == "" {
			return nil, fmt.Errorf("%w: empty serial", ErrInvalidLot)
		}
		if seen[serial] {
			return nil, fmt.Errorf("%w: serial %s listed twice", ErrInvalidLot, serial)
		}
		seen[serial] = true
		lot.Units = append(lot.Units, domain.Unit{
			Serial:    serial,
			Status:    domain.UnitAvailable,
			CreatedAt: now,
		})
	}

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx port.Transaction) error {
		for _, u := range lot.Units {
			var existing serialRecord
			err := tx.Get(ctx, CollectionSerials, u.Serial, &existing)
			if err == nil {
				return fmt.Errorf("%w: %s belongs to lot %s", ErrSerialTaken, u.Serial, existing.LotID)
			}
			if !errors.Is(err, port.ErrDocumentNotFound) {
				return fmt.Errorf("check serial %s: %w", u.Serial, err)
			}
			if err := tx.Set(CollectionSerials, u.Serial, serialRecord{Serial: u.Serial, LotID: lot.ID}); err != nil {
				return err
			}
		}
		return tx.Set(CollectionLots, lot.ID, lot)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("lot registered",
		zap.String("lot_id", lot.ID),
		zap.String("product_id", lot.ProductID),
		zap.String("variant", lot.Variant),
		zap.Int("units", lot.QuantityBought),
	)
	return &lot, nil
}

func (s *InventoryService) GetLot(ctx context.Context, id string) (*domain.Lot, error) {
	var lot domain.Lot
	if err := s.store.Get(ctx, CollectionLots, id, &lot); err != nil {
		if errors.Is(err, port.ErrDocumentNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrLotNotFound, id)
		}
		return nil, fmt.Errorf("get lot: %w", err)
	}
	return &lot, nil
}

func (s *InventoryService) ListLots(ctx context.Context) ([]domain.Lot, error) {
	return listLots(ctx, s.store)
}

func listLots(ctx context.Context, store port.DocumentStore) ([]domain.Lot, error) {
	docs, err := store.List(ctx, CollectionLots)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}

	lots := make([]domain.Lot, 0, len(docs))
	for _, doc := range docs {
		var lot domain.Lot
		if err := doc.Decode(&lot); err != nil {
			return nil, fmt.Errorf("decode lot %s: %w", doc.ID, err)
		}
		lots = append(lots, lot)
	}
	return lots, nil
}
