// internal/repository/sale_store.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-device-service/internal/database"
	"pos-device-service/internal/finalize"
	"pos-device-service/internal/model"
)

const (
	saleDetailsTable  = "sale_details"
	orderDetailsTable = "order_details"
)

// SaleStore persists finalized sales, orders and documents
type SaleStore struct {
	db     *database.DB
	logger *zap.Logger
}

// NewSaleStore creates a new sale store
func NewSaleStore(db *database.DB, logger *zap.Logger) *SaleStore {
	return &SaleStore{
		db:     db,
		logger: logger.With(zap.String("component", "sale_store")),
	}
}

// BeginTransaction opens the database transaction of one finalize call
func (s *SaleStore) BeginTransaction(ctx context.Context) (finalize.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &saleTransaction{tx: tx, logger: s.logger}, nil
}

type saleTransaction struct {
	tx     *sql.Tx
	logger *zap.Logger
}

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

// Snapshot stores the JSON form of the entity as it was before the commit
func (t *saleTransaction) Snapshot(ctx context.Context, entityType string, entityID string, entity interface{}) error {
	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to encode %s snapshot: %w", entityType, err)
	}

	query := `
		INSERT INTO entity_snapshots (id, entity_type, entity_id, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := t.tx.ExecContext(ctx, query, uuid.New(), entityType, entityID, payload); err != nil {
		t.logger.Error("Failed to store snapshot", zap.Error(err), zap.String("entity_type", entityType))
		return fmt.Errorf("failed to store %s snapshot: %w", entityType, err)
	}
	return nil
}

// CommitOrder writes the order header and replaces its lines
func (t *saleTransaction) CommitOrder(ctx context.Context, order *model.Order) error {
	query := `
		INSERT INTO orders (id, location_id, location, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			location_id = EXCLUDED.location_id,
			location = EXCLUDED.location,
			updated_at = EXCLUDED.updated_at
	`
	_, err := t.tx.ExecContext(ctx, query,
		order.ID, nullUUID(order.LocationID), order.Location, order.UpdatedAt,
	)
	if err != nil {
		t.logger.Error("Failed to commit order", zap.Error(err), zap.String("order_id", order.ID.String()))
		return fmt.Errorf("failed to commit order: %w", err)
	}

	return t.replaceDetails(ctx, orderDetailsTable, "order_id", order.ID, order.Details)
}

// CommitSale writes the sale with its lines and payments. A new sale takes
// the next number of the sale sequence; a stored sale keeps its number.
func (t *saleTransaction) CommitSale(ctx context.Context, sale *model.Sale) error {
	number, err := t.saleNumber(ctx, sale)
	if err != nil {
		return err
	}
	sale.Number = number

	query := `
		INSERT INTO sales (
			id, number, state, partner_id, partner, location_id, location,
			user_id, user_name, note, total, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			partner_id = EXCLUDED.partner_id,
			partner = EXCLUDED.partner,
			location_id = EXCLUDED.location_id,
			location = EXCLUDED.location,
			user_id = EXCLUDED.user_id,
			user_name = EXCLUDED.user_name,
			note = EXCLUDED.note,
			total = EXCLUDED.total
	`
	_, err = t.tx.ExecContext(ctx, query,
		sale.ID, sale.Number, sale.State, nullUUID(sale.PartnerID), sale.Partner,
		nullUUID(sale.LocationID), sale.Location, nullUUID(sale.UserID), sale.User,
		sale.Note, sale.Total(), sale.CreatedAt,
	)
	if err != nil {
		t.logger.Error("Failed to commit sale", zap.Error(err), zap.String("sale_id", sale.ID.String()))
		return fmt.Errorf("failed to commit sale: %w", err)
	}

	if err := t.replaceDetails(ctx, saleDetailsTable, "sale_id", sale.ID, sale.Details); err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM payments WHERE sale_id = $1`, sale.ID); err != nil {
		return fmt.Errorf("failed to clear payments: %w", err)
	}
	for _, p := range sale.Payments {
		payment := *p
		payment.SaleID = sale.ID
		if err := t.CommitPayment(ctx, &payment); err != nil {
			return err
		}
	}
	return nil
}

func (t *saleTransaction) saleNumber(ctx context.Context, sale *model.Sale) (int64, error) {
	var number int64
	err := t.tx.QueryRowContext(ctx, `SELECT number FROM sales WHERE id = $1`, sale.ID).Scan(&number)
	switch {
	case err == nil:
		return number, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("failed to look up sale number: %w", err)
	case sale.Number > 0:
		return sale.Number, nil
	}

	if err := t.tx.QueryRowContext(ctx, `SELECT nextval('sale_number_seq')`).Scan(&number); err != nil {
		return 0, fmt.Errorf("failed to assign sale number: %w", err)
	}
	return number, nil
}

// CommitPayment inserts or updates one payment
func (t *saleTransaction) CommitPayment(ctx context.Context, payment *model.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}

	query := `
		INSERT INTO payments (id, sale_id, type, amount, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		ON CONFLICT (id) DO UPDATE SET
			sale_id = EXCLUDED.sale_id,
			type = EXCLUDED.type,
			amount = EXCLUDED.amount
	`
	var createdAt sql.NullTime
	if !payment.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: payment.CreatedAt, Valid: true}
	}
	_, err := t.tx.ExecContext(ctx, query,
		payment.ID, payment.SaleID, payment.Type, payment.Amount, createdAt,
	)
	if err != nil {
		t.logger.Error("Failed to commit payment", zap.Error(err), zap.String("payment_id", payment.ID.String()))
		return fmt.Errorf("failed to commit payment: %w", err)
	}
	return nil
}

// CommitDocument inserts or updates a document
func (t *saleTransaction) CommitDocument(ctx context.Context, document *model.Document) error {
	if document.ID == uuid.Nil {
		document.ID = uuid.New()
	}

	query := `
		INSERT INTO documents (id, sale_id, kind, number, recipient, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			sale_id = EXCLUDED.sale_id,
			kind = EXCLUDED.kind,
			number = EXCLUDED.number,
			recipient = EXCLUDED.recipient,
			issued_at = EXCLUDED.issued_at
	`
	_, err := t.tx.ExecContext(ctx, query,
		document.ID, nullUUID(document.SaleID), document.Kind, document.Number,
		document.Recipient, document.IssuedAt,
	)
	if err != nil {
		t.logger.Error("Failed to commit document", zap.Error(err), zap.String("document_id", document.ID.String()))
		return fmt.Errorf("failed to commit document: %w", err)
	}
	return nil
}

func (t *saleTransaction) replaceDetails(ctx context.Context, table, parentColumn string, parentID uuid.UUID, details []*model.SaleDetail) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+parentColumn+` = $1`, parentID); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	query := `
		INSERT INTO ` + table + ` (
			id, ` + parentColumn + `, position, item_id, item_code, item_name, item_group,
			quantity, price, discount, vat_group, vat_rate, note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	for i, d := range details {
		id := d.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err := t.tx.ExecContext(ctx, query,
			id, parentID, i, nullUUID(d.ItemID), d.ItemCode, d.ItemName, d.ItemGroup,
			d.Quantity, d.Price, d.Discount, d.VATGroup, d.VATRate, d.Note,
		)
		if err != nil {
			t.logger.Error("Failed to insert line", zap.Error(err), zap.String("table", table))
			return fmt.Errorf("failed to insert %s line %d: %w", table, i, err)
		}
	}
	return nil
}

// Complete commits the transaction
func (t *saleTransaction) Complete(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		t.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback discards the transaction. Rolling back a finished transaction
// is not an error.
func (t *saleTransaction) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// GetSale loads a committed sale with its lines and payments
func (s *SaleStore) GetSale(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	return s.getSale(ctx, `WHERE id = $1`, id)
}

// GetSaleByNumber loads a committed sale by its number
func (s *SaleStore) GetSaleByNumber(ctx context.Context, number int64) (*model.Sale, error) {
	return s.getSale(ctx, `WHERE number = $1`, number)
}

func (s *SaleStore) getSale(ctx context.Context, where string, arg interface{}) (*model.Sale, error) {
	query := `
		SELECT id, number, state, partner_id, partner, location_id, location,
			   user_id, user_name, note, created_at
		FROM sales ` + where

	var (
		sale                          model.Sale
		partnerID, locationID, userID uuid.NullUUID
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&sale.ID, &sale.Number, &sale.State, &partnerID, &sale.Partner,
		&locationID, &sale.Location, &userID, &sale.User, &sale.Note, &sale.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sale %v: %w", arg, ErrNotFound)
		}
		s.logger.Error("Failed to get sale", zap.Error(err))
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	sale.PartnerID = partnerID.UUID
	sale.LocationID = locationID.UUID
	sale.UserID = userID.UUID

	if sale.Details, err = s.saleDetails(ctx, sale.ID); err != nil {
		return nil, err
	}
	if sale.Payments, err = s.payments(ctx, sale.ID); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *SaleStore) saleDetails(ctx context.Context, saleID uuid.UUID) ([]*model.SaleDetail, error) {
	query := `
		SELECT id, item_id, item_code, item_name, item_group, quantity, price,
			   discount, vat_group, vat_rate, note
		FROM sale_details WHERE sale_id = $1 ORDER BY position
	`
	rows, err := s.db.QueryContext(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale lines: %w", err)
	}
	defer rows.Close()

	details := []*model.SaleDetail{}
	for rows.Next() {
		var (
			d      model.SaleDetail
			itemID uuid.NullUUID
		)
		err := rows.Scan(
			&d.ID, &itemID, &d.ItemCode, &d.ItemName, &d.ItemGroup, &d.Quantity,
			&d.Price, &d.Discount, &d.VATGroup, &d.VATRate, &d.Note,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale line: %w", err)
		}
		d.ItemID = itemID.UUID
		details = append(details, &d)
	}
	return details, rows.Err()
}

func (s *SaleStore) payments(ctx context.Context, saleID uuid.UUID) ([]*model.Payment, error) {
	query := `
		SELECT id, sale_id, type, amount, created_at
		FROM payments WHERE sale_id = $1 ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	payments := []*model.Payment{}
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Type, &p.Amount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

var (
	_ finalize.Store = (*SaleStore)(nil)
	_ SaleReader     = (*SaleStore)(nil)
)
