package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"card-gateway/models"
)

// SQLOptions configures a relational store.
type SQLOptions struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// SQL is a Store backed by MySQL or Postgres through gorm.
type SQL struct {
	db *gorm.DB
}

// OpenSQL connects using the "mysql" or "postgres" driver.
func OpenSQL(opts SQLOptions) (*SQL, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "mysql":
		dialector = gormmysql.Open(opts.DSN)
	case "postgres":
		conn, err := sql.Open("postgres", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		dialector = postgres.New(postgres.Config{Conn: conn})
	default:
		return nil, fmt.Errorf("unsupported store driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return &SQL{db: db}, nil
}

// NewSQL wraps an existing gorm handle.
func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db}
}

// Migrate creates or updates the tables this service owns.
func (s *SQL) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&models.Order{},
		&models.TransactionRecord{},
		&models.Settlement{},
	)
}

// GetOrder loads an order by id or returns ErrNotFound.
func (s *SQL) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// InsertTransaction creates a pending record; a reused token is ErrDuplicate.
func (s *SQL) InsertTransaction(ctx context.Context, rec *models.TransactionRecord) error {
	err := s.db.WithContext(ctx).Create(rec).Error
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// CompleteTransaction updates the record only where status is still pending.
// It returns ErrNotPending when the row exists but was already completed.
func (s *SQL) CompleteTransaction(ctx context.Context, token string, upd *models.TransactionRecord) error {
	res := s.db.WithContext(ctx).
		Model(&models.TransactionRecord{}).
		Where("token = ? AND status = ?", token, models.TxPending).
		Updates(map[string]any{
			"status":                    upd.Status,
			"outcome":                   upd.Outcome,
			"gateway_transaction_id":    upd.GatewayTransactionID,
			"response_code":             upd.ResponseCode,
			"response_message":          upd.ResponseMessage,
			"signature_verified":        upd.SignatureVerified,
			"signature_mismatch_reason": upd.SignatureMismatchReason,
			"request_payload":           upd.RequestPayload,
			"response_payload":          upd.ResponsePayload,
			"completed_at":              upd.CompletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.TransactionRecord{}).Where("token = ?", token).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrNotPending
}

// GetTransaction loads a record by token or returns ErrNotFound.
func (s *SQL) GetTransaction(ctx context.Context, token string) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	err := s.db.WithContext(ctx).Where("token = ?", token).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// HasSuccessfulTransaction reports whether any record for the order succeeded.
func (s *SQL) HasSuccessfulTransaction(ctx context.Context, orderID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.TransactionRecord{}).
		Where("order_id = ? AND status = ?", orderID, models.TxSuccess).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Settle inserts the settlement row and marks the order paid in one
// transaction. The unique index on order_settlements.order_id decides races.
func (s *SQL) Settle(ctx context.Context, st *models.Settlement) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(st).Error; err != nil {
			if isDuplicate(err) {
				return ErrAlreadySettled
			}
			return err
		}
		now := time.Now().UTC()
		res := tx.Model(&models.Order{}).
			Where("id = ?", st.OrderID).
			Updates(map[string]any{"status": models.OrderPaid, "paid_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Ping checks the database connection.
func (s *SQL) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysqldrv.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return true
	}
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	return false
}
