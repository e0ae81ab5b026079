package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"receipt2ledger/models"
	"receipt2ledger/pkg/ocr"
	"receipt2ledger/pkg/receipt"
)

// NewReceipt turns a pipeline result into an outbox row.
func NewReceipt(userID uint, uploadID *uint, res *receipt.Result) (*models.Receipt, error) {
	tx := res.Transaction
	amt, err := tx.AmountDecimal()
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	row := &models.Receipt{
		UserID:               userID,
		UploadID:             uploadID,
		Description:          tx.Description,
		Amount:               amt,
		CurrencySymbol:       tx.CurrencySymbol,
		CurrencyCode:         res.CurrencyCode,
		ForeignCurrencyCode:  res.ForeignCurrencyCode,
		OccurredAt:           tx.DateTime,
		LedgerDate:           res.LedgerDate,
		CardIdentifier:       tx.CardIdentifier,
		TransactionNumber:    tx.TransactionNumber,
		MerchantCategoryCode: tx.MerchantCategoryCode,
		Warnings:             strings.Join(res.Warnings, "; "),
		LedgerStatus:         models.LedgerPending,
	}
	if tx.ForeignAmount != "" {
		fa, err := decimal.NewFromString(tx.ForeignAmount)
		if err != nil {
			return nil, fmt.Errorf("foreign amount: %w", err)
		}
		row.ForeignAmount = decimal.NewNullDecimal(fa)
	}
	return row, nil
}

// SaveReceipt stores res for userID. A transaction number that is already
// stored is not inserted again and duplicate is set. The existing row is
// returned, and the upload linked to it, only when userID owns it; another
// user's duplicate comes back as a nil row.
func (s *Store) SaveReceipt(userID uint, uploadID *uint, res *receipt.Result) (row *models.Receipt, duplicate bool, err error) {
	row, err = NewReceipt(userID, uploadID, res)
	if err != nil {
		return nil, false, err
	}
	err = s.db.Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, gerr := s.ReceiptByTransaction(row.TransactionNumber)
		if gerr != nil {
			return nil, false, fmt.Errorf("load duplicate %s: %w", row.TransactionNumber, gerr)
		}
		l := s.log.Info().Str("txn", row.TransactionNumber).Uint("user_id", userID)
		if existing.UserID != userID {
			l.Msg("duplicate transaction owned by another user")
			return nil, true, nil
		}
		l.Uint("receipt_id", existing.ID).Msg("duplicate transaction")
		s.linkUpload(uploadID, existing.ID)
		return existing, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	s.linkUpload(uploadID, row.ID)
	return row, false, nil
}

func (s *Store) linkUpload(uploadID *uint, receiptID uint) {
	if uploadID == nil {
		return
	}
	if err := s.db.Model(&models.Upload{}).Where("id = ?", *uploadID).Update("receipt_id", receiptID).Error; err != nil {
		s.log.Warn().Err(err).Uint("upload_id", *uploadID).Msg("link upload to receipt failed")
	}
}

func (s *Store) ReceiptByTransaction(number string) (*models.Receipt, error) {
	var r models.Receipt
	if err := s.db.Where("transaction_number = ?", number).First(&r).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *Store) GetReceipt(id uint) (*models.Receipt, error) {
	var r models.Receipt
	if err := s.db.First(&r, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// ListReceipts returns newest first. userID 0 lists every user's receipts.
func (s *Store) ListReceipts(userID uint, limit int) ([]models.Receipt, error) {
	q := s.db.Order("occurred_at desc, id desc")
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Receipt
	return out, q.Find(&out).Error
}

// ReceiptsBetween returns a user's receipts with from <= occurred_at < to, oldest first.
func (s *Store) ReceiptsBetween(userID uint, from, to time.Time) ([]models.Receipt, error) {
	var out []models.Receipt
	err := s.db.Where("user_id = ? AND occurred_at >= ? AND occurred_at < ?", userID, from, to).
		Order("occurred_at asc, id asc").Find(&out).Error
	return out, err
}

// PendingReceipts is the ledger outbox, oldest first.
func (s *Store) PendingReceipts(limit int) ([]models.Receipt, error) {
	q := s.db.Where("ledger_status = ?", models.LedgerPending).Order("id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Receipt
	return out, q.Find(&out).Error
}

// MarkPosted records that the ledger accepted receipt id under ref.
func (s *Store) MarkPosted(id uint, ref string, at time.Time) error {
	res := s.db.Model(&models.Receipt{}).Where("id = ?", id).Updates(map[string]any{
		"ledger_status": models.LedgerPosted,
		"ledger_ref":    ref,
		"posted_at":     at.UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveUpload inserts u.
func (s *Store) SaveUpload(u *models.Upload) error {
	return s.db.Create(u).Error
}

// MarkUploadFailed keeps the upload for review with a short reason.
func (s *Store) MarkUploadFailed(id uint, reason string) error {
	reason = ocr.Snippet(reason, 200)
	return s.db.Model(&models.Upload{}).Where("id = ?", id).
		Updates(map[string]any{"failed": true, "failed_reason": reason}).Error
}

// FailedUploads returns uploads marked failed, oldest first. userID 0 means all users.
func (s *Store) FailedUploads(userID uint, limit int) ([]models.Upload, error) {
	q := s.db.Where("failed = ?", true).Order("id asc")
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Upload
	return out, q.Find(&out).Error
}

// ClearUploadFailure resets the failure flag after a successful retry.
func (s *Store) ClearUploadFailure(id uint) error {
	return s.db.Model(&models.Upload{}).Where("id = ?", id).
		Updates(map[string]any{"failed": false, "failed_reason": ""}).Error
}
