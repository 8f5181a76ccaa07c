package repository

import (
	"time"

	accountdomain "labeler-backend/internal/account/domain"
	scandomain "labeler-backend/internal/scan/domain"

	"gorm.io/gorm"
)

type AccountRepository interface {
	List() ([]accountdomain.Account, error)
	ListActive() ([]accountdomain.Account, error)
	FindByID(id uint) (*accountdomain.Account, error)
	FindByEmail(email string) (*accountdomain.Account, error)
	Upsert(email, credentialsJSON string) (*accountdomain.Account, error)
	UpdateCredentials(id uint, credentialsJSON string) error
	UpdateLastScan(id uint, at time.Time) error
	SetActive(id uint, active bool) error
	// Delete removes the account together with its processed-email markers in
	// one transaction.
	Delete(id uint) error
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) List() ([]accountdomain.Account, error) {
	var accounts []accountdomain.Account
	err := r.db.Order("created_at DESC").Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) ListActive() ([]accountdomain.Account, error) {
	var accounts []accountdomain.Account
	err := r.db.Where("active = ?", true).Order("created_at DESC").Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) FindByID(id uint) (*accountdomain.Account, error) {
	var account accountdomain.Account
	if err := r.db.First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByEmail(email string) (*accountdomain.Account, error) {
	var account accountdomain.Account
	if err := r.db.Where("email = ?", email).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// Upsert inserts a new account or, when the address is already connected,
// replaces its credentials and reactivates it.
func (r *accountRepository) Upsert(email, credentialsJSON string) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := r.db.Where("email = ?", email).First(&account).Error
	if err == gorm.ErrRecordNotFound {
		account = accountdomain.Account{
			Email:           email,
			CredentialsJSON: credentialsJSON,
			Active:          true,
		}
		if err := r.db.Create(&account).Error; err != nil {
			return nil, err
		}
		return &account, nil
	} else if err != nil {
		return nil, err
	}

	account.CredentialsJSON = credentialsJSON
	account.Active = true
	if err := r.db.Save(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) UpdateCredentials(id uint, credentialsJSON string) error {
	return r.db.Model(&accountdomain.Account{}).Where("id = ?", id).
		Update("credentials_json", credentialsJSON).Error
}

func (r *accountRepository) UpdateLastScan(id uint, at time.Time) error {
	return r.db.Model(&accountdomain.Account{}).Where("id = ?", id).
		Update("last_scan_at", at).Error
}

func (r *accountRepository) SetActive(id uint, active bool) error {
	return r.db.Model(&accountdomain.Account{}).Where("id = ?", id).
		Update("active", active).Error
}

func (r *accountRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).
			Delete(&scandomain.ProcessedEmail{}).Error; err != nil {
			return err
		}
		return tx.Delete(&accountdomain.Account{}, id).Error
	})
}
