package repository

import (
	ruledomain "labeler-backend/internal/rule/domain"

	"gorm.io/gorm"
)

type RuleRepository interface {
	List() ([]ruledomain.Rule, error)
	// ListForAccount returns rules scoped to the account plus global rules,
	// ordered by sort_order then id.
	ListForAccount(accountID uint) ([]ruledomain.Rule, error)
	ListActiveForAccount(accountID uint) ([]ruledomain.Rule, error)
	FindByID(id uint) (*ruledomain.Rule, error)
	Create(rule *ruledomain.Rule) error
	Update(rule *ruledomain.Rule) error
	Reorder(orderedIDs []uint) error
	Delete(id uint) error
}

type ruleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) List() ([]ruledomain.Rule, error) {
	var rules []ruledomain.Rule
	err := r.db.Order("sort_order ASC, id ASC").Find(&rules).Error
	return rules, err
}

func (r *ruleRepository) ListForAccount(accountID uint) ([]ruledomain.Rule, error) {
	var rules []ruledomain.Rule
	err := r.db.Where("account_id = ? OR account_id IS NULL", accountID).
		Order("sort_order ASC, id ASC").Find(&rules).Error
	return rules, err
}

func (r *ruleRepository) ListActiveForAccount(accountID uint) ([]ruledomain.Rule, error) {
	var rules []ruledomain.Rule
	err := r.db.Where("(account_id = ? OR account_id IS NULL) AND active = ?", accountID, true).
		Order("sort_order ASC, id ASC").Find(&rules).Error
	return rules, err
}

func (r *ruleRepository) FindByID(id uint) (*ruledomain.Rule, error) {
	var rule ruledomain.Rule
	if err := r.db.First(&rule, id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// Create appends the rule at the end of the evaluation order.
func (r *ruleRepository) Create(rule *ruledomain.Rule) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var maxOrder int
		if err := tx.Model(&ruledomain.Rule{}).
			Select("COALESCE(MAX(sort_order), 0)").Scan(&maxOrder).Error; err != nil {
			return err
		}
		rule.SortOrder = maxOrder + 1
		return tx.Create(rule).Error
	})
}

func (r *ruleRepository) Update(rule *ruledomain.Rule) error {
	return r.db.Save(rule).Error
}

func (r *ruleRepository) Reorder(orderedIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for i, id := range orderedIDs {
			if err := tx.Model(&ruledomain.Rule{}).Where("id = ?", id).
				Update("sort_order", i).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ruleRepository) Delete(id uint) error {
	return r.db.Delete(&ruledomain.Rule{}, id).Error
}
