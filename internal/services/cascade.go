package services

import (
	"gorm.io/gorm"

	"civicbudget/internal/models"
)

// Rows are hard-deleted, so every owner removes its dependents explicitly and
// inside the caller's transaction.

func projectIDsWhere(tx *gorm.DB, query string, args ...interface{}) ([]string, error) {
	var ids []string
	err := tx.Model(&models.BudgetProject{}).Where(query, args...).Pluck("id", &ids).Error
	return ids, err
}

// deleteProjects removes projects together with their votes and impact metrics.
func deleteProjects(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("project_id IN ?", ids).Delete(&models.Vote{}).Error; err != nil {
		return err
	}
	if err := tx.Where("project_id IN ?", ids).Delete(&models.ImpactMetric{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.BudgetProject{}).Error
}

// deleteVotesWhere removes matching votes and recounts every project they touched.
func deleteVotesWhere(tx *gorm.DB, query string, args ...interface{}) error {
	var touched []string
	if err := tx.Model(&models.Vote{}).Where(query, args...).Distinct().Pluck("project_id", &touched).Error; err != nil {
		return err
	}
	if len(touched) == 0 {
		return nil
	}
	if err := tx.Where(query, args...).Delete(&models.Vote{}).Error; err != nil {
		return err
	}
	for _, id := range touched {
		if _, err := refreshVoteCount(tx, id); err != nil {
			return err
		}
	}
	return nil
}
