package database

import (
	"gorm.io/gorm"

	"github.com/aditya93941/project-management/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Task{},
		&models.PermissionRequest{},
		&models.TemporaryPermission{},
		&models.EODReport{},
		&models.EODTask{},
		&models.Notification{},
		&models.CacheEntry{},
	)
}
