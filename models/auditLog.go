package models

import (
	"time"

	"bitbucket.org/hslsolutions/erp_backend/config"
	"gorm.io/gorm"
)

// AuditLog records who did what to which document. Written best-effort
// inside the same transaction as the change it describes.
type AuditLog struct {
	ID         int       `gorm:"primary_key" json:"id"`
	EntityType string    `gorm:"size:50;not null;index:idx_audit_entity" json:"entity_type"`
	EntityId   int       `gorm:"not null;index:idx_audit_entity" json:"entity_id"`
	EntityRef  string    `gorm:"size:100" json:"entity_ref"`
	Action     string    `gorm:"size:50;not null" json:"action"`
	Detail     string    `gorm:"type:text" json:"detail"`
	ActorId    int       `gorm:"index" json:"actor_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// LogAudit never fails the caller's transaction; an audit insert error
// is logged and swallowed.
func LogAudit(tx *gorm.DB, entityType string, entityId int, entityRef, action, detail string, actorId int) {
	entry := AuditLog{
		EntityType: entityType,
		EntityId:   entityId,
		EntityRef:  entityRef,
		Action:     action,
		Detail:     detail,
		ActorId:    actorId,
	}
	if err := tx.Create(&entry).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "LogAudit", action, entityRef, err)
	}
}

func GetAuditTrail(db *gorm.DB, entityType string, entityId int) ([]AuditLog, error) {
	var entries []AuditLog
	err := db.Where("entity_type = ? AND entity_id = ?", entityType, entityId).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
