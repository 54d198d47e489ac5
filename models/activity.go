package models

import (
	"time"

	"bitbucket.org/hslsolutions/erp_backend/utils"
	"gorm.io/gorm"
)

// ActivityTemplate is a checklist blueprint applied to an order when a
// trigger fires (confirmation, production start, delivery).
type ActivityTemplate struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	Trigger   ActivityTrigger `gorm:"size:30;not null;index" json:"trigger"`
	IsActive  *bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`

	Lines []ActivityTemplateLine `gorm:"foreignKey:TemplateId;constraint:OnDelete:CASCADE" json:"lines"`
}

type ActivityTemplateLine struct {
	ID         int    `gorm:"primary_key" json:"id"`
	TemplateId int    `gorm:"index;not null" json:"template_id"`
	Position   int    `gorm:"default:0" json:"position"`
	Title      string `gorm:"size:255;not null" json:"title"`
	DueInDays  int    `gorm:"default:0" json:"due_in_days"`
	AssigneeId *int   `json:"assignee_id"`
}

// Activity is one task instantiated from a template line.
type Activity struct {
	ID          int            `gorm:"primary_key" json:"id"`
	OrderId     int            `gorm:"index;not null" json:"order_id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Status      ActivityStatus `gorm:"size:20;not null;default:todo;index" json:"status"`
	DueDate     *time.Time     `json:"due_date"`
	AssigneeId  *int           `gorm:"index" json:"assignee_id"`
	CompletedAt *time.Time     `json:"completed_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// ApplyActivityTemplates instantiates every active template matching the
// trigger onto the order.
func ApplyActivityTemplates(tx *gorm.DB, orderId int, trigger ActivityTrigger) error {
	var templates []ActivityTemplate
	err := tx.Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("`trigger` = ? AND is_active = ?", trigger, true).
		Find(&templates).Error
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, template := range templates {
		for _, line := range template.Lines {
			activity := Activity{
				OrderId:    orderId,
				Title:      line.Title,
				Status:     ActivityStatusTodo,
				AssigneeId: line.AssigneeId,
			}
			if line.DueInDays > 0 {
				due := now.AddDate(0, 0, line.DueInDays)
				activity.DueDate = &due
			}
			if err := tx.Create(&activity).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func CompleteActivity(db *gorm.DB, id int, actorId int) (*Activity, error) {
	activity, err := utils.FetchModel[Activity](db, id)
	if err != nil {
		return nil, err
	}
	if activity.Status == ActivityStatusDone {
		return nil, utils.Statef("activity %d already completed", id)
	}
	now := time.Now().UTC()
	activity.Status = ActivityStatusDone
	activity.CompletedAt = &now
	if err := db.Model(activity).Updates(map[string]interface{}{
		"status":       ActivityStatusDone,
		"completed_at": now,
	}).Error; err != nil {
		return nil, err
	}
	return activity, nil
}

func ListActivities(db *gorm.DB, orderId *int, status *ActivityStatus) ([]Activity, error) {
	var activities []Activity
	query := db.Order("due_date ASC, id ASC")
	if orderId != nil {
		query = query.Where("order_id = ?", *orderId)
	}
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if err := query.Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}
