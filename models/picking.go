package models

import (
	"time"

	"bitbucket.org/hslsolutions/erp_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Picking is the warehouse worklist generated for one order: which
// codes to collect, from which suggested cells.
type Picking struct {
	ID          int           `gorm:"primary_key" json:"id"`
	Number      string        `gorm:"size:50;uniqueIndex;not null" json:"number"`
	OrderId     int           `gorm:"index;not null" json:"order_id"`
	Order       *Order        `json:"order,omitempty"`
	WarehouseId int           `gorm:"index;not null" json:"warehouse_id"`
	Status      PickingStatus `gorm:"size:20;not null;default:new;index" json:"status"`
	StartedAt   *time.Time    `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
	CreatedById int           `json:"created_by_id"`

	Lines []PickingLine `gorm:"constraint:OnDelete:CASCADE" json:"lines"`
}

type PickingLine struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PickingId       int             `gorm:"index;not null" json:"picking_id"`
	Position        int             `gorm:"default:0" json:"position"`
	Code            string          `gorm:"size:100;not null" json:"code"`
	Name            string          `gorm:"size:500" json:"name"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	AvailableAtGen  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"available_at_gen"`
	SuggestedCellId *int            `json:"suggested_cell_id"`
	SuggestedCell   *WarehouseCell  `json:"suggested_cell,omitempty"`
	PickedCellId    *int            `json:"picked_cell_id"`
	Picked          *bool           `gorm:"default:false" json:"picked"`
	PickedAt        *time.Time      `json:"picked_at"`
	PickedById      *int            `json:"picked_by_id"`
}

func (l *PickingLine) IsPicked() bool {
	return l.Picked != nil && *l.Picked
}

// Progress counts picked lines against the total.
func (p *Picking) Progress() (picked, total int) {
	total = len(p.Lines)
	for i := range p.Lines {
		if p.Lines[i].IsPicked() {
			picked++
		}
	}
	return picked, total
}

func (p *Picking) AllPicked() bool {
	picked, total := p.Progress()
	return total > 0 && picked == total
}

// DeliveryNote closes the loop: goods left the warehouse for the order.
type DeliveryNote struct {
	ID           int        `gorm:"primary_key" json:"id"`
	Number       string     `gorm:"size:50;uniqueIndex;not null" json:"number"`
	PickingId    int        `gorm:"uniqueIndex;not null" json:"picking_id"`
	Picking      *Picking   `json:"picking,omitempty"`
	OrderId      int        `gorm:"index;not null" json:"order_id"`
	DeliveryDate time.Time  `gorm:"not null" json:"delivery_date"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	CreatedById  int        `json:"created_by_id"`
}

func GetPicking(db *gorm.DB, id int) (*Picking, error) {
	return utils.FetchModel[Picking](db, id, "Lines", "Lines.SuggestedCell", "Order")
}

func ListPickings(db *gorm.DB, status *PickingStatus) ([]Picking, error) {
	var pickings []Picking
	query := db.Preload("Order").Order("created_at DESC, id DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if err := query.Find(&pickings).Error; err != nil {
		return nil, err
	}
	return pickings, nil
}

// ActivePickingForOrder finds a picking still in flight for the order.
func ActivePickingForOrder(db *gorm.DB, orderId int) (*Picking, error) {
	var picking Picking
	err := db.Where("order_id = ? AND status IN ?", orderId,
		[]string{string(PickingStatusNew), string(PickingStatusInProgress), string(PickingStatusComplete)}).
		First(&picking).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &picking, nil
}
