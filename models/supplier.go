package models

import (
	"time"

	"bitbucket.org/hslsolutions/erp_backend/utils"
	"gorm.io/gorm"
)

type Supplier struct {
	ID            int       `gorm:"primary_key" json:"id"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	TaxId         string    `gorm:"size:20;uniqueIndex;default:null" json:"tax_id"`
	ContactPerson string    `gorm:"size:255" json:"contact_person"`
	Email         string    `gorm:"size:255" json:"email"`
	Phone         string    `gorm:"size:50" json:"phone"`
	Address       string    `gorm:"size:500" json:"address"`
	Country       string    `gorm:"size:100" json:"country"`
	IsActive      *bool     `gorm:"default:true" json:"is_active"`
	Notes         string    `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name          string `json:"name" binding:"required"`
	TaxId         string `json:"tax_id"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	Country       string `json:"country"`
	Notes         string `json:"notes"`
}

func (input *NewSupplier) validate(db *gorm.DB, exceptId int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.TaxId != "" {
		if err := utils.ValidateUnique[Supplier](db, "tax_id", input.TaxId, exceptId); err != nil {
			return utils.Validationf("supplier tax id %s already registered", input.TaxId)
		}
	}
	return nil
}

func (input *NewSupplier) apply(s *Supplier) {
	s.Name = input.Name
	s.TaxId = input.TaxId
	s.ContactPerson = input.ContactPerson
	s.Email = input.Email
	s.Phone = input.Phone
	s.Address = input.Address
	s.Country = input.Country
	s.Notes = input.Notes
}

func CreateSupplier(db *gorm.DB, input *NewSupplier) (*Supplier, error) {
	if err := input.validate(db, 0); err != nil {
		return nil, err
	}
	supplier := Supplier{IsActive: utils.NewTrue()}
	input.apply(&supplier)
	if err := db.Create(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func UpdateSupplier(db *gorm.DB, id int, input *NewSupplier) (*Supplier, error) {
	supplier, err := utils.FetchModel[Supplier](db, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(db, id); err != nil {
		return nil, err
	}
	input.apply(supplier)
	if err := db.Save(supplier).Error; err != nil {
		return nil, err
	}
	return supplier, nil
}

func DeleteSupplier(db *gorm.DB, id int) error {
	supplier, err := utils.FetchModel[Supplier](db, id)
	if err != nil {
		return err
	}
	var receipts int64
	if err := db.Model(&GoodsReceipt{}).Where("supplier_id = ?", id).Count(&receipts).Error; err != nil {
		return err
	}
	if receipts > 0 {
		return utils.Resourcef("supplier %s has goods receipts", supplier.Name)
	}
	return db.Delete(supplier).Error
}

func GetSupplier(db *gorm.DB, id int) (*Supplier, error) {
	return utils.FetchModel[Supplier](db, id)
}

func ListSuppliers(db *gorm.DB, name *string) ([]Supplier, error) {
	var suppliers []Supplier
	query := db.Order("name ASC")
	if name != nil && *name != "" {
		query = query.Where("name LIKE ?", "%"+*name+"%")
	}
	if err := query.Find(&suppliers).Error; err != nil {
		return nil, err
	}
	return suppliers, nil
}
