package models

import (
	"time"

	"bitbucket.org/hslsolutions/erp_backend/utils"
	"gorm.io/gorm"
)

// CodeMapping records a supplier catalog code remapped to an internal
// code. Kept as history so repeated imports of the supplier code keep
// resolving to the internal one.
type CodeMapping struct {
	ID           int       `gorm:"primary_key" json:"id"`
	SupplierCode string    `gorm:"size:100;uniqueIndex;not null" json:"supplier_code"`
	InternalCode string    `gorm:"size:100;not null;index" json:"internal_code"`
	Description  string    `gorm:"size:500" json:"description"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	CreatedById  int       `json:"created_by_id"`
}

// ResolveCode returns the internal code for a supplier code, or the
// input unchanged when no mapping exists.
func ResolveCode(db *gorm.DB, code string) (string, error) {
	var mapping CodeMapping
	err := db.Where("supplier_code = ?", code).First(&mapping).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return code, nil
		}
		return "", err
	}
	return mapping.InternalCode, nil
}

func UpsertCodeMapping(db *gorm.DB, supplierCode, internalCode, description string, actorId int) (*CodeMapping, error) {
	if supplierCode == "" || internalCode == "" {
		return nil, utils.Validationf("both supplier and internal code are required")
	}
	if supplierCode == internalCode {
		return nil, utils.Validationf("supplier and internal code are identical")
	}
	var mapping CodeMapping
	err := db.Where("supplier_code = ?", supplierCode).First(&mapping).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		mapping = CodeMapping{
			SupplierCode: supplierCode,
			InternalCode: internalCode,
			Description:  description,
			CreatedById:  actorId,
		}
		if err := db.Create(&mapping).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		mapping.InternalCode = internalCode
		mapping.Description = description
		if err := db.Save(&mapping).Error; err != nil {
			return nil, err
		}
	}
	return &mapping, nil
}

func ListCodeMappings(db *gorm.DB) ([]CodeMapping, error) {
	var mappings []CodeMapping
	if err := db.Order("supplier_code ASC").Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}
