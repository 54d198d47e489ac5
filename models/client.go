package models

import (
	"strings"
	"time"

	"bitbucket.org/hslsolutions/erp_backend/utils"
	"gorm.io/gorm"
)

type ClientKind string

const (
	ClientKindCompany ClientKind = "company"
	ClientKindPerson  ClientKind = "person"
)

type Client struct {
	ID int `gorm:"primary_key" json:"id"`
	// Identity
	Name           string     `gorm:"size:200;not null" json:"name" binding:"required"`
	Kind           ClientKind `gorm:"size:20;default:company" json:"kind"`
	TaxId          string     `gorm:"size:20;uniqueIndex;default:null" json:"tax_id"`
	TradeRegNumber string     `gorm:"size:50" json:"trade_reg_number"`
	// Contact
	Email          string `gorm:"size:120" json:"email"`
	Phone          string `gorm:"size:20" json:"phone"`
	SecondaryPhone string `gorm:"size:20" json:"secondary_phone"`
	ContactPerson  string `gorm:"size:200" json:"contact_person"`
	// Address
	Address    string `gorm:"type:text" json:"address"`
	City       string `gorm:"size:100" json:"city"`
	County     string `gorm:"size:100" json:"county"`
	PostalCode string `gorm:"size:10" json:"postal_code"`
	Country    string `gorm:"size:100;default:Romania" json:"country"`
	// Banking
	Bank string `gorm:"size:200" json:"bank"`
	IBAN string `gorm:"size:34" json:"iban"`
	// Status
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewClient struct {
	Name           string     `json:"name" binding:"required"`
	Kind           ClientKind `json:"kind"`
	TaxId          string     `json:"tax_id"`
	TradeRegNumber string     `json:"trade_reg_number"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	SecondaryPhone string     `json:"secondary_phone"`
	ContactPerson  string     `json:"contact_person"`
	Address        string     `json:"address"`
	City           string     `json:"city"`
	County         string     `json:"county"`
	PostalCode     string     `json:"postal_code"`
	Country        string     `json:"country"`
	Bank           string     `json:"bank"`
	IBAN           string     `json:"iban"`
	Notes          string     `json:"notes"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewClient) validate(db *gorm.DB, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if strings.TrimSpace(input.TaxId) != "" {
		if err := utils.ValidateUnique[Client](db, "tax_id", input.TaxId, id); err != nil {
			return err
		}
	}
	return nil
}

func (input *NewClient) apply(c *Client) {
	kind := input.Kind
	if kind == "" {
		kind = ClientKindCompany
	}
	c.Name = input.Name
	c.Kind = kind
	c.TaxId = input.TaxId
	c.TradeRegNumber = input.TradeRegNumber
	c.Email = input.Email
	c.Phone = input.Phone
	c.SecondaryPhone = input.SecondaryPhone
	c.ContactPerson = input.ContactPerson
	c.Address = input.Address
	c.City = input.City
	c.County = input.County
	c.PostalCode = input.PostalCode
	c.Country = input.Country
	c.Bank = input.Bank
	c.IBAN = input.IBAN
	c.Notes = input.Notes
}

func CreateClient(db *gorm.DB, input *NewClient) (*Client, error) {
	if err := input.validate(db, 0); err != nil {
		return nil, err
	}
	client := Client{IsActive: utils.NewTrue()}
	input.apply(&client)
	if err := db.Create(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func UpdateClient(db *gorm.DB, id int, input *NewClient) (*Client, error) {
	if err := input.validate(db, id); err != nil {
		return nil, err
	}
	client, err := utils.FetchModel[Client](db, id)
	if err != nil {
		return nil, err
	}
	input.apply(client)
	if err := db.Save(client).Error; err != nil {
		return nil, err
	}
	return client, nil
}

func DeleteClient(db *gorm.DB, id int) (*Client, error) {
	client, err := utils.FetchModel[Client](db, id)
	if err != nil {
		return nil, err
	}
	// check if client has documents
	var count int64
	if err := db.Model(&Invoice{}).Where("client_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.Resourcef("client has invoices")
	}
	if err := db.Delete(client).Error; err != nil {
		return nil, err
	}
	return client, nil
}

func GetClient(db *gorm.DB, id int) (*Client, error) {
	return utils.FetchModel[Client](db, id)
}

func ListClients(db *gorm.DB, name *string) ([]*Client, error) {
	var results []*Client
	q := db.Order("name")
	if name != nil && len(*name) > 0 {
		q = q.Where("name LIKE ?", "%"+*name+"%")
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
