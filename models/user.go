package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/hslsolutions/erp_backend/utils"
	"gorm.io/gorm"
)

// PermissionSet maps module key -> allowed. Stored as JSON text so roles stay
// a single row; the type is explicit rather than an opaque blob.
type PermissionSet map[string]bool

func (p PermissionSet) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *PermissionSet) Scan(value interface{}) error {
	if value == nil {
		*p = PermissionSet{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported type for PermissionSet")
	}
	if len(raw) == 0 {
		*p = PermissionSet{}
		return nil
	}
	return json.Unmarshal(raw, p)
}

type Role struct {
	ID               int           `gorm:"primary_key" json:"id"`
	Name             string        `gorm:"size:80;uniqueIndex;not null" json:"name" binding:"required"`
	Description      string        `gorm:"size:200" json:"description"`
	Permissions      PermissionSet `gorm:"type:text" json:"permissions"`
	OwnDocumentsOnly *bool         `gorm:"not null;default:true" json:"own_documents_only"`
	IsSystem         *bool         `gorm:"not null;default:false" json:"is_system"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// HasAccess reports whether the role grants a module. System roles see everything.
func (r *Role) HasAccess(module string) bool {
	if r.IsSystem != nil && *r.IsSystem {
		return true
	}
	return r.Permissions[module]
}

type User struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Username     string    `gorm:"size:80;uniqueIndex;not null" json:"username" binding:"required"`
	Email        string    `gorm:"size:120;uniqueIndex;not null" json:"email" binding:"required"`
	PasswordHash string    `gorm:"size:256;not null" json:"-"`
	FullName     string    `gorm:"size:200;not null" json:"full_name" binding:"required"`
	Phone        string    `gorm:"size:20" json:"phone"`
	RoleId       int       `gorm:"index" json:"role_id"`
	Role         *Role     `json:"role,omitempty"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (u *User) SetPassword(pw string) error {
	hashed, err := utils.HashPassword(pw)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashed)
	return nil
}

func (u *User) CheckPassword(pw string) bool {
	return utils.ComparePassword(u.PasswordHash, pw) == nil
}

func (u *User) IsAdmin() bool {
	return u.Role != nil && u.Role.IsSystem != nil && *u.Role.IsSystem
}

func (u *User) HasAccess(module string) bool {
	if u.Role == nil {
		return false
	}
	return u.Role.HasAccess(module)
}

type NewUser struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone"`
	RoleId   int    `json:"role_id" binding:"required"`
}

func CreateUser(db *gorm.DB, input *NewUser) (*User, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[User](db, "username", input.Username, 0); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[User](db, "email", input.Email, 0); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Role](db, input.RoleId); err != nil {
		return nil, utils.Resourcef("role %d not found", input.RoleId)
	}

	user := User{
		Username: input.Username,
		Email:    input.Email,
		FullName: input.FullName,
		Phone:    input.Phone,
		RoleId:   input.RoleId,
		IsActive: utils.NewTrue(),
	}
	if err := user.SetPassword(input.Password); err != nil {
		return nil, err
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// AuthenticateUser verifies credentials and returns the user with its role.
func AuthenticateUser(db *gorm.DB, username, password string) (*User, error) {
	var user User
	err := db.Preload("Role").Where("username = ? AND is_active = ?", username, true).First(&user).Error
	if err != nil {
		return nil, utils.Authorizationf("invalid credentials")
	}
	if !user.CheckPassword(password) {
		return nil, utils.Authorizationf("invalid credentials")
	}
	return &user, nil
}

func GetUser(db *gorm.DB, id int) (*User, error) {
	return utils.FetchModel[User](db, id, "Role")
}
