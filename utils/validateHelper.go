package utils

import (
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var validate = validator.New()

// ValidateStruct runs the `binding`/`validate` tags on an input struct for
// callers that do not go through gin binding (workflows, CLIs, tests).
func ValidateStruct(input interface{}) error {
	if err := validate.Struct(input); err != nil {
		return Validationf("%s", err.Error())
	}
	return nil
}

func init() {
	validate.SetTagName("binding")
}

// ValidateUnique checks no other row of T holds the same value in column.
// Pass exceptId=0 on create.
func ValidateUnique[T any](db *gorm.DB, column string, value interface{}, exceptId int) error {
	var model T
	var count int64
	q := db.Model(&model).Where(column+" = ?", value)
	if exceptId != 0 {
		q = q.Where("id <> ?", exceptId)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return Validationf("%s already in use", column)
	}
	return nil
}

// ValidateResourceId checks a row of T with the given id exists.
func ValidateResourceId[T any](db *gorm.DB, id interface{}) error {
	var model T
	var count int64
	if err := db.Model(&model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// FetchModel loads a row of T by id, preloading the named associations.
// (may return RecordNotFound)
func FetchModel[T any](db *gorm.DB, id int, associations ...string) (*T, error) {
	q := db
	for _, field := range associations {
		q = q.Preload(field)
	}
	var result T
	if err := q.First(&result, id).Error; err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}
