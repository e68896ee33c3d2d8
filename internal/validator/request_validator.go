package validator

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// リクエストDTOのvalidateタグを検証する。
// 違反はHandlerが400に変換する。
func Struct(i interface{}) error {
	return validate.Struct(i)
}
