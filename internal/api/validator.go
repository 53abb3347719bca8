package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator はEcho用のカスタムバリデーター
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator はJSONフィールド名でエラーを報告するバリデーターを作成する
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate はリクエストのバリデーションを実行する。検証エラーの詳細は details に入る
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describeFieldError(fe))
		}
		err = errors.New(strings.Join(msgs, "; "))
	}
	return echo.NewHTTPError(http.StatusBadRequest, "入力内容が不正です").SetInternal(err)
}

func describeFieldError(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag())
	}
	return fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
}
