package controllers

import (
	"civicfix-be/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs custom binding validators on gin's validator
// engine. Call once at startup before serving requests.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("issuestatus", func(fl validator.FieldLevel) bool {
			_, ok := models.NormalizeStatus(fl.Field().String())
			return ok
		})
	}
}
