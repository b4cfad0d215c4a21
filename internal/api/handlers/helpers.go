package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

func writeError(status int, msg string) error {
	return echo.NewHTTPError(status, msg)
}

// bindAndValidate decodes the body into v and applies its validate tags.
func bindAndValidate(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return writeError(http.StatusBadRequest, "invalid JSON body")
	}
	if err := c.Validate(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return writeError(http.StatusBadRequest, fmt.Sprintf("invalid %s: failed %s", fe.Field(), fe.Tag()))
		}
		return writeError(http.StatusBadRequest, err.Error())
	}
	return nil
}
