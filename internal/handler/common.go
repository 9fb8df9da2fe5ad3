package handler // HTTP handlers and response projections for the theatre API

import (
    "errors"
    "fmt"
    "net/http"
    "reflect"
    "strconv"
    "strings"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog/log"

    "github.com/iliyamo/theatre-service/internal/service"
)

// Validator adapts go-playground/validator to echo.Validator.  Errors are
// returned as *service.ValidationError keyed by JSON field name.
type Validator struct {
    v *validator.Validate
}

// NewValidator returns a Validator reporting JSON field names.
func NewValidator() *Validator {
    v := validator.New(validator.WithRequiredStructEnabled())
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" || name == "" {
            return f.Name
        }
        return name
    })
    return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i any) error {
    err := cv.v.Struct(i)
    if err == nil {
        return nil
    }
    var fieldErrs validator.ValidationErrors
    if !errors.As(err, &fieldErrs) {
        return err
    }
    out := &service.ValidationError{}
    for _, fe := range fieldErrs {
        out.Add(fieldPath(fe), fieldMessage(fe))
    }
    return out
}

// fieldPath drops the top-level struct name: "playReq.title" -> "title".
func fieldPath(fe validator.FieldError) string {
    ns := fe.Namespace()
    if i := strings.Index(ns, "."); i >= 0 {
        return ns[i+1:]
    }
    return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
    switch fe.Tag() {
    case "required":
        return "This field is required."
    case "email":
        return "Enter a valid email address."
    case "max", "lte":
        if fe.Kind() == reflect.String {
            return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
        }
        return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
    case "min", "gte":
        switch fe.Kind() {
        case reflect.String:
            return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
        case reflect.Slice:
            return fmt.Sprintf("Ensure this list has at least %s elements.", fe.Param())
        }
        return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
    }
    return "Invalid value."
}

// errMalformedBody is returned by bindAndValidate when the body cannot be
// decoded at all.
var errMalformedBody = errors.New("malformed request body")

// bindAndValidate decodes the body into req and validates it.  Errors are
// meant for respondError.
func bindAndValidate(c echo.Context, req any) error {
    if err := c.Bind(req); err != nil {
        return fmt.Errorf("%w: %v", errMalformedBody, err)
    }
    return c.Validate(req)
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}

var notFound = echo.Map{"detail": "Not found."}

// respondError maps service errors onto HTTP responses.  Unknown errors are
// logged and reported as 500 without details.
func respondError(c echo.Context, err error) error {
    var verr *service.ValidationError
    switch {
    case errors.As(err, &verr):
        return c.JSON(http.StatusBadRequest, verr.Fields)
    case errors.Is(err, errMalformedBody):
        return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request body."})
    case errors.Is(err, service.ErrNotFound):
        return c.JSON(http.StatusNotFound, notFound)
    case errors.Is(err, service.ErrInvalidCredentials):
        return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "No active account found with the given credentials"})
    case errors.Is(err, service.ErrInvalidToken):
        return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Token is invalid or expired"})
    }
    log.Ctx(c.Request().Context()).Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
    return c.JSON(http.StatusInternalServerError, echo.Map{"detail": "A server error occurred."})
}
