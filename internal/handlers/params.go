package handlers

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"superstore-dashboard/internal/errors"
	"superstore-dashboard/internal/models"
	"superstore-dashboard/internal/pipeline"
	"superstore-dashboard/internal/services"
)

var validate = validator.New()

type CustomersRequest struct {
	Tier  string `query:"tier" default:"all" validate:"oneof=all high low"`
	Query string `query:"q" validate:"max=200"`
}

func (r CustomersRequest) params() services.CustomersParams {
	return services.CustomersParams{Tier: services.Tier(r.Tier), Query: r.Query}
}

type ProductsRequest struct {
	Category      string   `query:"product_category" validate:"max=200"`
	SubCategories []string `query:"subcategory" validate:"max=100,dive,max=200"`
	Query         string   `query:"q" validate:"max=200"`
}

func (r ProductsRequest) params() services.ProductsParams {
	return services.ProductsParams{Category: r.Category, SubCategories: r.SubCategories, Query: r.Query}
}

type TrendsRequest struct {
	Granularity string `query:"granularity" default:"month" validate:"oneof=month quarter year"`
}

type CategoryRequest struct {
	Query string `query:"q" validate:"max=200"`
}

// ForecastRequest leaves Horizon zero when absent so the configured default
// applies.
type ForecastRequest struct {
	Dimension string `query:"dimension" default:"region" validate:"oneof=region category segment"`
	Value     string `query:"value" validate:"max=200"`
	Horizon   int    `query:"horizon" validate:"omitempty,min=3,max=12"`
}

func (r ForecastRequest) params() services.ForecastParams {
	return services.ForecastParams{
		Dimension: models.Dimension(r.Dimension),
		Value:     r.Value,
		Horizon:   r.Horizon,
	}
}

// bindQuery copies query values into the fields of req tagged with query,
// applies default tags, then validates.
func bindQuery(q url.Values, req any) error {
	v := reflect.ValueOf(req).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Tag.Get("query")
		if name == "" || !q.Has(name) {
			continue
		}
		field := v.Field(i)
		switch field.Kind() {
		case reflect.String:
			field.SetString(strings.TrimSpace(q.Get(name)))
		case reflect.Int:
			raw := strings.TrimSpace(q.Get(name))
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				return errors.Validation(fmt.Sprintf("%s must be a whole number", name)).WithDetails(raw)
			}
			field.SetInt(int64(n))
		case reflect.Slice:
			field.Set(reflect.ValueOf(nonEmpty(q[name])))
		}
	}

	if err := defaults.Set(req); err != nil {
		return errors.InternalWrap(err, "failed to apply parameter defaults")
	}

	if err := validate.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if stderrors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			fe := fieldErrors[0]
			return errors.ValidationWrap(err, validationMessage(queryName(t, fe.StructField()), fe))
		}
		return errors.ValidationWrap(err, "invalid parameters")
	}
	return nil
}

func queryName(t reflect.Type, field string) string {
	if f, ok := t.FieldByName(field); ok {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
	}
	return field
}

func validationMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s accepts at most %s values", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// parseCriteria reads the sidebar filters. An absent dimension parameter
// selects every value; a present parameter selects exactly the non-empty
// values given, so "region=" selects nothing.
func parseCriteria(q url.Values, all models.FilterCriteria) (models.FilterCriteria, error) {
	c := all
	if q.Has("region") {
		c.Regions = nonEmpty(q["region"])
	}
	if q.Has("category") {
		c.Categories = nonEmpty(q["category"])
	}
	if q.Has("segment") {
		c.Segments = nonEmpty(q["segment"])
	}

	var err error
	if c.Start, err = parseDateParam(q, "start", all.Start); err != nil {
		return c, err
	}
	if c.End, err = parseDateParam(q, "end", all.End); err != nil {
		return c, err
	}
	return c, nil
}

func parseDateParam(q url.Values, name string, fallback time.Time) (time.Time, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, errors.ValidationWrap(err, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", name)).WithDetails(raw)
	}
	return t, nil
}

func parseGranularity(raw string) (pipeline.Granularity, error) {
	g, err := pipeline.ParseGranularity(raw)
	if err != nil {
		return "", errors.ValidationWrap(err, "granularity must be one of: month, quarter, year")
	}
	return g, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
