package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// Validation modes, one per command family.
const (
	ModePipeline = "pipeline"
	ModeFetch    = "fetch"
	ModeServe    = "serve"
	ModeStatus   = "status"
)

// ValidationError lists every invalid configuration item by key.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "config: invalid configuration: " + strings.Join(e.Problems, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report keys the way they are written in config.yaml.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the configuration for the given mode and fails fast,
// naming every invalid key. Threshold ordering and store settings are
// checked on top of the struct tags.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case ModePipeline, ModeFetch, ModeServe, ModeStatus:
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return eris.Wrap(err, "config: validate")
		}
		for _, fe := range verrs {
			errs = append(errs, fieldProblem(fe))
		}
	}

	r := c.Resolve
	if r.DiscardThreshold > r.WideNetThreshold {
		errs = append(errs, "resolve.discard_threshold must be <= resolve.wide_net_threshold")
	}
	if r.WideNetThreshold > r.SimilarityThreshold {
		errs = append(errs, "resolve.wide_net_threshold must be <= resolve.similarity_threshold")
	}
	if r.MergeThreshold < r.DiscardThreshold {
		errs = append(errs, "resolve.merge_threshold must be >= resolve.discard_threshold")
	}

	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" && mode != ModeFetch {
		errs = append(errs, "store.database_url is required when store.driver is postgres")
	}

	if mode == ModeServe && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, "server.port must be > 0 and <= 65535")
	}

	if len(errs) > 0 {
		return &ValidationError{Problems: errs}
	}
	return nil
}

func fieldProblem(fe validator.FieldError) string {
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", key)
	case "min":
		return fmt.Sprintf("%s must be >= %s (got %v)", key, fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be <= %s (got %v)", key, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got %v)", key, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s=%s (got %v)", key, fe.Tag(), fe.Param(), fe.Value())
	}
}
