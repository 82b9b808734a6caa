package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their config key instead of the Go name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct tags and the rules that span several fields.
// Every problem is reported, not just the first.
func Validate(cfg *Config) error {
	var errs []error

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fieldError(fe))
			}
		} else {
			errs = append(errs, err)
		}
	}

	errs = append(errs, validateStore(&cfg.Store)...)

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.profiling.endpoint is required when profiling is enabled"))
	}

	if cfg.Metrics.Enabled && cfg.API.IsEnabled() && cfg.Metrics.Port == cfg.API.Port {
		errs = append(errs, fmt.Errorf("metrics.port and api.port are both %d", cfg.Metrics.Port))
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Server.Port {
		errs = append(errs, fmt.Errorf("metrics.port and server.port are both %d", cfg.Metrics.Port))
	}

	return errors.Join(errs...)
}

func validateStore(cfg *StoreConfig) []error {
	var errs []error
	switch cfg.Type {
	case StoreSQLite:
		if cfg.SQLite.Path == "" {
			errs = append(errs, errors.New("store.sqlite.path is required"))
		}
	case StoreBadger:
		if cfg.Badger.Path == "" {
			errs = append(errs, errors.New("store.badger.path is required"))
		}
	case StorePostgres:
		required := []struct{ key, value string }{
			{"host", cfg.Postgres.Host},
			{"database", cfg.Postgres.Database},
			{"user", cfg.Postgres.User},
		}
		for _, r := range required {
			if r.value == "" {
				errs = append(errs, fmt.Errorf("store.postgres.%s is required", r.key))
			}
		}
	}
	return errs
}

// fieldError turns a validator failure into a config-key message, e.g.
// "logging.level: must satisfy 'oneof=...' (got \"TRACE\")".
func fieldError(fe validator.FieldError) error {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	key := ns

	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return fmt.Errorf("%s: must satisfy '%s' (got %v)", key, rule, fe.Value())
}
