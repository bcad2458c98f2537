package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator возвращает валидатор, который называет поля по
// mapstructure-тегу: из него однозначно получается имя переменной окружения.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate проверяет конфигурацию по struct-тегам и правилам,
// которые тегами не выражаются.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	// Аренда должна переживать обработку, иначе задание
	// вернётся в очередь, пока воркер ещё работает
	if cfg.LeaseDuration <= cfg.JobTimeout {
		return fmt.Errorf("FM_LEASE_DURATION (%v) должен быть больше FM_JOB_TIMEOUT (%v)",
			cfg.LeaseDuration, cfg.JobTimeout)
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		return fmt.Errorf("FM_RETRY_MAX_DELAY (%v) меньше FM_RETRY_BASE_DELAY (%v)",
			cfg.RetryMaxDelay, cfg.RetryBaseDelay)
	}
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return errors.New("FM_TLS_CERT и FM_TLS_KEY задаются только вместе")
	}
	return nil
}

// formatValidationError превращает ошибку validator в сообщение
// с именем переменной окружения.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: недопустимое значение %v (правило %s)",
			envName(e.Field()), e.Value(), e.Tag())
	}
	return err
}

// envName возвращает имя переменной окружения по mapstructure-ключу.
func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(key)
}
