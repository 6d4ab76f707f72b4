package config

import (
	"reflect"

	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

// Validator lets a config struct add checks of its own. Load calls it
// once every `required:"true"` field is set.
//
//	func (c *Config) Validate() error {
//	    if c.KeyCacheTTL <= 0 {
//	        return sserr.Validationf("auth: key cache TTL must be positive, got %s", c.KeyCacheTTL)
//	    }
//	    return nil
//	}
//
// A classified error keeps its code; a plain one becomes VAL_001.
type Validator interface {
	Validate() error
}

// checkRequired reports the first empty required field by dotted path,
// e.g. "Auth.TenantID".
func checkRequired(rv reflect.Value) error {
	return walk(rv, "", "", func(f field) error {
		if f.sf.Tag.Get("required") != "true" || !f.value.IsZero() {
			return nil
		}
		return sserr.Newf(sserr.CodeValidationRequired, "config: required field %q is empty", f.path)
	})
}

func validate(cfg any, rv reflect.Value) error {
	if err := checkRequired(rv); err != nil {
		return err
	}
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}
	err := v.Validate()
	if err == nil {
		return nil
	}
	if _, classified := sserr.AsError(err); classified {
		return err
	}
	return sserr.Wrap(err, sserr.CodeValidation, "config: validation failed")
}
