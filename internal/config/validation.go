package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags, then rules that tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if _, _, err := net.SplitHostPort(cfg.Server.Addr); err != nil {
		return fmt.Errorf("server.addr: %q is not host:port: %v", cfg.Server.Addr, err)
	}

	if strings.ContainsAny(cfg.Public.Host, "/:?#") && net.ParseIP(cfg.Public.Host) == nil {
		return fmt.Errorf("public.host: %q must be a bare host name or IP", cfg.Public.Host)
	}

	switch cfg.Store.Type {
	case "filesystem":
		if cfg.Store.Filesystem.Dir == "" {
			return errors.New("store.filesystem.dir: required when store.type is filesystem")
		}
	case "minio":
		m := cfg.Store.Minio
		var missing []string
		for name, val := range map[string]string{
			"endpoint":   m.Endpoint,
			"access_key": m.AccessKey,
			"secret_key": m.SecretKey,
			"bucket":     m.Bucket,
		} {
			if val == "" {
				missing = append(missing, "store.minio."+name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("minio store requires: %s", strings.Join(missing, ", "))
		}
	case "badger":
		if cfg.Store.Badger.Dir == "" {
			return errors.New("store.badger.dir: required when store.type is badger")
		}
	}

	if cfg.Catalog.Enabled {
		u, err := url.Parse(cfg.Catalog.DatabaseURL)
		if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			return errors.New("catalog.database_url: must be a postgres:// connection string when the catalog is enabled")
		}
	}

	return nil
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
