package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		return translate(err)
	}
	return nil
}

// ValidateNormalize checks the settings a normalize run needs.
func (c *Config) ValidateNormalize() error {
	if c.Normalize.InputDir == "" {
		return fmt.Errorf("normalize.input_dir is required")
	}
	if c.Normalize.OutputDir == "" {
		return fmt.Errorf("normalize.output_dir is required")
	}
	return nil
}

// ValidateUpload checks the credentials of the selected provider.
func (c *Config) ValidateUpload() error {
	u := c.Upload
	switch u.Provider {
	case "azure":
		var missing []string
		if u.Azure.Account == "" {
			missing = append(missing, "upload.azure.account")
		}
		if u.Azure.Key == "" {
			missing = append(missing, "upload.azure.key")
		}
		if u.Azure.Container == "" {
			missing = append(missing, "upload.azure.container")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing %s", strings.Join(missing, ", "))
		}
	case "s3":
		if u.S3.Bucket == "" {
			return fmt.Errorf("missing upload.s3.bucket")
		}
	default:
		return fmt.Errorf("unknown upload provider %q", u.Provider)
	}
	return nil
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s (got %v)", field, fe.Tag(), fe.Value()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
