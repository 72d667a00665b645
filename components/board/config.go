package board

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Config selects a board model and carries its model specific attributes.
type Config struct {
	Model      string                 `json:"model"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.Model == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "model")
	}
	reg, ok := lookupModel(conf.Model)
	if !ok {
		return utils.NewConfigValidationError(path, errors.Errorf("unknown board model %q", conf.Model))
	}
	if reg.AttributeConverter != nil {
		if _, err := reg.AttributeConverter(conf.Attributes); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	return nil
}
