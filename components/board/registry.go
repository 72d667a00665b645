package board

import (
	"context"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/viam-labs/keydrive/logging"
)

// A Constructor builds a board from already converted attributes.
type Constructor func(ctx context.Context, attrs interface{}, logger logging.Logger) (Board, error)

// An AttributeConverter turns the free-form attribute map of a Config into the model's typed
// attributes.
type AttributeConverter func(attributes map[string]interface{}) (interface{}, error)

// Registration describes how to build one board model.
type Registration struct {
	Constructor        Constructor
	AttributeConverter AttributeConverter
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Registration{}
)

// RegisterModel registers a board model. It panics on a duplicate or incomplete registration,
// since both are programming errors caught at init.
func RegisterModel(model string, reg Registration) {
	if reg.Constructor == nil {
		panic(errors.Errorf("cannot register board model %q without a constructor", model))
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[model]; ok {
		panic(errors.Errorf("board model %q already registered", model))
	}
	registry[model] = reg
}

// RegisteredModels returns the sorted names of all registered models.
func RegisteredModels() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	models := lo.Keys(registry)
	sort.Strings(models)
	return models
}

func lookupModel(model string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[model]
	return reg, ok
}

// NewFromConfig builds the board selected by conf.
func NewFromConfig(ctx context.Context, conf Config, logger logging.Logger) (Board, error) {
	reg, ok := lookupModel(conf.Model)
	if !ok {
		return nil, errors.Errorf("unknown board model %q, have %v", conf.Model, RegisteredModels())
	}

	var attrs interface{}
	if reg.AttributeConverter != nil {
		var err error
		attrs, err = reg.AttributeConverter(conf.Attributes)
		if err != nil {
			return nil, errors.Wrapf(err, "error converting attributes for board model %q", conf.Model)
		}
	}
	return reg.Constructor(ctx, attrs, logger.Sublogger(conf.Model))
}

// AttributeValidator is implemented by typed attributes that can check themselves.
type AttributeValidator interface {
	Validate(path string) error
}

// TransformAttributeMap is an AttributeConverter helper: it decodes the map into a new T using
// the struct's json tags, then validates it when T implements AttributeValidator.
func TransformAttributeMap[T any](attributes map[string]interface{}) (*T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "error creating decoder")
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, err
	}
	if v, ok := interface{}(&out).(AttributeValidator); ok {
		if err := v.Validate("attributes"); err != nil {
			return nil, err
		}
	}
	return &out, nil
}
