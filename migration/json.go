package migration

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var jsoniterStd = jsoniter.ConfigCompatibleWithStandardLibrary

// LegacyKeys are the top-level keys every legacy document must carry.
var LegacyKeys = []string{"search", "location", "category", "price", "features", "availability", "sort"}

// EnhancedKeys are the top-level keys migration adds to a legacy document.
var EnhancedKeys = []string{"conditionalRules", "filterGroups", "globalLogic", "displayMode", "viewMode", "metadata"}

// NeedsMigrationJSON reports whether a raw document has neither a
// conditionalRules nor a metadata key.
func NeedsMigrationJSON(data []byte) bool {
	return !gjson.GetBytes(data, "conditionalRules").Exists() && !gjson.GetBytes(data, "metadata").Exists()
}

// MigrateJSON migrates a raw legacy document. Keys unknown to LegacyState are
// kept in Result.Document untouched, only the enhanced keys are added.
func MigrateJSON(data []byte, opts Options) *Result {
	opts = opts.withDefaults()

	if !gjson.ValidBytes(data) {
		return failed(opts.Logger, "legacy filter state is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return failed(opts.Logger, "legacy filter state must be a JSON object")
	}
	var missing []string
	for _, key := range LegacyKeys {
		if !root.Get(key).Exists() {
			missing = append(missing, fmt.Sprintf("missing required field %q", key))
		}
	}
	if len(missing) > 0 {
		return failed(opts.Logger, missing...)
	}

	var legacy LegacyState
	if err := jsoniterStd.Unmarshal(data, &legacy); err != nil {
		return failed(opts.Logger, errors.Wrap(err, "decode legacy filter state").Error())
	}

	result := Migrate(&legacy, opts)
	if !result.Success {
		return result
	}

	doc, err := addEnhancedKeys(data, result.State)
	if err != nil {
		return failed(opts.Logger, err.Error())
	}
	result.Document = doc
	return result
}

func addEnhancedKeys(data []byte, state *EnhancedState) ([]byte, error) {
	values := map[string]any{
		"conditionalRules": state.ConditionalRules,
		"filterGroups":     state.FilterGroups,
		"globalLogic":      state.GlobalLogic,
		"displayMode":      state.DisplayMode,
		"viewMode":         state.ViewMode,
		"metadata":         state.Metadata,
	}

	doc := append([]byte(nil), data...)
	for _, key := range EnhancedKeys {
		raw, err := jsoniterStd.Marshal(values[key])
		if err != nil {
			return nil, errors.Wrapf(err, "marshal %s", key)
		}
		doc, err = sjson.SetRawBytes(doc, key, raw)
		if err != nil {
			return nil, errors.Wrapf(err, "set %s", key)
		}
	}
	return doc, nil
}

// ConvertToLegacyJSON removes the enhanced keys from a raw document and leaves
// every other key as it is.
func ConvertToLegacyJSON(data []byte) ([]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("enhanced filter state is not valid JSON")
	}
	doc := append([]byte(nil), data...)
	for _, key := range EnhancedKeys {
		var err error
		doc, err = sjson.DeleteBytes(doc, key)
		if err != nil {
			return nil, errors.Wrapf(err, "delete %s", key)
		}
	}
	return doc, nil
}

type BatchFailure struct {
	Index  int      `json:"index"`
	Errors []string `json:"errors"`
}

type BatchResult struct {
	Successful []*Result       `json:"successful"`
	Failed     []*BatchFailure `json:"failed"`
}

// BatchMigrate migrates every document on its own; a failing document never
// stops the others.
func BatchMigrate(docs [][]byte, opts Options) *BatchResult {
	result := &BatchResult{
		Successful: []*Result{},
		Failed:     []*BatchFailure{},
	}
	for i, doc := range docs {
		r := MigrateJSON(doc, opts)
		if !r.Success {
			result.Failed = append(result.Failed, &BatchFailure{Index: i, Errors: r.Errors})
			continue
		}
		result.Successful = append(result.Successful, r)
	}
	return result
}
