package service

import (
	"encoding/json"
	"fmt"
)

// replicationsKey is the parameter holding the default replication count a
// scenario run inherits when the start request does not supply one.
const replicationsKey = "replications"

// mergeParameters overlays scenario overrides on top of the analysis
// defaults. Keys present in overrides win; everything else is inherited.
func mergeParameters(defaults, overrides json.RawMessage) (map[string]interface{}, error) {
	merged := map[string]interface{}{}
	if len(defaults) > 0 {
		if err := json.Unmarshal(defaults, &merged); err != nil {
			return nil, fmt.Errorf("decode default parameters: %w", err)
		}
	}
	if len(overrides) > 0 {
		var o map[string]interface{}
		if err := json.Unmarshal(overrides, &o); err != nil {
			return nil, fmt.Errorf("decode parameter overrides: %w", err)
		}
		for k, v := range o {
			merged[k] = v
		}
	}
	return merged, nil
}

// incompleteKeys returns the keys whose merged value is null. A run cannot
// be prepared until every parameter resolves to a concrete value.
func incompleteKeys(params map[string]interface{}) []string {
	var missing []string
	for k, v := range params {
		if v == nil {
			missing = append(missing, k)
		}
	}
	return missing
}

// replicationCount resolves the replication count from a merged parameter
// bag. JSON numbers decode as float64.
func replicationCount(params map[string]interface{}) (int, bool) {
	v, ok := params[replicationsKey]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok || f < 1 {
		return 0, false
	}
	return int(f), true
}
