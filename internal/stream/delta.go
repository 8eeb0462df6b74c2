// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"errors"
)

// ErrMalformedFrame is returned by ExtractDelta for a payload that is not
// syntactically valid JSON. Pipeline recovers from it; callers never see it.
var ErrMalformedFrame = errors.New("malformed stream frame")

// ExtractDelta returns choices[0].delta.content from a data payload.
//
// Well-formed JSON of any other shape, or an empty content string, yields
// ok == false with a nil error.
func ExtractDelta(payload string) (delta string, ok bool, err error) {
	if !json.Valid([]byte(payload)) {
		return "", false, ErrMalformedFrame
	}

	var frame any
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return "", false, ErrMalformedFrame
	}

	root, isObj := frame.(map[string]any)
	if !isObj {
		return "", false, nil
	}
	choices, isArr := root["choices"].([]any)
	if !isArr || len(choices) == 0 {
		return "", false, nil
	}
	first, isObj := choices[0].(map[string]any)
	if !isObj {
		return "", false, nil
	}
	d, isObj := first["delta"].(map[string]any)
	if !isObj {
		return "", false, nil
	}
	content, isStr := d["content"].(string)
	if !isStr || content == "" {
		return "", false, nil
	}
	return content, true, nil
}
