// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package dispatcher

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/BaSui01/routecodex/pipeline"
)

// loadShapeFilter reads a shape-filters.<profile>.json file. An empty
// path or a missing file is not an error — the Compatibility stage
// simply runs without a ShapeFilter.
func loadShapeFilter(path string) (*pipeline.ShapeFilter, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("dispatcher: read shape filter %s: %w", path, err)
	}
	var filter pipeline.ShapeFilter
	if err := json.Unmarshal(data, &filter); err != nil {
		return nil, fmt.Errorf("dispatcher: decode shape filter %s: %w", path, err)
	}
	return &filter, nil
}
