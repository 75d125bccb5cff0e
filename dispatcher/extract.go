// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package dispatcher

import (
	"github.com/BaSui01/routecodex/classifier"
	"github.com/BaSui01/routecodex/pipeline"
)

// ExtractFeatureInput builds the classifier's minimal Request shape out
// of a pipeline.Request already parsed by LLMSwitch.FromEntry, so the
// wire body is decoded exactly once per request regardless of how many
// downstream stages need a view of it.
func ExtractFeatureInput(endpoint, protocol string, req *pipeline.Request) classifier.Request {
	out := classifier.Request{
		Endpoint: endpoint,
		Protocol: protocol,
		Model:    req.Model,
		HasImage: hasImages(req.Messages),
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, classifier.NewMessage(m.Role, m.Content))
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, classifier.ToolDefinition{Name: t.Name, Description: t.Description})
	}
	return out
}

func hasImages(messages []pipeline.Message) bool {
	for _, m := range messages {
		if len(m.Images) > 0 {
			return true
		}
	}
	return false
}
