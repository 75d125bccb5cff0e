package classifier

// decide implements the §4.1 step 6 decision tree, in strict,
// first-match-wins order. A route is skipped if it has no entry in
// routingDecisions (i.e. is "not configured").
func (c *Classifier) decide(f Features) string {
	order := []func(Features) (string, bool){
		c.ruleVision,
		c.ruleLongContext,
		c.ruleThinking,
		c.ruleCoding,
		c.ruleWebSearch,
		c.ruleTools,
	}

	for _, rule := range order {
		if route, ok := rule(f); ok && c.configured(route) {
			return route
		}
	}

	if c.configured("default") {
		return "default"
	}
	return c.firstConfigured()
}

func (c *Classifier) configured(route string) bool {
	_, ok := c.cfg.RoutingDecisions[route]
	return ok
}

// firstConfigured returns some configured route when even "default" is
// absent, per spec step 6.7 ("else -> default (or first configured if
// default absent)"). Map iteration order is unspecified in Go, but since
// this only triggers in a degenerate config with no default route and no
// hard guarantee on tie-break is given by the spec, any configured route
// satisfies the contract.
func (c *Classifier) firstConfigured() string {
	for route := range c.cfg.RoutingDecisions {
		return route
	}
	return "default"
}

func (c *Classifier) ruleVision(f Features) (string, bool) {
	return "vision", f.HasImageContent
}

func (c *Classifier) ruleLongContext(f Features) (string, bool) {
	threshold := c.cfg.LongContextThresholdTokens
	if threshold <= 0 {
		threshold = 100000
	}
	return "longContext", f.TotalTokens >= threshold
}

func (c *Classifier) ruleThinking(f Features) (string, bool) {
	return "thinking", f.ThinkingIntent
}

func (c *Classifier) ruleCoding(f Features) (string, bool) {
	return "coding", hasAny(f.ToolTypes, ToolCodeExecution, ToolFileSearch)
}

func (c *Classifier) ruleWebSearch(f Features) (string, bool) {
	return "webSearch", hasAny(f.ToolTypes, ToolWebSearch)
}

func (c *Classifier) ruleTools(f Features) (string, bool) {
	return "tools", f.HasTools
}

func hasAny(types []ToolCategory, want ...ToolCategory) bool {
	for _, t := range types {
		for _, w := range want {
			if t == w {
				return true
			}
		}
	}
	return false
}
