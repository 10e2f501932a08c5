package config

// ConfigDiff lists the changes between two configs that can be applied
// without restarting.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CatalogueChanged is set when the concept source or its cache settings
	// changed.
	CatalogueChanged bool

	// RestartRequired is set when anything else changed.
	RestartRequired bool
}

// Diff compares old and new.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Catalogue != new.Catalogue {
		d.CatalogueChanged = true
	}

	o, n := *old, *new
	o.Server.LogLevel, n.Server.LogLevel = "", ""
	o.Catalogue, n.Catalogue = CatalogueConfig{}, CatalogueConfig{}
	d.RestartRequired = !equalRest(&o, &n)
	return d
}

func equalRest(a, b *Config) bool {
	if a.Server != b.Server || a.Conversation != b.Conversation ||
		a.Reference != b.Reference || a.MCP != b.MCP {
		return false
	}
	if !equalEntry(a.Providers.LLM, b.Providers.LLM) || !equalEntry(a.Providers.Embeddings, b.Providers.Embeddings) {
		return false
	}
	if len(a.Providers.LLMFallbacks) != len(b.Providers.LLMFallbacks) {
		return false
	}
	for i := range a.Providers.LLMFallbacks {
		if !equalEntry(a.Providers.LLMFallbacks[i], b.Providers.LLMFallbacks[i]) {
			return false
		}
	}
	return true
}

// equalEntry ignores Options.
func equalEntry(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL &&
		a.Model == b.Model && a.Timeout == b.Timeout
}
