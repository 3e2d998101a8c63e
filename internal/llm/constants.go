package llm

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 0
)

const (
	PluginAzure   = "azure"
	PluginFoundry = "foundry"
)

const (
	// DefaultAzureAPIVersion is the api-version sent to Azure OpenAI deployments.
	DefaultAzureAPIVersion = "2025-04-01-preview"
	// DefaultProjectsAPIVersion is the api-version of the project deployments API.
	DefaultProjectsAPIVersion = "v1"
)

const userAgent = "llmfoundry/1.0"
