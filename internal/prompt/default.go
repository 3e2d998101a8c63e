package prompt

// DefaultSystemPrompt is sent when neither the config nor the -s flag sets one.
// Empty means no system message.
const DefaultSystemPrompt = ""

func GetDefaultSystemPrompt() string {
	return DefaultSystemPrompt
}
