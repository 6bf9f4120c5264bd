package translate

import "fmt"

const systemPromptTemplate = "You are a professional translator. Please translate the following text into %s. " +
	"Only return the translated text without any explanation."

// buildMessages returns the fixed instruction plus the source text.
func buildMessages(text, language string) []Message {
	return []Message{
		{Role: RoleSystem, Content: fmt.Sprintf(systemPromptTemplate, language)},
		{Role: RoleUser, Content: text},
	}
}
