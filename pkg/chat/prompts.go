package chat

import (
	"fmt"

	"github.com/studyloop-ai/studyloop-engine/pkg/models"
)

// standardSystemPrompt drives the main assistant generation.
const standardSystemPrompt = `Give concise and helpful responses. If you retrieve document or web sources, you should cite each source by referencing its ID. For document sources, use: [[doc:{sourceId}]]. For web sources, use: [[web:{sourceId}]]. When citing multiple sources, separate each citation with a space (e.g., [[doc:id1]] [[doc:id2]]). Only cite the same source multiple times if you cite another source in between. It is also good practice to reference equations: You can do this by simply enclosing the equation number in square brackets, e.g. [2.51]. Also, follow these instructions:

- For math equations, use LaTeX syntax (prefer block equations over inline equations).
- For programming languages, specify the language at the beginning of the block, e.g. ` + "```python\ncode here```" + `.`

// titleSystemPrompt generates a chat title from the first user message.
const titleSystemPrompt = `Generate a short title based on the first message a user begins a conversation with. Ensure it is not more than 80 characters long. The title should be a summary of the user's message. Do not use quotes or colons.`

// createDocumentPrompt returns the system prompt for a fresh document
// sub-generation of the given kind.
func createDocumentPrompt(kind models.DocumentKind) string {
	if kind == models.DocumentKindCode {
		return `You are a code generator that creates self-contained, runnable code based on the given instructions. Specify the language at the beginning of the code block. Include helpful comments and prefer complete examples over fragments. Output only the code block, no surrounding prose.`
	}
	return `You are a writing assistant that creates a document based on the given instructions. Write in Markdown. Use headings where they help structure the content. Output only the document content, no surrounding prose.`
}

// updateDocumentPrompt returns the system prompt for modifying an existing
// document of the given kind.
func updateDocumentPrompt(content string, kind models.DocumentKind) string {
	if kind == models.DocumentKindCode {
		return fmt.Sprintf(`You are a code editor. Improve the following code based on the given instructions. Output the full updated code, not a diff.

%s`, content)
	}
	return fmt.Sprintf(`You are a writing assistant. Improve the following document based on the given instructions. Output the full updated document in Markdown, not a diff.

%s`, content)
}
