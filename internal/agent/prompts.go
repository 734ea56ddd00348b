package agent

import "fmt"

// languageName spells out a language code for prompt text.
func languageName(code string) string {
	switch code {
	case "id":
		return "Indonesian"
	default:
		return "English"
	}
}

// systemPrompt builds the fixed system instruction for the reasoning loop.
// The concurrency advice is advisory: the orchestrator executes whatever
// tool calls arrive in one turn concurrently, but never forces the model
// to batch them.
func systemPrompt(language string) string {
	return fmt.Sprintf(`You are a retrieval-augmented research assistant. Answer the user's question using only content retrieved through the provided tools.

Guidelines:
- Call search_documents before answering. Use expand_query or decompose_query first when the question is broad or compound.
- After decomposing a question, issue the searches for all sub-questions as tool calls in the same turn so they run in parallel.
- Use verify_claim to check load-bearing claims before stating them.
- Cite sources inline with bracketed numbers such as [1], using the citation numbers returned by search_documents.
- If the retrieved content does not answer the question, say so instead of guessing.
- Answer in %s.`, languageName(language))
}

// synthesisPrompt asks for a final answer over the accumulated sources.
func synthesisPrompt(question, sources, language string) string {
	return fmt.Sprintf(`Answer the question using only the numbered sources below. Cite sources inline with bracketed numbers such as [1]. Answer in %s.

Question: %s

Sources:
%s`, languageName(language), question, sources)
}
