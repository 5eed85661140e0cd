package rag

import "strings"

// generationInstructions is appended to every generation prompt. The
// citation marker contract here is what the rest of the pipeline parses:
// sources are numbered in the order they appear in the context block.
const generationInstructions = `Instructions:
- Answer strictly in the same language as the question.
- Structure the answer with short paragraphs or bullet points where it helps readability.
- Base the answer only on the provided sources. If the sources do not contain the answer, say so.
- After every claim drawn from a specific source, add a bracketed citation marker: [1] for the first source in the context, [2] for the second, and so on.`

// BuildPrompt assembles the generation prompt from the question and the
// retrieved chunks. Chunk texts are joined with a blank line in retrieval
// order and truncated to maxChars characters as a hard cutoff.
func BuildPrompt(question string, chunks []Chunk, maxChars int) string {
	ctx := buildContext(chunks, maxChars)

	var b strings.Builder
	b.WriteString("You are a document assistant answering questions from an internal knowledge base.\n\n")
	if ctx != "" {
		b.WriteString("Sources:\n\n")
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}
	b.WriteString(generationInstructions)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

// BuildOrchestrationPrompt assembles a multi-turn prompt carrying prior
// conversation turns ahead of the current question.
func BuildOrchestrationPrompt(question string, history []string) string {
	if len(history) == 0 {
		return question
	}

	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, turn := range history {
		b.WriteString(turn)
		b.WriteString("\n")
	}
	b.WriteString("\nCurrent question: ")
	b.WriteString(question)
	return b.String()
}

// buildContext concatenates chunk contents in retrieval order, separated
// by blank lines, and cuts at maxChars characters.
func buildContext(chunks []Chunk, maxChars int) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.Content == "" {
			continue
		}
		parts = append(parts, c.Content)
	}
	ctx := strings.Join(parts, "\n\n")

	runes := []rune(ctx)
	if maxChars > 0 && len(runes) > maxChars {
		return string(runes[:maxChars])
	}
	return ctx
}
