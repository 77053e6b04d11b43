package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"repovoice/internal/repo"
	"repovoice/pkg/models"
)

// responseShape is the fixed instruction appended to every prompt. The model
// is asked for this JSON object; replies that do not parse fall back to plain
// text in ParseResponse.
const responseShape = `Format your response as JSON with the following structure:
{
    "text_response": "Your detailed explanation here",
    "code_snippets": [
        {"language": "language_name", "code": "code_here", "explanation": "explanation_here"}
    ],
    "references": [
        {"type": "documentation/pattern/library", "name": "reference_name", "description": "brief_description"}
    ]
}`

// AssembleContext concatenates selected files into a single context block,
// each file as a path-labeled fenced code block. The block is bounded because
// every file is already truncated and the file count is capped upstream.
func AssembleContext(files []repo.SelectedFile) string {
	var sb strings.Builder
	for _, f := range files {
		fmt.Fprintf(&sb, "File: %s\n```\n%s\n```\n\n", f.Path, f.Content)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// QuestionPrompt builds the prompt for a question about a repository,
// optionally with the content of one context file.
func QuestionPrompt(repoName, description, contextCode, question string) string {
	parts := []string{"You are an expert code explainer."}

	repoDesc := "Repository: " + repoName
	if description != "" {
		repoDesc += " - " + description
	}
	parts = append(parts, repoDesc)

	if contextCode != "" {
		parts = append(parts, "Here is the relevant code context:\n```\n"+contextCode+"\n```")
	}

	parts = append(parts, "Question: "+question)
	parts = append(parts,
		"Please provide a clear, concise explanation that would help a developer understand this code.\n"+
			"Include code snippets where relevant, and explain the reasoning behind implementation choices.\n\n"+
			responseShape)

	return strings.Join(parts, "\n\n")
}

// OnboardingPrompt builds the whole-repository prompt: the assembled context
// block followed by an onboarding instruction set.
func OnboardingPrompt(contextBlock string) string {
	parts := []string{
		"You are an expert code explainer helping a developer get oriented in an unfamiliar codebase.",
		"Here is a selection of the repository's files:\n\n" + contextBlock,
		"Provide:\n" +
			"1. An architecture overview of the repository\n" +
			"2. Any security concerns you notice\n" +
			"3. Suggested improvements",
		responseShape,
	}
	return strings.Join(parts, "\n\n")
}

// AnalyzePrompt builds the prompt for explaining a single code snippet.
func AnalyzePrompt(code string) string {
	parts := []string{
		"You are an expert code analyzer. Please analyze the following code:",
		"```\n" + code + "\n```",
		"Provide a high-level overview of:\n" +
			"1. What this code does\n" +
			"2. Key functions/classes and their purposes\n" +
			"3. Any potential issues or improvements",
		responseShape,
	}
	return strings.Join(parts, "\n\n")
}

// ParseResponse decodes a model reply into a QuestionResponse. Replies are
// accepted as bare JSON or JSON inside a markdown fence; anything else is
// passed through as a plain-text answer with no snippets or references.
func ParseResponse(raw string) models.QuestionResponse {
	text := stripFence(strings.TrimSpace(raw))

	var parsed models.QuestionResponse
	if err := json.Unmarshal([]byte(text), &parsed); err == nil && parsed.TextResponse != "" {
		if parsed.CodeSnippets == nil {
			parsed.CodeSnippets = []models.CodeSnippet{}
		}
		if parsed.References == nil {
			parsed.References = []models.Reference{}
		}
		return parsed
	}

	return models.QuestionResponse{
		TextResponse: raw,
		CodeSnippets: []models.CodeSnippet{},
		References:   []models.Reference{},
	}
}

// stripFence removes a surrounding markdown code fence, if present.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
