package suggest

import (
	"fmt"
	"strings"
)

// Prompt templates per endpoint. The system half frames the task; the user
// half carries the article content and per-request options. Changing a
// template changes the content hash inputs' meaning, so bump the cache with
// InvalidateEndpoint after editing these.

func systemPrompt(endpoint string) string {
	switch endpoint {
	case EndpointTitles:
		return "You are an editor for an online article catalog. Propose concise, " +
			"specific titles that accurately reflect the article. Return one title per line, no numbering."
	case EndpointHashtags:
		return "You suggest hashtags for catalog articles. Return lowercase hashtags, " +
			"one per line, each starting with '#', no explanations."
	case EndpointSEO:
		return "You are an SEO analyst. Assess the article's search optimization: " +
			"keyword usage, title/description quality, structure, and readability. " +
			"Return a short structured report with concrete improvements."
	case EndpointEyecatch:
		return "You write prompts for an image generation model. Produce a single " +
			"vivid prompt describing an eye-catch illustration for the article. No preamble."
	default:
		return "You assist with editorial content suggestions. Be concise."
	}
}

func userPrompt(endpoint, content string, params map[string]any) string {
	var b strings.Builder
	switch endpoint {
	case EndpointTitles:
		fmt.Fprintf(&b, "Suggest %v titles for the following article.\n\n", paramOr(params, "count", 3))
	case EndpointHashtags:
		fmt.Fprintf(&b, "Suggest %v hashtags for the following article.\n\n", paramOr(params, "count", 5))
	case EndpointSEO:
		b.WriteString("Analyze the SEO of the following article.\n\n")
	case EndpointEyecatch:
		b.WriteString("Write an eye-catch image prompt for the following article.\n\n")
	default:
		b.WriteString("Process the following article.\n\n")
	}
	b.WriteString(content)
	return b.String()
}

func paramOr(params map[string]any, key string, fallback any) any {
	if v, ok := params[key]; ok {
		return v
	}
	return fallback
}
