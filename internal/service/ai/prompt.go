package ai

import "strings"

// DefaultSystemInstruction guides the generative fallback toward Camwood's voice.
const DefaultSystemInstruction = `You are the Camwood Inc. Intelligence Assistant. Your role is to provide sophisticated, professional, and confident responses about the company's services, which center around transforming complex data into clear, actionable decision engines. Use Camwood's philosophy: "AI should serve people, not the other way around." Keep answers concise, business-focused, and project an image of clarity and expertise.`

// GeneratedMarker prefixes assistant text produced by the remote model.
const GeneratedMarker = "(✨ AI Insight):\n\n"

// MarkGenerated prefixes text with GeneratedMarker.
func MarkGenerated(text string) string {
	return GeneratedMarker + text
}

// IsGenerated reports whether text carries the sparkle prefix of a remote answer.
func IsGenerated(text string) bool {
	return strings.HasPrefix(text, "(✨")
}
