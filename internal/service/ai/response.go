package ai

import (
	"github.com/bytedance/sonic"
)

// ResultKind classifies a decoded generateContent payload.
type ResultKind int

const (
	Malformed ResultKind = iota
	Empty
	Success
)

func (k ResultKind) String() string {
	switch k {
	case Success:
		return "success"
	case Empty:
		return "empty"
	default:
		return "malformed"
	}
}

// ParseResult is the typed outcome of ParseResponse.
type ParseResult struct {
	Kind ResultKind
	Text string
}

type generateResponse struct {
	Candidates []responseCandidate `json:"candidates"`
}

type responseCandidate struct {
	Content *responseContent `json:"content"`
}

type responseContent struct {
	Parts []responsePart `json:"parts"`
}

type responsePart struct {
	Text *string `json:"text"`
}

// ParseResponse extracts candidates[0].content.parts[0].text from a success body.
func ParseResponse(body []byte) ParseResult {
	var resp generateResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return ParseResult{Kind: Malformed}
	}

	if len(resp.Candidates) == 0 {
		return ParseResult{Kind: Malformed}
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0].Text == nil {
		return ParseResult{Kind: Malformed}
	}

	text := *content.Parts[0].Text
	if text == "" {
		return ParseResult{Kind: Empty}
	}
	return ParseResult{Kind: Success, Text: text}
}
