package conversation

import (
	"time"

	"github.com/camwood/camwood-site/backend/internal/config"
	"github.com/camwood/camwood-site/backend/internal/model/knowledge"
	"github.com/camwood/camwood-site/backend/internal/service/ai"
)

const (
	DefaultWelcomeText = "Hello! I'm your Camwood Inc. Decision Intelligence Assistant. I can help you transform complex data into clear direction. How can I assist you today?"

	DefaultApologyText = "I'm sorry, I couldn't find a specific answer and the generative AI service is currently unavailable or improperly configured. For complex or proprietary questions, I'll connect you with a specialist. Would you like me to schedule a consultation?"

	DefaultFollowUpText = "Here are your options for connecting with our team:\n• Schedule a free strategy consultation\n• Call us at +1 (343) 630-0727\n• Email us at info@camwood.com\n\nOr feel free to ask me about our Decision Engines, industry focus, or philosophy!"

	DefaultGeneratedCategory = "Generative Intelligence"

	DefaultThinkingDelay = 300 * time.Millisecond
	DefaultFollowUpDelay = 1500 * time.Millisecond
)

// Options holds the fixed texts and timings of a conversation. It is passed by value and
// never modified after construction.
type Options struct {
	SystemInstruction string
	WelcomeText       string
	ApologyText       string
	FollowUpText      string
	GeneratedCategory string

	// EscalationEntryIDs flag local answers that invite a human hand-off.
	EscalationEntryIDs []string
	// FollowUpEntryIDs schedule the contact follow-up after a local answer.
	FollowUpEntryIDs []string

	ThinkingDelay time.Duration
	FollowUpDelay time.Duration
}

// DefaultOptions returns the texts used on the Camwood site.
func DefaultOptions() Options {
	return Options{
		SystemInstruction:  ai.DefaultSystemInstruction,
		WelcomeText:        DefaultWelcomeText,
		ApologyText:        DefaultApologyText,
		FollowUpText:       DefaultFollowUpText,
		GeneratedCategory:  DefaultGeneratedCategory,
		EscalationEntryIDs: []string{knowledge.PricingEntryID},
		FollowUpEntryIDs:   []string{knowledge.PricingEntryID, knowledge.ContactEntryID},
		ThinkingDelay:      DefaultThinkingDelay,
		FollowUpDelay:      DefaultFollowUpDelay,
	}
}

// OptionsFromConfig applies configured timings to DefaultOptions.
func OptionsFromConfig(cfg config.AssistantConfig) Options {
	opts := DefaultOptions()
	opts.ThinkingDelay = cfg.ThinkingDelay
	opts.FollowUpDelay = cfg.FollowUpDelay
	return opts
}

// withDefaults fills empty texts and copies the id lists.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.SystemInstruction == "" {
		o.SystemInstruction = def.SystemInstruction
	}
	if o.WelcomeText == "" {
		o.WelcomeText = def.WelcomeText
	}
	if o.ApologyText == "" {
		o.ApologyText = def.ApologyText
	}
	if o.FollowUpText == "" {
		o.FollowUpText = def.FollowUpText
	}
	if o.GeneratedCategory == "" {
		o.GeneratedCategory = def.GeneratedCategory
	}
	if o.ThinkingDelay < 0 {
		o.ThinkingDelay = 0
	}
	if o.FollowUpDelay < 0 {
		o.FollowUpDelay = 0
	}
	o.EscalationEntryIDs = append([]string(nil), o.EscalationEntryIDs...)
	o.FollowUpEntryIDs = append([]string(nil), o.FollowUpEntryIDs...)
	return o
}
