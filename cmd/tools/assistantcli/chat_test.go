package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/camwood/camwood-site/backend/internal/analysis/matcher"
	"github.com/camwood/camwood-site/backend/internal/model/knowledge"
	"github.com/camwood/camwood-site/backend/internal/service/conversation"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	goleak.VerifyTestMain(m)
}

func newTestConversation() (*conversation.Controller, *knowledge.MemoryStore) {
	store := knowledge.NewMemoryStore(knowledge.Seed())
	opts := conversation.DefaultOptions()
	opts.ThinkingDelay = 5 * time.Millisecond
	opts.FollowUpDelay = 20 * time.Millisecond
	return conversation.New(matcher.NewFromStore(store), nil, opts, nil), store
}

func TestConversePrintsReplyAndFollowUpAtEndOfInput(t *testing.T) {
	conv, store := newTestConversation()
	var out bytes.Buffer

	err := converse(context.Background(), conv, strings.NewReader("pricing and cost\n"), &out, nil)
	require.NoError(t, err)

	pricing, ok := store.FindByID(knowledge.PricingEntryID)
	require.True(t, ok)

	printed := out.String()
	assert.Contains(t, printed, conversation.DefaultWelcomeText)
	assert.Contains(t, printed, "["+pricing.Question+"]")
	assert.Contains(t, printed, pricing.Answer)
	assert.Contains(t, printed, conversation.DefaultFollowUpText)
	assert.True(t, conv.Disposed())
}

func TestConverseSuggestAndQuit(t *testing.T) {
	conv, _ := newTestConversation()
	var out bytes.Buffer

	input := "/suggest\n/quit\npricing and cost\n"
	err := converse(context.Background(), conv, strings.NewReader(input), &out, []string{"What does Camwood Inc. do?"})
	require.NoError(t, err)

	printed := out.String()
	assert.Contains(t, printed, "  • What does Camwood Inc. do?")
	assert.NotContains(t, printed, conversation.DefaultFollowUpText)
	assert.Len(t, conv.Snapshot().Messages, 1)
}

func TestConverseStopsWaitingWhenCancelled(t *testing.T) {
	conv, _ := newTestConversation()
	var out bytes.Buffer

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := converse(ctx, conv, strings.NewReader("pricing and cost\n"), &out, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, conv.Disposed())
}
