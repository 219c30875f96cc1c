package relay

import (
	"fmt"
	"testing"

	"github.com/tidwall/gjson"
)

func conversationOf(n int) []ChatMessage {
	msgs := make([]ChatMessage, n)
	for i := range msgs {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs[i] = ChatMessage{Role: role, Content: fmt.Sprintf("message %d", i)}
	}
	return msgs
}

func countCacheMarkers(messages []byte) int {
	count := 0
	gjson.ParseBytes(messages).ForEach(func(_, msg gjson.Result) bool {
		content := msg.Get("content")
		if content.IsArray() {
			content.ForEach(func(_, block gjson.Result) bool {
				if block.Get("cache_control").Exists() {
					count++
				}
				return true
			})
		}
		return true
	})
	return count
}

func TestBuildMessagesSingleCacheBoundary(t *testing.T) {
	conv := conversationOf(120)
	plan := PlanWindow(len(conv))

	out := BuildMessages(conv, plan.CacheBoundaryIndex, nil, -1)

	if got := countCacheMarkers(out); got != 1 {
		t.Fatalf("cache marker count = %d, want exactly 1", got)
	}

	parsed := gjson.ParseBytes(out).Array()
	if len(parsed) != 120 {
		t.Fatalf("output length = %d, want 120", len(parsed))
	}

	// Boundary at 120-30-1 = 89; messages 90..119 must stay fresh.
	boundary := parsed[89]
	if !boundary.Get("content").IsArray() || !boundary.Get("content.0.cache_control").Exists() {
		t.Error("message at index 89 does not carry the cache marker")
	}
	for i := 90; i < 120; i++ {
		if parsed[i].Get("content").IsArray() {
			t.Errorf("fresh message %d was block-wrapped; plain string content expected", i)
		}
	}
}

func TestBuildMessagesNoBoundaryWhenShort(t *testing.T) {
	conv := conversationOf(3)
	plan := PlanWindow(len(conv))

	out := BuildMessages(conv, plan.CacheBoundaryIndex, nil, -1)
	if got := countCacheMarkers(out); got != 0 {
		t.Errorf("cache marker count = %d, want 0 for short conversation", got)
	}
}

func TestBuildMessagesOrderPreserved(t *testing.T) {
	conv := conversationOf(7)
	out := BuildMessages(conv, -1, nil, -1)

	parsed := gjson.ParseBytes(out).Array()
	if len(parsed) != len(conv) {
		t.Fatalf("output length = %d, want %d", len(parsed), len(conv))
	}
	for i, msg := range parsed {
		want := fmt.Sprintf("message %d", i)
		if got := msg.Get("content").String(); got != want {
			t.Errorf("message %d content = %q, want %q", i, got, want)
		}
	}
}

func TestBuildMessagesRoleCoercion(t *testing.T) {
	conv := []ChatMessage{
		{Role: "tool", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "", Content: "c"},
		{Role: "system", Content: "d"}, // normalizer strips these, but coercion is defensive
	}
	out := BuildMessages(conv, -1, nil, -1)

	parsed := gjson.ParseBytes(out).Array()
	wantRoles := []string{"user", "assistant", "user", "user"}
	for i, want := range wantRoles {
		if got := parsed[i].Get("role").String(); got != want {
			t.Errorf("message %d role = %q, want %q", i, got, want)
		}
	}
}

func TestBuildMessagesImageBlocks(t *testing.T) {
	conv := conversationOf(2)
	image := &ImageAttachment{MimeType: "image/jpeg", Base64: "aGVsbG8="}

	out := BuildMessages(conv, -1, image, 1)

	msg := gjson.GetBytes(out, "1")
	content := msg.Get("content")
	if !content.IsArray() || len(content.Array()) != 2 {
		t.Fatalf("image message content = %s, want [image, text]", content.Raw)
	}
	if content.Get("0.type").String() != "image" {
		t.Errorf("first block type = %q, want image", content.Get("0.type").String())
	}
	if content.Get("0.source.media_type").String() != "image/jpeg" {
		t.Errorf("media_type = %q", content.Get("0.source.media_type").String())
	}
	if content.Get("0.source.data").String() != "aGVsbG8=" {
		t.Errorf("image data = %q", content.Get("0.source.data").String())
	}
	if content.Get("1.type").String() != "text" {
		t.Errorf("second block type = %q, want text", content.Get("1.type").String())
	}
}

func TestBuildMessagesImageAtBoundaryMarksTextBlock(t *testing.T) {
	conv := conversationOf(60)
	plan := PlanWindow(len(conv)) // boundary at 9
	image := &ImageAttachment{MimeType: "image/png", Base64: "eA=="}

	out := BuildMessages(conv, plan.CacheBoundaryIndex, image, plan.CacheBoundaryIndex)

	content := gjson.GetBytes(out, fmt.Sprintf("%d.content", plan.CacheBoundaryIndex))
	if content.Get("0.cache_control").Exists() {
		t.Error("cache marker attached to the image block, want text block")
	}
	if !content.Get("1.cache_control").Exists() {
		t.Error("cache marker missing from the trailing text block")
	}
	if got := countCacheMarkers(out); got != 1 {
		t.Errorf("cache marker count = %d, want 1", got)
	}
}

func TestBuildMessagesEmptyConversation(t *testing.T) {
	out := BuildMessages(nil, -1, nil, -1)
	if string(out) != "[]" {
		t.Errorf("empty conversation output = %s, want []", out)
	}
}

func TestBuildSystemBlocks(t *testing.T) {
	blocks := BuildSystemBlocks("be kind")
	parsed := gjson.ParseBytes(blocks)
	if !parsed.IsArray() || len(parsed.Array()) != 1 {
		t.Fatalf("system blocks = %s, want single-block array", blocks)
	}
	if parsed.Get("0.text").String() != "be kind" {
		t.Errorf("system text = %q", parsed.Get("0.text").String())
	}
	if parsed.Get("0.cache_control.type").String() != "ephemeral" {
		t.Error("system block is not cache-marked")
	}

	if BuildSystemBlocks("") != nil {
		t.Error("empty system prompt should produce nil blocks")
	}
}
