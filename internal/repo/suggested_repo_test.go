package repo

import (
	"context"
	"testing"

	"github.com/tbourn/go-bot-builder/internal/domain"
)

func TestFindFixedResponse(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedBot(t, db, "b1", "u1")
	seedBot(t, db, "b2", "u1")

	for _, p := range []*domain.SuggestedPrompt{
		{BotID: "b1", Question: "What are your hours?", FixedResponse: strptr("9 to 5.")},
		{BotID: "b1", Question: "Blank answer", FixedResponse: strptr("   ")},
		{BotID: "b1", Question: "No answer"},
		{BotID: "b2", Question: "Other bot", FixedResponse: strptr("nope")},
	} {
		if err := CreateSuggestedPrompt(ctx, db, p); err != nil {
			t.Fatalf("CreateSuggestedPrompt: %v", err)
		}
	}

	cases := []struct {
		q      string
		want   string
		wantOK bool
	}{
		{"What are your hours?", "9 to 5.", true},
		{"  What are your hours?  ", "9 to 5.", true},
		{"what are your hours?", "", false}, // case-sensitive
		{"Blank answer", "", false},
		{"No answer", "", false},
		{"Other bot", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok, err := FindFixedResponse(ctx, db, "b1", tc.q)
		if err != nil {
			t.Fatalf("FindFixedResponse(%q): %v", tc.q, err)
		}
		if ok != tc.wantOK || got != tc.want {
			t.Fatalf("FindFixedResponse(%q) = %q, %v; want %q, %v", tc.q, got, ok, tc.want, tc.wantOK)
		}
	}

	list, err := ListSuggestedPrompts(ctx, db, "b1")
	if err != nil || len(list) != 3 {
		t.Fatalf("ListSuggestedPrompts = %d, %v; want 3", len(list), err)
	}
}
