package mongo

import (
	"errors"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/seedboard/internal/core/domain"
)

func TestMongoBoard_InlinesSnapshot(t *testing.T) {
	doc := mongoBoard{ID: boardDocID, BoardSnapshot: domain.BoardSnapshot{
		Topic:       "hello",
		LastID:      3,
		Posts:       []domain.Post{{ID: 3, Author: "abcdef0", Body: "x", CreatedAt: time.Unix(0, 0).UTC()}},
		Decorations: map[domain.Identity]domain.Decoration{"abcdef0": {Suffix: "(vip)"}},
	}}

	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fields["_id"] != boardDocID || fields["topic"] != "hello" {
		t.Fatalf("snapshot fields must sit at the top level: %v", fields)
	}

	var back mongoBoard
	if err := bson.Unmarshal(raw, &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.LastID != 3 || back.Decorations["abcdef0"].Suffix != "(vip)" {
		t.Fatalf("unexpected decode: %+v", back.BoardSnapshot)
	}
}

func TestIsDecodeError(t *testing.T) {
	if isDecodeError(mongo.CommandError{Code: 13, Message: "unauthorized"}) {
		t.Fatalf("command errors come from the server, not the document")
	}
	if !isDecodeError(errors.New("cannot decode string into an integer type")) {
		t.Fatalf("plain decode failures mark the snapshot corrupt")
	}
}

func TestMaxRetainedPosts_FitsOneDocument(t *testing.T) {
	const maxDocumentSize = 16 * 1024 * 1024

	body := strings.Repeat("😀", 2000)
	name := strings.Repeat("😀", 64)
	snap := domain.BoardSnapshot{Topic: strings.Repeat("😀", 200), MaxPosts: MaxRetainedPosts}
	for i := 1; i <= MaxRetainedPosts; i++ {
		snap.Posts = append(snap.Posts, domain.Post{
			ID:        i,
			Author:    "abcdef0",
			Name:      name,
			Body:      body,
			CreatedAt: time.Now().UTC(),
		})
	}

	raw, err := bson.Marshal(mongoBoard{ID: boardDocID, BoardSnapshot: snap})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(raw) >= maxDocumentSize {
		t.Fatalf("a full board is %d bytes, over the %d byte document limit", len(raw), maxDocumentSize)
	}
}
