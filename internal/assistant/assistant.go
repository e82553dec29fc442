// Package assistant is the composition root of a conversation turn: it
// assembles per-user context, consults the response cache, calls the
// completion backend, persists the turn and feeds the achievement engine.
package assistant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charlabot/charla/internal/cache"
	"github.com/charlabot/charla/internal/facts"
	"github.com/charlabot/charla/internal/metrics"
	"github.com/charlabot/charla/internal/store"
	"github.com/charlabot/charla/provider"
)

// ErrEmptyInput rejects a message with no text and no attachment.
var ErrEmptyInput = errors.New("empty message")

const (
	historyWindow = 5
	factWindow    = 10

	systemPrompt = "Eres un asistente útil que responde de manera clara y precisa."
)

var quickReplies = []string{"Cuéntame más", "Explica en detalle", "¿Puedes dar un ejemplo?"}

// Attachment is an already-stored upload riding along with a message.
type Attachment struct {
	URL  string
	Name string
	MIME string
	Data []byte
}

// Reply is the payload returned to the client and stored in the cache.
type Reply struct {
	Response     string   `json:"response"`
	QuickReplies []string `json:"quick_replies"`
}

// ConversationStore is the slice of the store a turn needs.
type ConversationStore interface {
	GetPreferences(ctx context.Context, userID string) (store.Preferences, error)
	RecentTurns(ctx context.Context, userID string, limit int) ([]store.Turn, error)
	InsertTurn(ctx context.Context, userID, userMessage, aiResponse string, fileURL, fileName *string) (store.Turn, error)
	AppendContextFact(ctx context.Context, userID, key string, values []string) error
	RecentContextFacts(ctx context.Context, userID string, limit int) ([]store.ContextFact, error)
}

type Cacher interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

type Evaluator interface {
	Evaluate(ctx context.Context, userID string) ([]store.Achievement, error)
}

type Indexer interface {
	IndexTurn(t store.Turn) error
}

type Assistant struct {
	Store        ConversationStore
	Cache        Cacher
	Provider     provider.Provider
	Achievements Evaluator
	Index        Indexer      // optional
	Ingest       *URLIngester // optional
	Logger       *log.Logger

	MaxTokens   int
	Temperature float64
}

// HandleMessage runs one conversation turn. A cache hit short-circuits the
// whole pipeline: no fact extraction, no persisted turn, no achievement
// evaluation, no cache refresh.
func (a *Assistant) HandleMessage(ctx context.Context, userID, message string, att *Attachment) (Reply, error) {
	metrics.ChatRequests.Inc()

	var imageDataURL string
	if att != nil {
		switch {
		case strings.HasPrefix(att.MIME, "text"):
			message += "\nArchivo: " + string(att.Data)
		case strings.HasPrefix(att.MIME, "image"):
			imageDataURL = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(att.Data)
			message += fmt.Sprintf("\n[Imagen: %s]", att.Name)
		}
	}

	if strings.TrimSpace(message) == "" && att == nil {
		return Reply{}, ErrEmptyInput
	}

	key := cache.Key(userID, message)
	if payload, hit, err := a.Cache.Get(ctx, key); err != nil {
		// Backend trouble is never fatal; fall through to full computation.
		a.Logger.Printf("cache get: %v", err)
	} else if hit {
		var cached Reply
		if err := json.Unmarshal(payload, &cached); err == nil {
			metrics.CacheHits.Inc()
			return cached, nil
		}
		a.Logger.Printf("cache payload corrupt for %s, recomputing", key)
	}

	prefs, err := a.Store.GetPreferences(ctx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("load preferences: %w", err)
	}
	targetLang := targetLanguage(prefs.Language, message)

	history, err := a.Store.RecentTurns(ctx, userID, historyWindow)
	if err != nil {
		return Reply{}, fmt.Errorf("load history: %w", err)
	}

	for factKey, values := range facts.Extract(message) {
		if err := a.Store.AppendContextFact(ctx, userID, factKey, values); err != nil {
			return Reply{}, fmt.Errorf("append context: %w", err)
		}
	}
	recent, err := a.Store.RecentContextFacts(ctx, userID, factWindow)
	if err != nil {
		return Reply{}, fmt.Errorf("load context: %w", err)
	}

	contextStr := renderContext(recent)
	if a.Ingest != nil {
		if article := a.Ingest.ArticleFromMessage(ctx, message); article != "" {
			contextStr += "\nArtículo: " + article
		}
	}

	messages := buildPrompt(history, contextStr, prefs.Tone, targetLang, message, imageDataURL)

	response, err := a.Provider.Generate(ctx, prefs.Model, messages, a.MaxTokens, a.Temperature)
	if err != nil {
		metrics.ModelFailures.Inc()
		return Reply{}, err
	}

	var fileURL, fileName *string
	if att != nil {
		fileURL, fileName = &att.URL, &att.Name
	}
	turn, err := a.Store.InsertTurn(ctx, userID, message, response, fileURL, fileName)
	if err != nil {
		return Reply{}, fmt.Errorf("persist turn: %w", err)
	}
	if a.Index != nil {
		if err := a.Index.IndexTurn(turn); err != nil {
			a.Logger.Printf("index turn %d: %v", turn.ID, err)
		}
	}

	if _, err := a.Achievements.Evaluate(ctx, userID); err != nil {
		return Reply{}, fmt.Errorf("evaluate achievements: %w", err)
	}

	reply := Reply{Response: response, QuickReplies: quickReplies}
	if payload, err := json.Marshal(reply); err == nil {
		if err := a.Cache.Set(ctx, key, payload, cache.TTL); err != nil {
			a.Logger.Printf("cache set: %v", err)
		}
	}
	return reply, nil
}

// buildPrompt expands the newest-first history window into chronological
// role-tagged messages and embeds tone, language and context into the final
// user entry.
func buildPrompt(history []store.Turn, contextStr, tone, targetLang, message, imageDataURL string) []provider.Message {
	messages := []provider.Message{{Role: "system", Content: systemPrompt}}
	for i := len(history) - 1; i >= 0; i-- {
		messages = append(messages,
			provider.Message{Role: "user", Content: history[i].UserMessage},
			provider.Message{Role: "assistant", Content: history[i].AIResponse},
		)
	}
	prompt := fmt.Sprintf("Eres un asistente útil que responde en un tono %s en %s. Contexto: %s\nUsuario: %s",
		tone, targetLang, contextStr, message)
	messages = append(messages, provider.Message{Role: "user", Content: prompt})
	if imageDataURL != "" {
		messages = append(messages, provider.Message{Role: "user", Content: message, ImageDataURL: imageDataURL})
	}
	return messages
}

// renderContext flattens recent facts newest-first. Keys may repeat; recency
// is global across keys, not per key.
func renderContext(recent []store.ContextFact) string {
	var b strings.Builder
	for i, f := range recent {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(strings.Join(f.Values, ", "))
	}
	return b.String()
}
