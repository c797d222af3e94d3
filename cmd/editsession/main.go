// Command editsession replays a short editing script against the configured
// backend and prints every signal the session emits. Start cmd/mockgateway
// first, or point GATEWAY_BASE_URL at a real backend.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"ai-notetaking-editor/internal/bootstrap"
	"ai-notetaking-editor/internal/config"
	"ai-notetaking-editor/pkg/editor"
	"ai-notetaking-editor/pkg/editsession"
	"ai-notetaking-editor/pkg/events"
	"ai-notetaking-editor/pkg/lexical"

	"github.com/fatih/color"
)

var signalTypes = []string{
	events.TypeSuggestionAccepted,
	events.TypeLinkCleanup,
	events.TypeTagsGenerated,
	events.TypeDocumentSaved,
	events.TypeDocumentSaveFailed,
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		color.Red("Invalid config: %v", err)
		os.Exit(1)
	}
	if cfg.Gateway.WorkspaceID == "" {
		cfg.Gateway.WorkspaceID = bootstrap.DemoWorkspaceID
	}
	documentID := os.Getenv("DOCUMENT_ID")
	if documentID == "" {
		documentID = "demo-note"
	}

	container, err := bootstrap.NewContainer(cfg)
	if err != nil {
		color.Red("Failed to start: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	color.Cyan("🚀 Edit session replay for %s (workspace %s)", documentID, cfg.Gateway.WorkspaceID)

	surface := editor.NewMemorySurface("Trip planning", lexical.Document(lexical.Paragraph("")), editor.Viewport{Width: 1280, Height: 800})
	open, err := container.OpenSession(ctx, documentID, surface)
	if err != nil {
		color.Red("Failed to open session: %v", err)
		os.Exit(1)
	}
	if err := printSignals(ctx, open.Bus); err != nil {
		color.Red("Failed to subscribe: %v", err)
		os.Exit(1)
	}

	go func() {
		_ = container.Loop.Run(ctx)
	}()

	store := open.Session.Store()
	ok := run(cfg, surface, store)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.Gateway.Timeout)
	defer closeCancel()
	if err := container.CloseSession(closeCtx, open); err != nil {
		color.Red("Close: %v", err)
		ok = false
	}
	container.Close(closeCtx)

	if !ok {
		os.Exit(1)
	}
	color.Green("\n✅ Replay finished")
}

func run(cfg *config.Config, surface *editor.MemorySurface, store *editsession.Store) bool {
	e := cfg.Editor

	// 1. Debounced save
	color.Yellow("\n[1] Typing, then pausing for the save debounce")
	typeText(surface, "Kyoto trip. Remember the visa appointment at the embassy.")
	if !waitFor(store, e.SaveDebounce+cfg.Gateway.Timeout, func(s editsession.State) bool {
		return s.Save.SaveCount > 0 && !s.Save.Saving
	}) {
		color.Red("No save observed")
		return false
	}
	printSave(store.Snapshot().Save)

	// 2. Manual link
	color.Yellow("\n[2] Typing %s and accepting the first suggestion", e.TriggerMarker)
	typeText(surface, "Kyoto trip. Remember the visa appointment at the embassy. Link the visa "+e.TriggerMarker)
	if !waitFor(store, cfg.Gateway.Timeout, func(s editsession.State) bool {
		return s.Suggestion.Visible && !s.Suggestion.Loading
	}) {
		color.Red("Suggestion popup never settled")
		return false
	}
	printSuggestions(store.Snapshot().Suggestion)
	surface.Press(editor.KeyEnter)
	waitFor(store, time.Second, func(s editsession.State) bool { return !s.Suggestion.Visible })

	// 3. Dismissed trigger
	color.Yellow("\n[3] Typing %s again and pressing Escape", e.TriggerMarker)
	doc, _ := surface.Snapshot()
	doc.Root.Children = append(doc.Root.Children, lexical.Paragraph("Also compare "+e.TriggerMarker))
	surface.Press(editor.Key("k"))
	surface.SetDocument(doc)
	waitFor(store, cfg.Gateway.Timeout, func(s editsession.State) bool { return s.Suggestion.Visible })
	surface.Press(editor.KeyEscape)

	// 4. Auto-tag after blur
	color.Yellow("\n[4] Blurring and waiting %s for auto-tagging", e.AutoTagCountdown)
	surface.Blur()
	if !waitFor(store, e.AutoTagCountdown+e.AutoTagPollCap+cfg.Gateway.Timeout, func(s editsession.State) bool {
		return len(s.AutoTag.Tags) > 0
	}) {
		color.Red("No tags generated")
		return false
	}

	final, _ := surface.Snapshot()
	color.Cyan("\nFinal text: %s", lexical.PlainText(final))
	return true
}

// typeText replays one keystroke and the resulting buffer change.
func typeText(surface *editor.MemorySurface, text string) {
	surface.Press(editor.Key(text[len(text)-1:]))
	surface.SetDocument(lexical.Document(lexical.Paragraph(text)))
}

// waitFor blocks until cond holds for a store snapshot or timeout passes.
func waitFor(store *editsession.Store, timeout time.Duration, cond func(editsession.State) bool) bool {
	hit := make(chan struct{}, 1)
	unsubscribe := store.Subscribe(func(s editsession.State) {
		if cond(s) {
			select {
			case hit <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	if cond(store.Snapshot()) {
		return true
	}
	select {
	case <-hit:
		return true
	case <-time.After(timeout):
		return false
	}
}

func printSignals(ctx context.Context, bus *events.SessionBus) error {
	for _, eventType := range signalTypes {
		ch, err := bus.Subscribe(ctx, eventType)
		if err != nil {
			return err
		}
		go func() {
			for evt := range ch {
				printEvent(evt)
			}
		}()
	}
	return nil
}

func printEvent(evt events.Event) {
	base, _ := evt.(events.BaseEvent)
	switch evt.EventType() {
	case events.TypeSuggestionAccepted:
		color.Green("  ⇢ accepted %q (%s, %s)", base.String("page_title"), base.String("page_id"), base.String("source"))
	case events.TypeLinkCleanup:
		color.Magenta("  ⇢ cleanup %s (%s)", base.String("marker"), base.String("reason"))
	case events.TypeTagsGenerated:
		var names []string
		if tags, ok := base.Data["tags"].([]interface{}); ok {
			for _, t := range tags {
				names = append(names, fmt.Sprint(t))
			}
		}
		color.Green("  ⇢ tags: %s", strings.Join(names, ", "))
	case events.TypeDocumentSaved:
		color.Blue("  ⇢ saved (fingerprint %s)", base.String("fingerprint"))
	case events.TypeDocumentSaveFailed:
		color.Red("  ⇢ save failed: %s", base.String("error"))
	}
}

func printSave(s editsession.SaveState) {
	fmt.Printf("  saves=%d dirty=%t fingerprint=%016x\n", s.SaveCount, s.Dirty, s.Fingerprint)
}

func printSuggestions(s editsession.SuggestionState) {
	if s.Error != "" {
		color.Red("  suggestion error: %s", s.Error)
	}
	for i, sg := range s.AISuggestions {
		fmt.Printf("  [%d] %-24s %.2f  %s\n", i, sg.Title, sg.Confidence, sg.Reason)
	}
	for i, p := range s.CandidatePages {
		fmt.Printf("  [%d] %-24s page\n", len(s.AISuggestions)+i, p.Title)
	}
}
