package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wiboteam/wibo-ai-agent/internal/openai"
)

const extractionPrompt = `L'utente ha scritto: %q
Adesso sono le %s (fuso %s).
Estrai l'azione pianificata e la data/ora in ISO-8601 (incluso offset del fuso %s).
Se non c'è un'intenzione futura, restituisci {"azione": null, "data": null}.
Se c'è un'azione ma la data non è chiara, restituisci {"azione": "...", "data": null}.

Rispondi solo con JSON:
{"azione":"...","data":"YYYY-MM-DDTHH:MM:SS+02:00"}`

// ModelExtractor asks the chat model for a structured action/datetime
// pair and parses its JSON answer strictly.
type ModelExtractor struct {
	client *openai.Client
	loc    *time.Location
}

func NewModelExtractor(client *openai.Client, loc *time.Location) *ModelExtractor {
	if loc == nil {
		loc = time.UTC
	}
	return &ModelExtractor{client: client, loc: loc}
}

func (m *ModelExtractor) Extract(ctx context.Context, text string, now time.Time) (Result, error) {
	prompt := fmt.Sprintf(extractionPrompt, text, now.In(m.loc).Format(time.RFC3339), m.loc.String(), m.loc.String())
	content, err := m.client.Complete(ctx, []openai.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return Result{}, fmt.Errorf("extraction call: %w", err)
	}
	return parseModelOutput(content)
}

func parseModelOutput(content string) (Result, error) {
	content = strings.TrimSpace(content)
	// Models occasionally wrap the JSON in a markdown fence despite the
	// prompt; strip it before parsing.
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var out struct {
		Azione *string `json:"azione"`
		Data   *string `json:"data"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrUnparseable, content)
	}

	var res Result
	if out.Azione != nil {
		res.Action = strings.TrimSpace(*out.Azione)
	}
	if out.Data != nil {
		res.When = strings.TrimSpace(*out.Data)
	}
	return res, nil
}
