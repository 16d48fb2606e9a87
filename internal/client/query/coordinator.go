package query

import (
	"context"
	"errors"
	"strings"

	"kbhub/internal/client/api"
)

const defaultTopK = 5

var (
	// ErrEmptyQuestion is a local validation failure, no request is issued.
	ErrEmptyQuestion = errors.New("question must not be empty")
	// ErrNoKnowledgeBase means the user has no knowledge base to search.
	ErrNoKnowledgeBase = errors.New("no knowledge base available")
)

const queryFailedAnswer = "The query could not be completed. If the targeted knowledge bases have no documents yet, upload some and try again."

// Result is the normalized outcome of one Ask. Failed marks a transport
// or server failure surfaced as a state instead of a raw error.
type Result struct {
	Answer  string
	Sources []string
	Failed  bool
}

// Coordinator turns a question plus a knowledge-base selection into one
// aggregated answer. It performs no caching and no retries.
type Coordinator struct {
	client   *api.Client
	inFlight bool
}

func NewCoordinator(client *api.Client) *Coordinator {
	return &Coordinator{client: client}
}

// InFlight reports whether an Ask is currently running. Callers may use
// it to guard duplicate submission; the coordinator itself does not
// queue or block concurrent asks.
func (c *Coordinator) InFlight() bool {
	return c.inFlight
}

// Ask validates the question, normalizes the selection and issues the
// aggregated query. A selection that is empty or covers every id in
// allIDs goes out as an empty id list, meaning "search all".
func (c *Coordinator) Ask(ctx context.Context, question string, selection, allIDs []uint, topK int) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if len(allIDs) == 0 {
		return nil, ErrNoKnowledgeBase
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	kbIDs := normalizeSelection(selection, allIDs)

	c.inFlight = true
	defer func() { c.inFlight = false }()

	resp, err := c.client.Query(ctx, question, kbIDs, topK)
	if err != nil {
		var permErr *api.PermissionDeniedError
		var authErr *api.AuthError
		if errors.As(err, &permErr) || errors.As(err, &authErr) {
			return nil, err
		}
		return &Result{Answer: queryFailedAnswer, Failed: true}, nil
	}

	sources := make([]string, 0, len(resp.Sources))
	for _, s := range resp.Sources {
		sources = append(sources, s.Content)
	}
	return &Result{Answer: resp.Answer, Sources: sources}, nil
}

// normalizeSelection keeps "select none" and "select all" semantically
// identical: both collapse to an empty id list on the wire.
func normalizeSelection(selection, allIDs []uint) []uint {
	if len(selection) == 0 {
		return nil
	}

	selected := make(map[uint]struct{}, len(selection))
	deduped := make([]uint, 0, len(selection))
	for _, id := range selection {
		if _, ok := selected[id]; ok {
			continue
		}
		selected[id] = struct{}{}
		deduped = append(deduped, id)
	}

	all := make(map[uint]struct{}, len(allIDs))
	for _, id := range allIDs {
		all[id] = struct{}{}
	}
	if len(selected) == len(all) {
		coversAll := true
		for id := range all {
			if _, ok := selected[id]; !ok {
				coversAll = false
				break
			}
		}
		if coversAll {
			return nil
		}
	}
	return deduped
}
