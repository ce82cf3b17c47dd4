// Package agent runs the per-request pipeline: resolve or discover the domain
// allow-list, issue the search-augmented completion, and normalize the
// markdown-table answer. Provider failures degrade to fallbacks; the caller
// always gets a displayable string.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/responses"

	"github.com/sizam/nti-agent/backend/internal/answer"
	"github.com/sizam/nti-agent/backend/internal/config"
	"github.com/sizam/nti-agent/backend/internal/domains"
	"github.com/sizam/nti-agent/backend/internal/models"
	"github.com/sizam/nti-agent/backend/internal/prompt"
	"github.com/sizam/nti-agent/backend/internal/table"
)

const (
	noticeModelFallback     = "Модель %q недоступна — использована %q."
	noticeSourcesTruncated  = "Учтены только первые %d источников."
	noticeDiscoveryFallback = "Не удалось подобрать домены автоматически — использован стандартный набор источников."
	noticeSearchTimeout     = "Поиск не уложился в отведённое время. Попробуйте повторить запрос."
	noticeEmptyAnswer       = "Модель не вернула результатов поиска."
)

type completionClient interface {
	SearchCompletion(ctx context.Context, model, system, user string, history []models.Turn, domains []string) (*responses.Response, error)
	PlainCompletion(ctx context.Context, model, system, user string) (*responses.Response, error)
}

// Agent orchestrates one search submission end to end.
type Agent struct {
	log    *slog.Logger
	cfg    *config.API
	client completionClient
}

// New wires the pipeline with its collaborators.
func New(log *slog.Logger, cfg *config.API, client completionClient) *Agent {
	return &Agent{log: log, cfg: cfg, client: client}
}

// Run executes the pipeline for one request. Timeouts and empty answers are
// recovered into placeholder tables plus a notice; only transport-level
// provider errors surface as a request failure.
func (a *Agent) Run(ctx context.Context, req models.SearchRequest) (models.SearchResult, error) {
	var notices []string

	model := strings.TrimSpace(req.Model)
	switch {
	case model == "":
		model = a.cfg.DefaultModel
	case !a.cfg.ModelAllowed(model):
		notices = append(notices, fmt.Sprintf(noticeModelFallback, model, a.cfg.DefaultModel))
		model = a.cfg.DefaultModel
	}

	allowList, domainNotices := a.resolveDomains(ctx, req, model)
	notices = append(notices, domainNotices...)

	user := prompt.ContextBlock(req) + "\n" + prompt.SearchInstruction(allowList)

	a.log.Debug("searching", slog.String("model", model), slog.Int("domains", len(allowList)))

	sctx, cancel := context.WithTimeout(ctx, a.cfg.SearchTimeout)
	defer cancel()

	resp, err := a.client.SearchCompletion(sctx, model, prompt.SystemPrompt(), user, req.History, allowList)
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return models.SearchResult{}, fmt.Errorf("search: %w", err)
		}
		notices = append(notices, noticeSearchTimeout)
		return models.SearchResult{
			Answer:  placeholderTable(noticeSearchTimeout),
			Notice:  joinNotices(notices),
			Domains: allowList,
			Model:   model,
		}, nil
	}

	raw := answer.Text(resp)
	hits := answer.Hits(resp)

	if raw == "" {
		raw = a.plainFallback(ctx, model, user)
	}
	if raw == "" {
		notices = append(notices, noticeEmptyAnswer)
		return models.SearchResult{
			Answer:  placeholderTable(noticeEmptyAnswer),
			Notice:  joinNotices(notices),
			Domains: allowList,
			Model:   model,
		}, nil
	}

	return models.SearchResult{
		Answer:  normalize(raw, hits, req.Previous),
		Notice:  joinNotices(notices),
		Domains: allowList,
		Model:   model,
	}, nil
}

// resolveDomains picks the allow-list: caller-selected sources are mapped
// directly, otherwise the model proposes domains first.
func (a *Agent) resolveDomains(ctx context.Context, req models.SearchRequest, model string) ([]string, []string) {
	var notices []string

	if req.Scenario != models.ScenarioAutoSources && len(req.Sources) > 0 {
		labels := req.Sources
		if len(labels) > a.cfg.SourceLimit {
			notices = append(notices, fmt.Sprintf(noticeSourcesTruncated, a.cfg.SourceLimit))
			labels = labels[:a.cfg.SourceLimit]
		}
		return domains.Resolve(labels), notices
	}

	a.log.Debug("discovering domains", slog.String("topic", req.Topic))

	dctx, cancel := context.WithTimeout(ctx, a.cfg.DiscoveryTimeout)
	defer cancel()

	resp, err := a.client.SearchCompletion(dctx, model, prompt.DiscoverySystemPrompt(), prompt.DiscoveryPrompt(req), nil, nil)
	if err != nil {
		a.log.Warn("domain discovery failed", slog.Any("err", err))
		return domains.Defaults(), append(notices, noticeDiscoveryFallback)
	}

	discovered := domains.Sanitize(domainLines(answer.Text(resp)))
	if len(discovered) == 0 {
		return domains.Defaults(), append(notices, noticeDiscoveryFallback)
	}
	if len(discovered) > a.cfg.AutoDomainLimit {
		discovered = discovered[:a.cfg.AutoDomainLimit]
	}
	return discovered, notices
}

func (a *Agent) plainFallback(ctx context.Context, model, user string) string {
	fctx, cancel := context.WithTimeout(ctx, a.cfg.SearchTimeout)
	defer cancel()

	resp, err := a.client.PlainCompletion(fctx, model, prompt.SystemPrompt(), user)
	if err != nil {
		a.log.Warn("plain completion fallback failed", slog.Any("err", err))
		return ""
	}
	return answer.Text(resp)
}

// normalize parses the markdown table, back-fills the link column from the
// structured hits, merges into the previously shown table when one was sent,
// and reserializes. Unparseable answers are returned untouched.
func normalize(raw string, hits []answer.Hit, previous string) string {
	parsed := table.Parse(raw)
	if parsed.Empty() {
		return raw
	}

	reconciled := table.ReconcileLinks(parsed, answer.URLs(hits))

	if strings.TrimSpace(previous) != "" {
		prev := table.Parse(previous)
		if !prev.Empty() {
			reconciled = table.MergeAppend(prev, reconciled)
		}
	}
	return table.Serialize(reconciled)
}

func domainLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func placeholderTable(notice string) string {
	cells := make([]string, len(prompt.TableHeaders))
	for i := range cells {
		cells[i] = table.Placeholder
	}
	cells[0] = "1"
	cells[len(cells)-1] = notice

	t := table.Table{Headers: prompt.TableHeaders, Rows: [][]string{cells}}
	return table.Serialize(t)
}

func joinNotices(notices []string) string {
	return strings.Join(notices, " ")
}
