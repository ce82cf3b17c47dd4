package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go/responses"
	"github.com/stretchr/testify/require"

	"github.com/sizam/nti-agent/backend/internal/config"
	"github.com/sizam/nti-agent/backend/internal/models"
)

type searchCall struct {
	model   string
	system  string
	user    string
	history []models.Turn
	domains []string
}

type stubClient struct {
	searchCalls []searchCall
	searchResps []*responses.Response
	searchErrs  []error

	plainCalls int
	plainResp  *responses.Response
	plainErr   error
}

func (s *stubClient) SearchCompletion(_ context.Context, model, system, user string, history []models.Turn, domains []string) (*responses.Response, error) {
	i := len(s.searchCalls)
	s.searchCalls = append(s.searchCalls, searchCall{model: model, system: system, user: user, history: history, domains: domains})

	var err error
	if i < len(s.searchErrs) {
		err = s.searchErrs[i]
	}
	var resp *responses.Response
	if i < len(s.searchResps) {
		resp = s.searchResps[i]
	}
	return resp, err
}

func (s *stubClient) PlainCompletion(_ context.Context, model, system, user string) (*responses.Response, error) {
	s.plainCalls++
	return s.plainResp, s.plainErr
}

func testConfig() *config.API {
	return &config.API{
		Common: config.Common{
			DefaultModel:  "gpt-4o",
			AllowedModels: []string{"gpt-4o", "gpt-4o-mini"},
		},
		SourceLimit:      5,
		AutoDomainLimit:  7,
		DiscoveryTimeout: time.Second,
		SearchTimeout:    time.Second,
	}
}

func testAgent(client completionClient) *Agent {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, testConfig(), client)
}

func respFromJSON(t *testing.T, raw string) *responses.Response {
	t.Helper()
	var resp responses.Response
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	return &resp
}

func respWithText(t *testing.T, text string) *responses.Response {
	t.Helper()
	payload := map[string]any{
		"output": []map[string]any{
			{
				"type": "message",
				"role": "assistant",
				"content": []map[string]any{
					{"type": "output_text", "text": text},
				},
			},
		},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return respFromJSON(t, string(data))
}

func respWithTextAndHits(t *testing.T, text string, urls ...string) *responses.Response {
	t.Helper()
	annotations := make([]map[string]any, 0, len(urls))
	for _, u := range urls {
		annotations = append(annotations, map[string]any{"type": "url_citation", "url": u, "title": "hit"})
	}
	payload := map[string]any{
		"output": []map[string]any{
			{
				"type": "message",
				"role": "assistant",
				"content": []map[string]any{
					{"type": "output_text", "text": text, "annotations": annotations},
				},
			},
		},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return respFromJSON(t, string(data))
}

const modelTable = `| № | Название | Ссылка (URL) |
|---|----------|--------------|
| 1 | Radar LPI waveforms |  |`

func TestRunExplicitSourcesScenario(t *testing.T) {
	client := &stubClient{
		searchResps: []*responses.Response{
			respWithTextAndHits(t, modelTable, "https://ieeexplore.ieee.org/document/42"),
		},
	}

	req := models.SearchRequest{
		Topic:    "radar LPI",
		Sources:  []string{"IEEE"},
		Scenario: models.ScenarioBySources,
	}

	res, err := testAgent(client).Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, client.searchCalls, 1)
	call := client.searchCalls[0]
	require.Equal(t, "gpt-4o", call.model)
	require.Equal(t, []string{"ieeexplore.ieee.org"}, call.domains)
	require.Contains(t, call.user, "Тема запроса: radar LPI")
	require.Contains(t, call.user, "ieeexplore.ieee.org")

	require.Equal(t, []string{"ieeexplore.ieee.org"}, res.Domains)
	// structured hit overwrote the empty link cell
	require.Contains(t, res.Answer, "https://ieeexplore.ieee.org/document/42")
	require.Empty(t, res.Notice)
}

func TestRunAutoSourcesScenario(t *testing.T) {
	client := &stubClient{
		searchResps: []*responses.Response{
			respWithText(t, "1. https://arxiv.org\n2. ieeexplore.ieee.org\nне домен"),
			respWithText(t, modelTable),
		},
	}

	req := models.SearchRequest{Topic: "quantum sensing", Scenario: models.ScenarioAutoSources}

	res, err := testAgent(client).Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, client.searchCalls, 2)
	// discovery call: no domain restriction, discovery instruction
	require.Nil(t, client.searchCalls[0].domains)
	require.Contains(t, client.searchCalls[0].system, "5-7 доменов")
	// search call restricted to the sanitized discovery output
	require.Equal(t, []string{"arxiv.org", "ieeexplore.ieee.org"}, client.searchCalls[1].domains)

	require.Equal(t, []string{"arxiv.org", "ieeexplore.ieee.org"}, res.Domains)
	require.Empty(t, res.Notice)
}

func TestRunDiscoveryFailureFallsBackToDefaults(t *testing.T) {
	client := &stubClient{
		searchErrs: []error{fmt.Errorf("discover: %w", context.DeadlineExceeded)},
		searchResps: []*responses.Response{
			nil,
			respWithText(t, modelTable),
		},
	}

	req := models.SearchRequest{Topic: "x", Scenario: models.ScenarioAutoSources}

	res, err := testAgent(client).Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, client.searchCalls, 2)
	require.Contains(t, client.searchCalls[1].domains, "arxiv.org")
	require.Contains(t, res.Notice, "стандартный набор")
}

func TestRunSearchTimeoutReturnsPlaceholder(t *testing.T) {
	client := &stubClient{
		searchErrs: []error{fmt.Errorf("search completion: %w", context.DeadlineExceeded)},
	}

	req := models.SearchRequest{Topic: "x", Sources: []string{"IEEE"}, Scenario: models.ScenarioBySources}

	res, err := testAgent(client).Run(context.Background(), req)
	require.NoError(t, err)

	require.Contains(t, res.Notice, "не уложился")
	require.Contains(t, res.Answer, "| № |")
	require.Contains(t, res.Answer, "не уложился")
	// exactly one data row
	require.Equal(t, 3, len(strings.Split(res.Answer, "\n")))
}

func TestRunSearchHardErrorPropagates(t *testing.T) {
	client := &stubClient{searchErrs: []error{fmt.Errorf("boom")}}

	req := models.SearchRequest{Topic: "x", Sources: []string{"IEEE"}, Scenario: models.ScenarioBySources}

	_, err := testAgent(client).Run(context.Background(), req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

func TestRunEmptyAnswerUsesPlainFallback(t *testing.T) {
	client := &stubClient{
		searchResps: []*responses.Response{respFromJSON(t, `{"output": []}`)},
		plainResp:   respWithText(t, modelTable),
	}

	req := models.SearchRequest{Topic: "x", Sources: []string{"IEEE"}, Scenario: models.ScenarioBySources}

	res, err := testAgent(client).Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, client.plainCalls)
	require.Contains(t, res.Answer, "Radar LPI waveforms")
}

func TestRunPersistentlyEmptyAnswer(t *testing.T) {
	client := &stubClient{
		searchResps: []*responses.Response{respFromJSON(t, `{"output": []}`)},
		plainResp:   respFromJSON(t, `{"output": []}`),
	}

	req := models.SearchRequest{Topic: "x", Sources: []string{"IEEE"}, Scenario: models.ScenarioBySources}

	res, err := testAgent(client).Run(context.Background(), req)
	require.NoError(t, err)
	require.Contains(t, res.Notice, "не вернула результатов")
	require.Contains(t, res.Answer, "| № |")
}

func TestRunUnknownModelFallsBackWithNotice(t *testing.T) {
	client := &stubClient{searchResps: []*responses.Response{respWithText(t, modelTable)}}

	req := models.SearchRequest{
		Topic:    "x",
		Sources:  []string{"IEEE"},
		Scenario: models.ScenarioBySources,
		Model:    "gpt-imaginary",
	}

	res, err := testAgent(client).Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", client.searchCalls[0].model)
	require.Equal(t, "gpt-4o", res.Model)
	require.NotEmpty(t, res.Notice)
	require.Contains(t, res.Notice, "gpt-imaginary")
}

func TestRunAllowedModelIsUsed(t *testing.T) {
	client := &stubClient{searchResps: []*responses.Response{respWithText(t, modelTable)}}

	req := models.SearchRequest{
		Topic:    "x",
		Sources:  []string{"IEEE"},
		Scenario: models.ScenarioBySources,
		Model:    "gpt-4o-mini",
	}

	res, err := testAgent(client).Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", client.searchCalls[0].model)
	require.Equal(t, "gpt-4o-mini", res.Model)
	require.Empty(t, res.Notice)
}

func TestRunMergesIntoPreviousTable(t *testing.T) {
	previous := `| № | Название | Ссылка (URL) |
|---|---|---|
| 1 | Old document | https://arxiv.org/abs/0 |`

	client := &stubClient{
		searchResps: []*responses.Response{
			respWithText(t, `| № | Название | Ссылка (URL) |
|---|---|---|
| 1 | Old document | https://arxiv.org/abs/0 |
| 2 | New document | https://arxiv.org/abs/1 |`),
		},
	}

	req := models.SearchRequest{
		Topic:    "x",
		Sources:  []string{"arXiv"},
		Scenario: models.ScenarioBySources,
		Previous: previous,
	}

	res, err := testAgent(client).Run(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, strings.Count(res.Answer, "Old document"))
	require.Equal(t, 1, strings.Count(res.Answer, "New document"))
}

func TestRunNonTableAnswerPassesThrough(t *testing.T) {
	client := &stubClient{
		searchResps: []*responses.Response{respWithText(t, "По запросу ничего не найдено.")},
	}

	req := models.SearchRequest{Topic: "x", Sources: []string{"IEEE"}, Scenario: models.ScenarioBySources}

	res, err := testAgent(client).Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "По запросу ничего не найдено.", res.Answer)
}

func TestRunTruncatesSourceList(t *testing.T) {
	client := &stubClient{searchResps: []*responses.Response{respWithText(t, modelTable)}}

	req := models.SearchRequest{
		Topic:    "x",
		Sources:  []string{"IEEE", "arXiv", "PubMed", "Wiley", "Scopus", "SpringerLink"},
		Scenario: models.ScenarioBySources,
	}

	res, err := testAgent(client).Run(context.Background(), req)
	require.NoError(t, err)
	require.Contains(t, res.Notice, "первые 5")
	require.NotContains(t, client.searchCalls[0].domains, "link.springer.com")
}
