// Command nti is a terminal client for the search API: it submits a query,
// renders the markdown-table answer, and can page through follow-up batches
// the way the web form's "more documents" button does.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/sizam/nti-agent/backend/internal/config"
	"github.com/sizam/nti-agent/backend/internal/logger"
	"github.com/sizam/nti-agent/backend/internal/models"
	"github.com/sizam/nti-agent/backend/internal/table"
)

const morePrompt = "Дай следующую подборку документов."

var flags struct {
	server   string
	topic    string
	keywords string
	from     string
	to       string
	sources  []string
	auto     bool
	docTypes []string
	langs    []string
	noRu     bool
	noStats  bool
	model    string
	pages    int
	cards    bool
	raw      bool
}

var rootCmd = &cobra.Command{
	Use:   "nti",
	Short: "Запрос научно-технической информации через поискового агента",
	Long: `nti отправляет параметры запроса НТИ на сервер агента и печатает
таблицу найденных документов. Несколько страниц запрашиваются так же, как
кнопка "Ещё документы" в веб-форме: история диалога и уже показанная таблица
уходят на сервер вместе со следующим запросом.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&flags.server, "server", "", "адрес API (по умолчанию NTI_SERVER_URL)")
	rootCmd.Flags().StringVarP(&flags.topic, "topic", "t", "", "тема запроса")
	rootCmd.Flags().StringVarP(&flags.keywords, "keywords", "k", "", "ключевые слова")
	rootCmd.Flags().StringVar(&flags.from, "from", "", "период с (ГГГГ-ММ-ДД)")
	rootCmd.Flags().StringVar(&flags.to, "to", "", "период по (ГГГГ-ММ-ДД)")
	rootCmd.Flags().StringArrayVarP(&flags.sources, "source", "s", nil, "источник (IEEE, arXiv, ...); можно несколько раз")
	rootCmd.Flags().BoolVar(&flags.auto, "auto", false, "подобрать источники автоматически")
	rootCmd.Flags().StringArrayVar(&flags.docTypes, "doc-type", nil, "тип документов")
	rootCmd.Flags().StringArrayVar(&flags.langs, "lang", nil, "язык источников")
	rootCmd.Flags().BoolVar(&flags.noRu, "no-ru", false, "без русских переводов")
	rootCmd.Flags().BoolVar(&flags.noStats, "no-metrics", false, "без метрик и релевантности")
	rootCmd.Flags().StringVar(&flags.model, "model", "", "идентификатор модели")
	rootCmd.Flags().IntVar(&flags.pages, "pages", 1, "сколько подборок запросить")
	rootCmd.Flags().BoolVar(&flags.cards, "cards", false, "вывод карточками вместо таблицы")
	rootCmd.Flags().BoolVar(&flags.raw, "raw", false, "печатать markdown без оформления")

	_ = rootCmd.MarkFlagRequired("topic")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	log := logger.New("cli")
	cfg, err := config.LoadCLI()
	if err != nil {
		return err
	}
	if flags.server != "" {
		cfg.ServerURL = flags.server
	}
	if flags.pages < 1 {
		flags.pages = 1
	}

	scenario := models.ScenarioBySources
	if flags.auto || len(flags.sources) == 0 {
		scenario = models.ScenarioAutoSources
	}

	needRu := !flags.noRu
	needMetrics := !flags.noStats
	req := models.SearchRequest{
		Topic:       flags.topic,
		Keywords:    flags.keywords,
		PeriodFrom:  flags.from,
		PeriodTo:    flags.to,
		Sources:     flags.sources,
		Scenario:    scenario,
		DocTypes:    flags.docTypes,
		Languages:   flags.langs,
		NeedRu:      &needRu,
		NeedMetrics: &needMetrics,
		Model:       flags.model,
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	for page := 1; page <= flags.pages; page++ {
		if page > 1 {
			req.History = append(req.History, models.Turn{Role: "user", Content: morePrompt})
		}

		resp, err := search(httpClient, cfg.ServerURL, req)
		if err != nil {
			return err
		}
		if resp.Notice != "" {
			fmt.Fprintln(os.Stderr, resp.Notice)
		}

		render(cmd.OutOrStdout(), resp.Answer)
		log.Debug("page received", slog.Int("page", page), slog.Int("domains", len(resp.Domains)))

		// keep the dialog growing the way the web form does
		summary := fmt.Sprintf("Тема: %s; ключевые: %s; период: %s — %s",
			req.Topic, req.Keywords, req.PeriodFrom, req.PeriodTo)
		if page == 1 {
			req.History = append(req.History, models.Turn{Role: "user", Content: summary})
		}
		req.History = append(req.History, models.Turn{Role: "assistant", Content: resp.Answer})
		req.Previous = resp.Answer
	}

	return nil
}

type searchResponse struct {
	RequestID string   `json:"requestId"`
	Answer    string   `json:"answer"`
	Notice    string   `json:"notice"`
	Domains   []string `json:"domains"`
	Model     string   `json:"model"`
	Error     string   `json:"error"`
}

func search(client *http.Client, serverURL string, req models.SearchRequest) (*searchResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpResp, err := client.Post(strings.TrimRight(serverURL, "/")+"/api/search", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("call api: %w", err)
	}
	defer httpResp.Body.Close()

	var resp searchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		if resp.Error != "" {
			return nil, fmt.Errorf("api: %s", resp.Error)
		}
		return nil, fmt.Errorf("api: status %s", httpResp.Status)
	}
	return &resp, nil
}

func render(w io.Writer, answer string) {
	if flags.cards {
		fmt.Fprint(w, renderCards(answer))
		return
	}
	if flags.raw {
		fmt.Fprintln(w, answer)
		return
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(120),
	)
	if err != nil {
		fmt.Fprintln(w, answer)
		return
	}
	out, err := renderer.Render(answer)
	if err != nil {
		fmt.Fprintln(w, answer)
		return
	}
	fmt.Fprint(w, out)
}

// renderCards prints each table row as a labeled block. Answers without a
// table come back as-is.
func renderCards(answer string) string {
	t := table.Parse(answer)
	if t.Empty() {
		return answer + "\n"
	}

	var sb strings.Builder
	for i, row := range t.Rows {
		if i > 0 {
			sb.WriteString("\n")
		}
		for col, header := range t.Headers {
			value := ""
			if col < len(row) {
				value = strings.TrimSpace(row[col])
			}
			if value == "" || value == table.Placeholder {
				continue
			}
			fmt.Fprintf(&sb, "%s: %s\n", header, value)
		}
	}
	return sb.String()
}
