// Package chat runs the two chat paths: a plain model passthrough and the
// database path that guards, translates, executes and narrates a question.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hrchat/hrchat/internal/guard"
	"github.com/hrchat/hrchat/internal/hrquery"
	"github.com/hrchat/hrchat/internal/llm"
	"github.com/hrchat/hrchat/internal/narrator"
	"github.com/hrchat/hrchat/internal/nl2sql"
	"github.com/hrchat/hrchat/internal/observability"
)

var (
	ErrEmptyQuestion = errors.New("message is required")
	// ErrPipelinePanic is returned when a pipeline stage panicked.
	ErrPipelinePanic = errors.New("chat pipeline failed unexpectedly")
)

type QueryRunner interface {
	Run(ctx context.Context, q hrquery.Query, scope hrquery.Scope) (hrquery.Result, error)
}

type NameLookup interface {
	EmployeeNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

type ResultNarrator interface {
	Narrate(ctx context.Context, in narrator.Input) (string, error)
}

type Request struct {
	Question   string
	EmployeeID *int64
	// Scope comes from the authenticated identity and is applied on top of
	// whatever the guard decides.
	Scope hrquery.Scope
}

type Answer struct {
	Reply        string
	Query        *hrquery.Query
	ResultsCount int
	Personalized bool
	// Restricted is set when the guard answered instead of the database.
	Restricted bool
	Route      hrquery.Route
}

type Service struct {
	Guard      *guard.Guard
	Translator nl2sql.Translator
	Executor   QueryRunner
	Names      NameLookup
	Narrator   ResultNarrator
	Model      llm.Completer
	Logger     *slog.Logger
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return observability.DiscardLogger()
	}
	return s.Logger
}

// Chat forwards the conversation to the model unchanged.
func (s *Service) Chat(ctx context.Context, message string, history []llm.Message) (reply string, err error) {
	defer recoverPanic(ctx, s.logger(), &err)

	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyQuestion
	}
	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		messages = append(messages, m)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

	reply, err = s.Model.Complete(ctx, llm.Request{Messages: messages})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// AskDatabase answers a question from the HR tables. Guard refusals are
// returned as answers, not errors.
func (s *Service) AskDatabase(ctx context.Context, req Request) (answer Answer, err error) {
	start := time.Now()
	logger := s.logger().With(slog.String("trace_id", observability.TraceIDFromContext(ctx)))
	defer func() {
		observability.ObserveStage("total", time.Since(start))
		observability.ObserveChatOutcome(outcome(answer, err))
	}()
	defer recoverPanic(ctx, logger, &err)

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}

	decision := s.Guard.Check(question, req.EmployeeID)
	if decision.Action != guard.ActionPass {
		logger.InfoContext(ctx, "chat question restricted", slog.String("action", string(decision.Action)))
		return Answer{Reply: decision.Message, Restricted: true}, nil
	}

	stageStart := time.Now()
	query, err := s.Translator.Translate(ctx, question)
	observability.ObserveStage("translate", time.Since(stageStart))
	if err != nil {
		var parseErr *nl2sql.TranslationParseError
		if errors.As(err, &parseErr) {
			logger.WarnContext(ctx, "translation reply not understood",
				slog.String("raw_reply", parseErr.Raw),
				slog.Any("error", parseErr.Err),
			)
		}
		return Answer{}, fmt.Errorf("translate question: %w", err)
	}
	query = decision.Apply(query)

	scope := req.Scope
	if !scope.Restricted() {
		scope = decision.Scope(query)
	}

	stageStart = time.Now()
	result, err := s.Executor.Run(ctx, query, scope)
	observability.ObserveStage("execute", time.Since(stageStart))
	if err != nil {
		return Answer{}, fmt.Errorf("execute query: %w", err)
	}
	observability.ObserveQuery(string(result.Route), len(result.Rows))

	rows := s.withEmployeeNames(ctx, logger, result.Rows)

	stageStart = time.Now()
	reply, err := s.Narrator.Narrate(ctx, narrator.Input{
		Question:     question,
		Rows:         rows,
		Query:        query,
		Personalized: decision.Personalized(),
	})
	observability.ObserveStage("narrate", time.Since(stageStart))
	if err != nil {
		return Answer{}, fmt.Errorf("narrate results: %w", err)
	}

	logger.InfoContext(ctx, "chat question answered",
		slog.String("table", query.Table),
		slog.String("route", string(result.Route)),
		slog.String("operation", result.Operation),
		slog.Int("rows", len(rows)),
		slog.Bool("personalized", decision.Personalized()),
		slog.Bool("scoped", scope.Restricted()),
	)
	return Answer{
		Reply:        reply,
		Query:        &query,
		ResultsCount: len(rows),
		Personalized: decision.Personalized(),
		Route:        result.Route,
	}, nil
}

// withEmployeeNames adds employee_name to rows carrying an emp_id. A failed
// lookup leaves the rows as they are.
func (s *Service) withEmployeeNames(ctx context.Context, logger *slog.Logger, rows []hrquery.Row) []hrquery.Row {
	if s.Names == nil || len(rows) == 0 {
		return rows
	}
	seen := map[int64]struct{}{}
	for _, row := range rows {
		if id, ok := employeeID(row[hrquery.EmployeeIDColumn]); ok {
			seen[id] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return rows
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	names, err := s.Names.EmployeeNames(ctx, ids)
	if err != nil {
		logger.WarnContext(ctx, "employee name lookup failed", slog.Any("error", err))
		return rows
	}
	out := make([]hrquery.Row, len(rows))
	for i, row := range rows {
		enriched := make(hrquery.Row, len(row)+1)
		for key, value := range row {
			enriched[key] = value
		}
		if id, ok := employeeID(row[hrquery.EmployeeIDColumn]); ok {
			if name, found := names[id]; found {
				enriched[narrator.EmployeeNameField] = name
			}
		}
		out[i] = enriched
	}
	return out
}

func employeeID(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return id, err == nil
	}
	return 0, false
}

func recoverPanic(ctx context.Context, logger *slog.Logger, err *error) {
	if recovered := recover(); recovered != nil {
		logger.ErrorContext(ctx, "chat pipeline panic", slog.Any("panic", recovered))
		*err = fmt.Errorf("%w: %v", ErrPipelinePanic, recovered)
	}
}

func outcome(answer Answer, err error) string {
	var parseErr *nl2sql.TranslationParseError
	var modelErr *llm.Error
	switch {
	case err == nil && answer.Restricted && answer.Query == nil:
		if answer.Reply == guard.ClarifyMessage {
			return observability.OutcomeClarify
		}
		return observability.OutcomeRejected
	case err == nil:
		return observability.OutcomeAnswered
	case errors.As(err, &parseErr):
		return observability.OutcomeParseError
	case errors.As(err, &modelErr):
		return observability.OutcomeLLMError
	}
	return observability.OutcomeFailed
}
