package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pvaezi/sql-gpt/pkg/conversation"
	"github.com/pvaezi/sql-gpt/pkg/engine"
)

const (
	quitMarker = "/q"
	loadMarker = "/load"

	loadFirstMessage     = "Please load your data first using the command /load <table_name> <table_columns_description>"
	loadUsageMessage     = "Invalid load command. Expected usage: /load <table_name> <table_columns_description>"
	abandonMessage       = "Sorry, I was unable to execute the user requests after several attempts."
	clarificationMessage = "Your question is ambiguous. Please provide additional details: "
)

// prompt shows the latest turn, reads one line and classifies it.
func (a *Agent) prompt(ctx context.Context, s *State) error {
	if last, ok := s.Transcript.Last(); ok {
		if err := a.cfg.Console.Show(last); err != nil {
			return fmt.Errorf("failed to show turn: %w", err)
		}
	}

	line, err := a.cfg.Console.ReadLine(ctx)
	if errors.Is(err, io.EOF) {
		s.Next = StepTerminate
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	lower := strings.ToLower(line)
	switch {
	case strings.HasPrefix(lower, quitMarker):
		s.Next = StepTerminate
	case strings.HasPrefix(lower, loadMarker):
		load, ok := parseLoad(line)
		if !ok {
			a.log.Warn("agent: malformed load command", "input", line)
			s.Transcript.Append(conversation.System(loadUsageMessage))
			s.Next = StepPrompt
			return nil
		}
		s.Load = load
		s.Next = StepLoadSource
	case s.SchemaNotes == "":
		s.Transcript.Append(conversation.System(loadFirstMessage))
		s.Next = StepPrompt
	default:
		s.Transcript.Append(conversation.User(line))
		s.Turn = TurnRecord{Question: line}
		s.Next = StepBuildQuery
	}
	return nil
}

// parseLoad accepts exactly "/load <source> <description-ref>".
func parseLoad(line string) (LoadRecord, bool) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return LoadRecord{}, false
	}
	return LoadRecord{SourceName: fields[1], DescriptionRef: fields[2]}, true
}

// loadSource registers the pending source and appends its description to the
// schema notes. Failures are reported in the transcript and leave the notes
// untouched.
func (a *Agent) loadSource(ctx context.Context, s *State) error {
	load := s.Load
	s.Load = LoadRecord{}
	s.Next = StepPrompt
	if load.empty() {
		return errors.New("no pending load")
	}

	id, err := a.cfg.Engine.Register(ctx, load.SourceName)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		a.log.Warn("agent: failed to register source", "source", load.SourceName, "error", err)
		s.Transcript.Append(conversation.System("Loading data failed with error: " + err.Error()))
		return nil
	}

	desc, err := a.cfg.Describer.Read(ctx, load.DescriptionRef)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		a.log.Warn("agent: failed to read column descriptions", "ref", load.DescriptionRef, "error", err)
		s.Transcript.Append(conversation.System("Loading table column schemas failed with error: " + err.Error()))
		return nil
	}

	entry := fmt.Sprintf("Table: %s\n%s\n", id, desc)
	s.SchemaNotes += entry
	s.Transcript.Append(conversation.System(fmt.Sprintf("Table '%s' loaded with metadata:\n%s", id, entry)))
	a.log.Info("agent: source loaded", "source", load.SourceName, "table", id)
	return nil
}

// buildQuery asks the model for SQL or a clarification. Model failures are
// fatal.
func (a *Agent) buildQuery(ctx context.Context, s *State) error {
	instruction := a.prompts.buildQueryInstruction(s.SchemaNotes, a.cfg.RowLimit, s.Turn)
	turns := append([]conversation.Turn{conversation.System(instruction)}, s.Transcript.Turns()...)

	resp, err := a.cfg.LLM.Invoke(ctx, turns)
	if err != nil {
		return fmt.Errorf("language model invocation failed: %w", err)
	}

	switch r := DecodeResponse(resp.Content()).(type) {
	case Clarification:
		// The retry count is kept; only the failed attempt is discarded.
		s.Turn.QueryText = ""
		s.Turn.Err = nil
		s.Transcript.Append(conversation.Assistant(clarificationMessage + r.Question))
		s.Next = StepPrompt
	case QueryText:
		a.log.Debug("agent: generated query", "sql", r.SQL, "attempt", s.Turn.RetryCount+1)
		s.Turn.QueryText = r.SQL
		s.Transcript.Append(conversation.Assistant(r.SQL))
		s.Next = StepExecuteQuery
	default:
		return fmt.Errorf("unexpected response type %T", r)
	}
	return nil
}

// executeQuery runs the generated query. Execution errors go back to
// buildQuery until the retry budget is spent, then the question is dropped.
func (a *Agent) executeQuery(ctx context.Context, s *State) error {
	result, err := a.cfg.Engine.Execute(ctx, s.Turn.QueryText)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.Turn.Result = nil
		s.Turn.Err = err
		s.Turn.RetryCount++
		a.log.Warn("agent: query failed", "error", err, "retry_count", s.Turn.RetryCount)

		if s.Turn.RetryCount > a.cfg.MaxRetry {
			s.Transcript.Append(conversation.Assistant(abandonMessage))
			s.Next = StepPrompt
			return nil
		}
		s.Transcript.Append(conversation.Assistant(fmt.Sprintf("Generated SQL query raised this error:\n%s\n", err)))
		s.Next = StepBuildQuery
		return nil
	}

	if result == nil {
		result = &engine.Result{}
	}
	s.Turn.Result = result
	s.Turn.Err = nil
	s.Next = StepInterpret
	return nil
}

// interpret restates the rows in the transcript and asks the model for a
// summary using only the question, the query and the rows.
func (a *Agent) interpret(ctx context.Context, s *State) error {
	restatement := conversation.Assistant("SQL results are:\n" + s.Turn.Result.Format())
	s.Transcript.Append(restatement)

	resp, err := a.cfg.LLM.Invoke(ctx, []conversation.Turn{
		conversation.System(a.prompts.interpretInstruction(s.SchemaNotes)),
		conversation.User(s.Turn.Question),
		conversation.Assistant("Generated SQL Text is: " + s.Turn.QueryText),
		restatement,
	})
	if err != nil {
		return fmt.Errorf("language model invocation failed: %w", err)
	}

	s.Transcript.Append(conversation.Assistant(resp.Content()))
	s.Turn.AIResponse = resp.Content()
	s.Next = StepPrompt
	return nil
}
