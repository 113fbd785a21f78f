package agent

import (
	"github.com/google/uuid"

	"github.com/pvaezi/sql-gpt/pkg/conversation"
	"github.com/pvaezi/sql-gpt/pkg/engine"
)

// Step names the next transition handler the router dispatches to.
type Step string

const (
	StepPrompt       Step = "prompt"
	StepLoadSource   Step = "load_source"
	StepBuildQuery   Step = "build_query"
	StepExecuteQuery Step = "execute_query"
	StepInterpret    Step = "interpret"
	StepTerminate    Step = "terminate"
)

const welcomeMessage = "Welcome to SQL GPT. This tool allows you to ask questions from your data, by querying the data for you.\n" +
	"Please load your data first using the command /load <table_name> <table_columns_description>.\n" +
	"After loading your data, you can ask me questions about your data, and I will query your data for you for insights.\n" +
	"You can quit the program by typing /q."

// TurnRecord is the working state of the question currently being answered.
// Result and Err are never both set.
type TurnRecord struct {
	Question   string
	QueryText  string
	Result     *engine.Result
	Err        error
	RetryCount int
	AIResponse string
}

// LoadRecord is a pending source registration.
type LoadRecord struct {
	SourceName     string
	DescriptionRef string
}

func (l LoadRecord) empty() bool {
	return l.SourceName == "" && l.DescriptionRef == ""
}

// State is the session context threaded through every step. It is owned by a
// single Run call and is not safe for concurrent use.
type State struct {
	ID          string
	Transcript  *conversation.Transcript
	Turn        TurnRecord
	Load        LoadRecord
	SchemaNotes string
	Next        Step
}

func NewState() *State {
	return &State{
		ID:         uuid.NewString(),
		Transcript: conversation.NewTranscript(conversation.System(welcomeMessage)),
		Next:       StepPrompt,
	}
}
