package analysis

import (
	"fmt"
	"strings"

	"github.com/aezell/visualgit/internal/model"
)

// DefaultClaudeModel is used when neither the request nor the
// configuration names a model.
const DefaultClaudeModel = "sonnet"

// Command is a resolved engine invocation. The prompt is never part of
// Args; it is always written to the process's standard input.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Engine maps a provider to the command line that runs it.
type Engine struct {
	ClaudeCommand string
	ClaudeModel   string
	OpenAICommand string
	OpenAIModel   string
}

// NewEngine returns an Engine using the stock executable names.
func NewEngine() *Engine {
	return &Engine{
		ClaudeCommand: "claude",
		ClaudeModel:   DefaultClaudeModel,
		OpenAICommand: "openai",
		OpenAIModel:   "gpt-4o",
	}
}

// Resolve builds the invocation for provider. For claude the conversation
// decides between starting a named engine session and resuming it; openai
// has no continuation and ignores conv.
func (e *Engine) Resolve(provider model.Provider, modelName string, conv Conversation) (Command, error) {
	switch provider {
	case model.ProviderClaude:
		if modelName == "" {
			modelName = e.ClaudeModel
		}
		if modelName == "" {
			modelName = DefaultClaudeModel
		}
		args := []string{"-p", "--model", modelName}
		switch {
		case conv.Continued && conv.EngineSessionID != "":
			args = append(args, "--resume", conv.EngineSessionID)
		case conv.Continued:
			args = append(args, "--continue")
		case conv.EngineSessionID != "":
			args = append(args, "--session-id", conv.EngineSessionID)
		}
		return Command{Name: e.ClaudeCommand, Args: args}, nil

	case model.ProviderOpenAI:
		// "-" makes the CLI read the user message from stdin
		return Command{
			Name: e.OpenAICommand,
			Args: []string{"api", "chat.completions.create", "-m", e.OpenAIModel, "-g", "user", "-"},
		}, nil

	default:
		return Command{}, fmt.Errorf("%w: %q", model.ErrUnknownProvider, provider)
	}
}
