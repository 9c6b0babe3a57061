package analysis

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aezell/visualgit/internal/model"
)

func TestBuildPromptEmbedsContentVerbatim(t *testing.T) {
	content := "diff --git a/a.go b/a.go\n@@ -1 +1 @@\n-old\n+new ```nested fence```"

	for _, mode := range []model.Mode{model.ModeFull, model.ModeFile, model.ModeSelection} {
		t.Run(string(mode), func(t *testing.T) {
			p := BuildPrompt(mode, content, "a.go")
			assert.Contains(t, p, "\n"+content+"\n```")
			assert.True(t, strings.HasSuffix(p, content+"\n```"))
			assert.Contains(t, p, rules)
		})
	}
}

func TestBuildPromptFences(t *testing.T) {
	assert.Contains(t, BuildPrompt(model.ModeFull, "x", ""), "```diff\nx\n```")
	assert.Contains(t, BuildPrompt(model.ModeFile, "x", "a.go"), "```diff\nx\n```")
	assert.Contains(t, BuildPrompt(model.ModeSelection, "x", ""), "\n```\nx\n```")
}

func TestBuildPromptFilePath(t *testing.T) {
	p := BuildPrompt(model.ModeFile, "x", "internal/auth.go")
	assert.Contains(t, p, "`internal/auth.go`")

	p = BuildPrompt(model.ModeFile, "x", "")
	assert.Contains(t, p, "this file")

	full := BuildPrompt(model.ModeFull, "x", "ignored.go")
	assert.NotContains(t, full, "ignored.go")
	assert.Equal(t, BuildPrompt(model.ModeFull, "x", ""), full)
}

func TestBuildPromptDeterministic(t *testing.T) {
	a := BuildPrompt(model.ModeSelection, "func f() {}", "f.go")
	b := BuildPrompt(model.ModeSelection, "func f() {}", "f.go")
	assert.Equal(t, a, b)
}

func TestChunks(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want []string
	}{
		{"empty", "", 3, nil},
		{"single", "ok", 3, []string{"ok "}},
		{"exact", "a b c", 3, []string{"a b c "}},
		{"remainder", "a b c d e", 3, []string{"a b c ", "d e "}},
		{"newlines kept", "## Summary\n- one two", 3, []string{"## Summary\n- one ", "two "}},
		{"double space", "a  b", 3, []string{"a  b "}},
		{"size one", "a b", 1, []string{"a ", "b "}},
		{"invalid size", "a b c d", 0, []string{"a b c ", "d "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(Chunks(tt.text, tt.n))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChunksStopEarly(t *testing.T) {
	var got []string
	for f := range Chunks("a b c d e f g", 1) {
		got = append(got, f)
		if len(got) == 2 {
			break
		}
	}
	require.Len(t, got, 2)
	assert.Equal(t, "b ", got[1])
}

func TestEngineResolve(t *testing.T) {
	e := NewEngine()

	cmd, err := e.Resolve(model.ProviderClaude, "", Conversation{EngineSessionID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "claude -p --model sonnet --session-id abc", cmd.String())

	cmd, err = e.Resolve(model.ProviderClaude, "opus", Conversation{EngineSessionID: "abc", Continued: true})
	require.NoError(t, err)
	assert.Equal(t, "claude -p --model opus --resume abc", cmd.String())

	cmd, err = e.Resolve(model.ProviderClaude, "", Conversation{Continued: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"-p", "--model", "sonnet", "--continue"}, cmd.Args)

	cmd, err = e.Resolve(model.ProviderOpenAI, "ignored", Conversation{EngineSessionID: "abc", Continued: true})
	require.NoError(t, err)
	assert.Equal(t, "openai api chat.completions.create -m gpt-4o -g user -", cmd.String())

	_, err = e.Resolve("gemini", "", Conversation{})
	assert.ErrorIs(t, err, model.ErrUnknownProvider)
}

func TestConversations(t *testing.T) {
	c := NewConversations()

	a := c.Get("")
	assert.Equal(t, DefaultConversation, a.ID)
	assert.NotEmpty(t, a.EngineSessionID)
	assert.False(t, a.Continued)
	assert.Equal(t, a, c.Get(DefaultConversation))

	c.MarkContinued("")
	assert.True(t, c.Get("").Continued)
	assert.False(t, c.Get("other").Continued)
	assert.Equal(t, 2, c.Len())

	// a continued conversation keeps its engine session
	c.Abandon("")
	assert.Equal(t, a.EngineSessionID, c.Get("").EngineSessionID)

	assert.True(t, c.Reset(""))
	assert.False(t, c.Reset("missing"))
	assert.NotEqual(t, a.EngineSessionID, c.Get("").EngineSessionID)
}
