package mccontrol

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executorFunc 把函数适配为 Executor
type executorFunc func(ctx context.Context, command string) (string, error)

func (f executorFunc) Execute(ctx context.Context, command string) (string, error) {
	return f(ctx, command)
}

func TestParseModeCommand(t *testing.T) {
	assert.Equal(t, "list json", NewStatusParser(ModeStructured).Command())
	assert.Equal(t, "list", NewStatusParser(ModeUnstructured).Command())
}

func TestParseStructured(t *testing.T) {
	raw := `{"current_players":2,"max_players":20,"list":[{"name":"Alice","nickname":"<red>Ali</red>"},{"name":"Bob"}],"tps":[20.0,19.98,19.5,19.9,20.0]}`

	status, err := ParseStructured(raw)
	require.NoError(t, err)

	online, ok := status.Online()
	require.True(t, ok)
	assert.Equal(t, 2, online.CurrentPlayers)
	assert.Equal(t, 20, online.MaxPlayers)
	require.Len(t, online.List, 2)
	assert.Equal(t, "Alice", online.List[0].Name)
	assert.Equal(t, "<red>Ali</red>", online.List[0].Nickname)
	assert.Equal(t, "Bob", online.List[1].Name)
	assert.Empty(t, online.List[1].Nickname)
	require.NotNil(t, online.TPS)
	assert.Equal(t, TPSSample{20.0, 19.98, 19.5, 19.9, 20.0}, *online.TPS)
}

func TestParseStructuredNullFields(t *testing.T) {
	t.Run("all optional fields null", func(t *testing.T) {
		raw := `{"current_players":1,"max_players":10,"list":[{"name":"P1","nickname":null,"uuid":null}],"tps":null}`

		status, err := ParseStructured(raw)
		require.NoError(t, err)

		online, ok := status.Online()
		require.True(t, ok)
		assert.Equal(t, 1, online.CurrentPlayers)
		assert.Equal(t, 10, online.MaxPlayers)
		assert.Equal(t, []PlayerEntry{{Name: "P1"}}, online.List)
		assert.Nil(t, online.TPS)
	})

	t.Run("uuid with null styled nickname", func(t *testing.T) {
		raw := `{"current_players":1,"max_players":10,"list":[{"name":"P1","nickname_styled":null,"uuid":"66397f00-f974-3e3d-944b-5f58f7613e27"}]}`

		status, err := ParseStructured(raw)
		require.NoError(t, err)

		online, _ := status.Online()
		require.Len(t, online.List, 1)
		entry := online.List[0]
		assert.Nil(t, entry.NicknameStyled)
		assert.Empty(t, entry.Nickname)
		require.NotNil(t, entry.UUID)
		assert.Equal(t, "66397f00-f974-3e3d-944b-5f58f7613e27", entry.UUID.String())
	})
}

func TestParseStructuredStyledNickname(t *testing.T) {
	raw := `{"current_players":1,"max_players":5,"list":[{"name":"test","nickname":"<rb>test</rb>","nickname_styled":{"extra":[{"extra":[{"extra":[{"color":"#FF0000","text":"t"},{"color":"#CBFF00","text":"e"},{"color":"#00FF66","text":"s"},{"color":"#0065FF","text":"t"}],"text":""}],"text":""}],"text":"#"},"uuid":"66397f00-f974-3e3d-944b-5f58f7613e27"}]}`

	status, err := ParseStructured(raw)
	require.NoError(t, err)

	online, _ := status.Online()
	require.Len(t, online.List, 1)
	entry := online.List[0]

	require.NotNil(t, entry.UUID)
	assert.Equal(t, "66397f00-f974-3e3d-944b-5f58f7613e27", entry.UUID.String())
	require.NotNil(t, entry.NicknameStyled)
	assert.Equal(t, "#test", entry.NicknameStyled.PlainText())
	assert.Equal(t,
		"#\x1b[38;2;255;0;0mt\x1b[38;2;203;255;0me\x1b[38;2;0;255;102ms\x1b[38;2;0;101;255mt\x1b[m",
		entry.NicknameStyled.ANSI())
	assert.Nil(t, online.TPS)
}

func TestParseStructuredErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "Unknown command"},
		{"missing current", `{"max_players":20,"list":[]}`},
		{"missing max", `{"current_players":0,"list":[]}`},
		{"missing list", `{"current_players":0,"max_players":20}`},
		{"negative", `{"current_players":-1,"max_players":20,"list":[]}`},
		{"missing name", `{"current_players":1,"max_players":20,"list":[{"nickname":"x"}]}`},
		{"short tps", `{"current_players":0,"max_players":20,"list":[],"tps":[20,20,20]}`},
		{"wrong type", `{"current_players":"one","max_players":20,"list":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := ParseStructured(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
			assert.False(t, status.IsOnline())

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, ModeStructured, parseErr.Mode)
			assert.Equal(t, tt.raw, parseErr.Raw)
			assert.Contains(t, err.Error(), "反序列化错误")
		})
	}
}

func TestParseUnstructured(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		current int
		max     int
		names   []string
	}{
		{"empty", "There are 0 of a max of 20 players online:", 0, 20, []string{}},
		{"one", "There are 1 of a max of 20 players online: Steve", 1, 20, []string{"Steve"}},
		{"sorted", "There are 3 of a max of 10 players online: zed, Alice, bob_2", 3, 10, []string{"Alice", "bob_2", "zed"}},
		{"trailing newline", "There are 1 of a max of 20 players online: Steve\n", 1, 20, []string{"Steve"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := ParseUnstructured(tt.raw)
			require.NoError(t, err)

			online, ok := status.Online()
			require.True(t, ok)
			assert.Equal(t, tt.current, online.CurrentPlayers)
			assert.Equal(t, tt.max, online.MaxPlayers)
			assert.Nil(t, online.TPS)

			names := make([]string, 0, len(online.List))
			for _, entry := range online.List {
				names = append(names, entry.Name)
				assert.Empty(t, entry.Nickname)
				assert.Nil(t, entry.UUID)
			}
			assert.Equal(t, tt.names, names)
		})
	}
}

func TestParseUnstructuredErrors(t *testing.T) {
	for _, raw := range []string{
		"",
		"Unknown or incomplete command",
		"There are x of a max of 20 players online:",
		"There are 1 of a max of 20 players online: Steve,",
	} {
		_, err := ParseUnstructured(raw)
		require.Error(t, err, raw)
		assert.ErrorIs(t, err, ErrParse)
		assert.Contains(t, err.Error(), "正则匹配错误")
	}
}

func TestParseIsIdempotent(t *testing.T) {
	tests := []struct {
		mode ParseMode
		raw  string
	}{
		{ModeUnstructured, "There are 2 of a max of 20 players online: b, a"},
		{ModeStructured, `{"current_players":2,"max_players":20,"list":[{"name":"a","nickname":"<red>A</red>","nickname_styled":{"text":"A","color":"red"},"uuid":"66397f00-f974-3e3d-944b-5f58f7613e27"},{"name":"b"}],"tps":[20,19.5,19,18.5,18]}`},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			parser := NewStatusParser(tt.mode)

			first, err := parser.Parse(tt.raw)
			require.NoError(t, err)
			second, err := parser.Parse(tt.raw)
			require.NoError(t, err)

			a, ok := first.Online()
			require.True(t, ok)
			b, _ := second.Online()
			assert.Equal(t, a, b)
		})
	}
}

func TestQueryStatus(t *testing.T) {
	parser := NewStatusParser(ModeUnstructured)

	t.Run("online", func(t *testing.T) {
		exec := executorFunc(func(_ context.Context, command string) (string, error) {
			assert.Equal(t, "list", command)
			return "There are 0 of a max of 20 players online:", nil
		})
		status, err := QueryStatus(context.Background(), exec, parser)
		require.NoError(t, err)
		assert.True(t, status.IsOnline())
	})

	t.Run("transport failure is offline", func(t *testing.T) {
		exec := executorFunc(func(context.Context, string) (string, error) {
			return "", &SessionError{Kind: KindTransport, Err: errBrokenPipe}
		})
		status, err := QueryStatus(context.Background(), exec, parser)
		require.NoError(t, err)
		assert.False(t, status.IsOnline())
	})

	t.Run("auth failure is not offline", func(t *testing.T) {
		exec := executorFunc(func(context.Context, string) (string, error) {
			return "", &SessionError{Kind: KindAuth}
		})
		_, err := QueryStatus(context.Background(), exec, parser)
		assert.ErrorIs(t, err, ErrAuth)
	})

	t.Run("unparseable response is not offline", func(t *testing.T) {
		exec := executorFunc(func(context.Context, string) (string, error) {
			return "garbage", nil
		})
		status, err := QueryStatus(context.Background(), exec, parser)
		assert.ErrorIs(t, err, ErrParse)
		assert.False(t, status.IsOnline())
	})
}

func TestQueryStatusThroughSession(t *testing.T) {
	srv := newFakeServer("secret")
	srv.respond = func(string) string {
		return "There are 1 of a max of 20 players online: Steve"
	}
	s := newTestSession(srv, "secret")

	status, err := QueryStatus(context.Background(), s, NewStatusParser(ModeUnstructured))
	require.NoError(t, err)
	assert.True(t, status.IsOnline())

	srv.down = true
	srv.restart()
	status, err = QueryStatus(context.Background(), s, NewStatusParser(ModeUnstructured))
	require.NoError(t, err)
	assert.False(t, status.IsOnline())
}

func TestTextComponentForms(t *testing.T) {
	var c TextComponent

	require.NoError(t, c.UnmarshalJSON([]byte(`"plain"`)))
	assert.Equal(t, "plain", c.PlainText())
	assert.Equal(t, "plain", c.ANSI())

	require.NoError(t, c.UnmarshalJSON([]byte(`[{"text":"a","color":"red"},{"text":"b"}]`)))
	assert.Equal(t, "ab", c.PlainText())
	assert.Equal(t, "\x1b[38;2;255;85;85mab\x1b[m", c.ANSI())

	require.NoError(t, c.UnmarshalJSON([]byte(`{"text":"x","color":"not-a-color"}`)))
	assert.Equal(t, "x", c.ANSI())

	assert.Error(t, c.UnmarshalJSON([]byte(` `)))
}
