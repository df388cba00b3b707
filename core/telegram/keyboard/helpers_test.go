package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowsMarkup(t *testing.T) {
	assert.Nil(t, Rows{}.Markup())
	assert.Nil(t, Rows{{}}.Markup())

	m := Rows{
		{{Text: "A", Data: "AI_TYPE"}, {Text: "B", Data: "CUSTOM_TYPE"}},
		{{Text: "Return", Data: "CREATE_TEMPLATE_FINISHED"}},
	}.Markup()
	require.NotNil(t, m)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Len(t, m.InlineKeyboard[0], 2)
	assert.Equal(t, "CUSTOM_TYPE", m.InlineKeyboard[0][1].Data)
	assert.Equal(t, "Return", m.InlineKeyboard[1][0].Text)
}

func TestInlineButtons_OnePerRow(t *testing.T) {
	m := InlineButtons([]InlineBtn{{Text: "x", Data: "1"}, {Text: "y", Data: "2"}})
	require.Len(t, m.InlineKeyboard, 2)
	assert.Equal(t, "2", m.InlineKeyboard[1][0].Data)
}
