package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlotPath(t *testing.T) {
	require.Equal(t, "/p1", SlotPath(1))
	require.Equal(t, "/p45", SlotPath(45))
	require.Equal(t, "/p120", SlotPath(120))
}

func TestValidEventType(t *testing.T) {
	require.True(t, ValidEventType(EventTypeView))
	require.True(t, ValidEventType(EventTypeWhatsappClick))
	require.True(t, ValidEventType(EventTypeFacebookShare))
	require.False(t, ValidEventType("page_view"))
	require.False(t, ValidEventType(""))
}
