package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeMetaStripsMarkup(t *testing.T) {
	cases := map[string]string{
		"Plain title":                          "Plain title",
		"<b>Bold</b> offer":                    "Bold offer",
		`<script>alert("x")</script>Phones`:    "Phones",
		`<a href="http://spam.example">buy</a>`: "buy",
		"<img src=x onerror=alert(1)>":         "",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeMeta(in), "input %q", in)
	}
}

func TestSanitizeMetaKeepsUnicode(t *testing.T) {
	require.Equal(t, "Téléphone à vendre à Yaoundé", SanitizeMeta("Téléphone à vendre à Yaoundé"))
}
