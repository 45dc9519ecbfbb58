package refparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_CanParse(t *testing.T) {
	p := NewParser("/src", nil, ScopeText)
	cases := []struct {
		ext  string
		want bool
	}{
		{".pug", true},
		{".html", true},
		{".less", true},
		{".css", true},
		{".webmanifest", true},
		{"HTML", true},
		{".jpg", false},
		{".png", false},
		{"", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, p.CanParse(c.ext), "CanParse(%q)", c.ext)
	}
}

func TestParse_NoPaths(t *testing.T) {
	data := `<div class="my-class"></div>`
	f := Parse("/src", "/src/file.html", ".html", data)

	assert.Equal(t, ".html", f.Ext)
	assert.Equal(t, []Part{Literal(data)}, f.Parts)
}

func TestParse_RelativeAndRootPaths(t *testing.T) {
	data := `<img src="../assets/rel-image.jpg"><a href="/documents/abs-doc.pdf">PDF</a>`
	f := Parse("/src", "/src/file.html", ".html", data)

	assert.Equal(t, []Part{
		Literal(`<img src="`),
		Reference("../assets/rel-image.jpg", "/assets/rel-image.jpg"),
		Literal(`"><a href="`),
		Reference("/documents/abs-doc.pdf", "/src/documents/abs-doc.pdf"),
		Literal(`">PDF</a>`),
	}, f.Parts)
}

func TestParse_FullyQualifiedPrefix(t *testing.T) {
	for _, token := range []string{"$/documents/abs-doc.pdf", "$./documents/abs-doc.pdf"} {
		data := `<a href="` + token + `">PDF</a>`
		f := Parse("/src", "/src/deep/er/file.html", ".html", data)

		require.Len(t, f.Parts, 3, token)
		assert.Equal(t, Reference(token, "/src/documents/abs-doc.pdf"), f.Parts[1])
	}
}

func TestParse_DirectoryRelativeFromNestedFile(t *testing.T) {
	f := Parse("/src", "/src/pages/about.pug", ".pug", `img(src="image.jpg")`)

	require.Len(t, f.Parts, 3)
	assert.Equal(t, "/src/pages/image.jpg", f.Parts[1].Target)
	assert.Equal(t, []string{"/src/pages/image.jpg"}, f.Targets())
}

func TestParse_FullURLsStayLiteral(t *testing.T) {
	inputs := []string{
		`<script src="https://cdn.example.com/app.js"></script>`,
		`<link href="//fonts.example.com/font.css">`,
		`url(http://example.com/bg.png)`,
	}
	for _, in := range inputs {
		f := Parse("/src", "/src/index.html", ".html", in)
		assert.Empty(t, f.Targets(), in)
		assert.Equal(t, in, f.String())
	}
}

func TestParse_VersionNumbersStayLiteral(t *testing.T) {
	f := Parse("/src", "/src/a.css", ".css", "opacity: 0.5; v1.2.3")
	assert.Empty(t, f.Targets())
}

func TestParse_Lossless(t *testing.T) {
	inputs := []string{
		"",
		"h1 Hello World",
		`body { background: url("img/bg.png") } .a { b: url(/x/y.svg) }`,
		`<img src="a.png"><img src="$/b.png"> trailing.js.`,
		"multi\nline\r\n../up/file.txt\n",
	}
	for _, scope := range []Scope{ScopeText, ScopeAttributes} {
		p := NewParser("/src", []string{".html", ".css"}, scope)
		for _, in := range inputs {
			f := p.Parse("/src/index.html", ".html", []byte(in))
			require.NotNil(t, f)
			assert.Equal(t, in, f.String(), "scope %s", scope)
		}
	}
}

func TestFile_Render(t *testing.T) {
	f := Parse("/src", "/src/page.html", ".html", `<img src="a.png"><img src="b.png">`)
	out := f.Render(func(target string) (string, bool) {
		if target == "/src/a.png" {
			return "/a.1234abcd.png", true
		}
		return "", false
	})
	assert.Equal(t, `<img src="/a.1234abcd.png"><img src="b.png">`, out)
}

func TestParser_AttributeScope(t *testing.T) {
	data := `<p>Built with Node.js</p><img src="logo.png"><style>body { background: url(bg.jpg) }</style>`

	text := NewParser("/src", nil, ScopeText).Parse("/src/index.html", ".html", []byte(data))
	assert.Contains(t, text.Targets(), "/src/Node.js")

	attrs := NewParser("/src", nil, ScopeAttributes).Parse("/src/index.html", ".html", []byte(data))
	assert.Equal(t, []string{"/src/bg.jpg", "/src/logo.png"}, attrs.Targets())
	assert.Equal(t, data, attrs.String())
}

func TestParser_AttributeScopeIgnoredForStylesheets(t *testing.T) {
	p := NewParser("/src", nil, ScopeAttributes)
	f := p.Parse("/src/site.css", ".css", []byte(`a { background: url(img/a.png) }`))
	assert.Equal(t, []string{"/src/img/a.png"}, f.Targets())
}

func TestParser_NotParsable(t *testing.T) {
	p := NewParser("/src", nil, ScopeText)
	assert.Nil(t, p.Parse("/src/image.jpg", ".jpg", []byte("Image Data")))
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeText, s)

	s, err = ParseScope("Attributes")
	require.NoError(t, err)
	assert.Equal(t, ScopeAttributes, s)

	_, err = ParseScope("ast")
	assert.Error(t, err)
}
