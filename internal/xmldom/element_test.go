package xmldom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTripsThroughRender(t *testing.T) {
	doc := []byte(`<rspec><stitching><path id="P1"><hop id="H1">text</hop></path></stitching></rspec>`)

	root, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, "rspec", root.Name)

	path := root.Child("stitching").Child("path")
	require.NotNil(t, path)
	assert.Equal(t, "P1", path.Attr("id"))
	assert.Equal(t, "text", path.Child("hop").CharData)

	out, err := Render(root)
	require.NoError(t, err)

	reparsed, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "rspec", reparsed.Name)
	assert.Equal(t, "P1", reparsed.Child("stitching").Child("path").Attr("id"))
}

func TestParse_EmptyDocument_Errors(t *testing.T) {
	_, err := Parse([]byte(""))
	assert.Error(t, err)
}

func TestEnsureChild_IsLocateOrCreate(t *testing.T) {
	root := NewElement("stitching")
	first := root.EnsureChild("path")
	again := root.EnsureChild("path")
	assert.Same(t, first, again)
	assert.Len(t, root.Children, 1)
}

func TestEnsureChildWithAttr_DisambiguatesByAttribute(t *testing.T) {
	root := NewElement("path")
	h1 := root.EnsureChildWithAttr("hop", "id", "H1")
	h2 := root.EnsureChildWithAttr("hop", "id", "H2")
	assert.NotSame(t, h1, h2)
	assert.Same(t, h1, root.EnsureChildWithAttr("hop", "id", "H1"))
	assert.Equal(t, "H1", h1.Attr("id"))
}

func TestTextOrDefault_MissingAndEmptyFallBack(t *testing.T) {
	root := NewElement("link")
	assert.Equal(t, "any", root.TextOrDefault("suggestedVLANRange", "any"))

	root.SetText("suggestedVLANRange", "")
	assert.Equal(t, "any", root.TextOrDefault("suggestedVLANRange", "any"))

	root.SetText("suggestedVLANRange", "100")
	assert.Equal(t, "100", root.TextOrDefault("suggestedVLANRange", "any"))
}

func TestClone_IsDeepAndIndependent(t *testing.T) {
	root := NewElement("hop")
	root.SetAttr("id", "H1")
	child := root.EnsureChild("link")
	child.SetText("vlan", "100")

	cp := root.Clone()
	cp.SetAttr("id", "H2")
	cp.Child("link").SetText("vlan", "200")

	assert.Equal(t, "H1", root.Attr("id"))
	assert.Equal(t, "100", root.Child("link").TextOrDefault("vlan", ""))
	assert.Equal(t, "H2", cp.Attr("id"))
	assert.Equal(t, "200", cp.Child("link").TextOrDefault("vlan", ""))
}

func TestChildrenNamed_ReturnsAllMatches(t *testing.T) {
	root := NewElement("path")
	root.EnsureChildWithAttr("hop", "id", "H1")
	root.EnsureChildWithAttr("hop", "id", "H2")
	root.EnsureChild("description")

	hops := root.ChildrenNamed("hop")
	assert.Len(t, hops, 2)
}
