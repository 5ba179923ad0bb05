package wizard

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddUsernameNormalizesAndDedups(t *testing.T) {
	d := NewDraft()
	assert.True(t, d.AddUsername("@a"))
	assert.False(t, d.AddUsername("a"))
	assert.False(t, d.AddUsername(" a "))
	assert.False(t, d.AddUsername("@@@a"))
	assert.Equal(t, []string{"a"}, d.ReplyToUsernames)
}

func TestAddUsernameRejectsEmpty(t *testing.T) {
	d := NewDraft()
	assert.False(t, d.AddUsername(""))
	assert.False(t, d.AddUsername("   "))
	assert.False(t, d.AddUsername("@@"))
	assert.Empty(t, d.ReplyToUsernames)
}

func TestUsernamesAreCaseSensitive(t *testing.T) {
	d := NewDraft()
	assert.True(t, d.AddUsername("Alice"))
	assert.True(t, d.AddUsername("alice"))
	assert.Equal(t, []string{"Alice", "alice"}, d.ReplyToUsernames)
}

func TestRemoveUsername(t *testing.T) {
	d := NewDraft()
	d.AddUsername("a")
	d.AddUsername("b")
	d.RemoveUsername("a")
	assert.Equal(t, []string{"b"}, d.ReplyToUsernames)
	d.RemoveUsername("missing")
	assert.Equal(t, []string{"b"}, d.ReplyToUsernames)
}

func TestAddQAEmptySidesAreNoOps(t *testing.T) {
	d := NewDraft()
	assert.False(t, d.AddQA("", "x"))
	assert.False(t, d.AddQA("x", ""))
	assert.False(t, d.AddQA("  ", "  "))
	assert.Empty(t, d.QAList)
	assert.Empty(t, d.ExampleQueries)
}

func TestQADerivedText(t *testing.T) {
	d := NewDraft()
	require.True(t, d.AddQA(" what is kadena ", " a chain "))
	require.True(t, d.AddQA("gm", "gm ser"))
	assert.Equal(t, "Q: what is kadena\nA: a chain\n\nQ: gm\nA: gm ser", d.ExampleQueries)

	require.True(t, d.RemoveQA(0))
	assert.Equal(t, "Q: gm\nA: gm ser", d.ExampleQueries)

	require.True(t, d.RemoveQA(0))
	assert.Empty(t, d.ExampleQueries)
	assert.False(t, d.RemoveQA(0))
}

func TestPostDerivedText(t *testing.T) {
	d := NewDraft()
	assert.False(t, d.AddPost("   "))
	require.True(t, d.AddPost(" first "))
	require.True(t, d.AddPost("second"))
	assert.Equal(t, "first\n\nsecond", d.ExamplePosts)

	require.True(t, d.RemovePost(1))
	assert.Equal(t, "first", d.ExamplePosts)
	assert.False(t, d.RemovePost(5))
}

func TestToggleIsMembershipXOR(t *testing.T) {
	d := NewDraft()
	d.ToggleSource("Market data")
	assert.Equal(t, []string{"Market data"}, d.SelectedSources)
	d.ToggleSource("Market data")
	assert.Empty(t, d.SelectedSources)

	d.ToggleActivity("post")
	d.ToggleActivity("chat")
	d.ToggleActivity("post")
	assert.Equal(t, []string{"chat"}, d.SelectedActivities)
}

func TestSetImageSizeLimit(t *testing.T) {
	d := NewDraft()

	err := d.SetImage("big.png", bytes.Repeat([]byte{0}, MaxImageBytes+1))
	var ae *AssetError
	require.ErrorAs(t, err, &ae)
	assert.Nil(t, d.Image)

	require.NoError(t, d.SetImage("ok.png", bytes.Repeat([]byte{0}, MaxImageBytes)))
	require.NotNil(t, d.Image)
	assert.Equal(t, "ok.png", d.Image.Name)
}

func TestPostingEnabledDerived(t *testing.T) {
	d := NewDraft()
	assert.False(t, d.PostingEnabled())
	d.TogglePostingClient("x")
	assert.True(t, d.PostingEnabled())
	d.TogglePostingClient("x")
	assert.False(t, d.PostingEnabled())
}

func TestWantsX(t *testing.T) {
	d := NewDraft()
	assert.False(t, d.WantsX())
	d.ToggleChatClient("x")
	assert.True(t, d.WantsX())
	d.ToggleChatClient("x")
	d.TogglePostingClient("x")
	assert.True(t, d.WantsX())
}
