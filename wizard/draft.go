package wizard

import (
	"fmt"
	"strings"
)

// MaxImageBytes caps the agent picture size.
const MaxImageBytes = 1 << 20

// QA is one example question/answer pair.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// TwitterCredentials is the four-field X login tuple. It is serialized as an
// opaque JSON string on the persisted record.
type TwitterCredentials struct {
	Username    string `json:"TWITTER_USERNAME="`
	Password    string `json:"TWITTER_PASSWORD="`
	Email       string `json:"TWITTER_EMAIL="`
	TwoFASecret string `json:"TWITTER_2FA_SECRET="`
}

// Image is an uploaded picture held in the draft until submission.
type Image struct {
	Name string
	Data []byte
}

// Draft is the in-progress agent configuration. It is owned by one wizard
// session; mutators keep derived fields consistent after every call.
type Draft struct {
	Name        string
	Description string
	Image       *Image

	SelectedSources    []string
	SelectedActivities []string

	Prompt        string
	SelectedModel string

	PostingClients  []string
	PostingInterval int
	PostingTopics   string

	ChatClients      []string
	ReplyToUsernames []string
	ReplyToReplies   bool

	QAList   []QA
	PostList []string

	// Derived from QAList / PostList by the list mutators.
	ExampleQueries string
	ExamplePosts   string

	SetupX             bool
	TwitterCredentials TwitterCredentials
}

// NewDraft returns an empty draft with catalog defaults.
func NewDraft() *Draft {
	return &Draft{
		SelectedModel:   DefaultModel,
		PostingInterval: 60,
	}
}

// PostingEnabled reports whether any posting client is configured.
func (d *Draft) PostingEnabled() bool { return len(d.PostingClients) > 0 }

// WantsX reports whether the X client is selected for posting or chat.
func (d *Draft) WantsX() bool {
	return contains(d.PostingClients, "x") || contains(d.ChatClients, "x")
}

// SetImage validates and stores the agent picture. Oversized files are
// rejected before any network activity.
func (d *Draft) SetImage(name string, data []byte) error {
	if len(data) > MaxImageBytes {
		return &AssetError{Reason: fmt.Sprintf("file size must be less than %d bytes", MaxImageBytes)}
	}
	d.Image = &Image{Name: name, Data: data}
	return nil
}

// ClearImage drops the stored picture.
func (d *Draft) ClearImage() { d.Image = nil }

// AddUsername normalizes raw (trim, strip leading @s) and appends it to the
// reply-to list. Empty and duplicate results are rejected silently.
func (d *Draft) AddUsername(raw string) bool {
	name := strings.TrimLeft(strings.TrimSpace(raw), "@")
	if name == "" || contains(d.ReplyToUsernames, name) {
		return false
	}
	d.ReplyToUsernames = append(d.ReplyToUsernames, name)
	return true
}

// RemoveUsername removes the first exact match.
func (d *Draft) RemoveUsername(name string) {
	for i, u := range d.ReplyToUsernames {
		if u == name {
			d.ReplyToUsernames = append(d.ReplyToUsernames[:i], d.ReplyToUsernames[i+1:]...)
			return
		}
	}
}

// AddQA appends a trimmed question/answer pair and regenerates the derived
// example-queries text. Pairs with an empty side are no-ops.
func (d *Draft) AddQA(question, answer string) bool {
	q := strings.TrimSpace(question)
	a := strings.TrimSpace(answer)
	if q == "" || a == "" {
		return false
	}
	d.QAList = append(d.QAList, QA{Question: q, Answer: a})
	d.regenExampleQueries()
	return true
}

// RemoveQA removes the pair at index and regenerates the derived text.
func (d *Draft) RemoveQA(index int) bool {
	if index < 0 || index >= len(d.QAList) {
		return false
	}
	d.QAList = append(d.QAList[:index], d.QAList[index+1:]...)
	d.regenExampleQueries()
	return true
}

// AddPost appends a trimmed example post and regenerates the derived text.
func (d *Draft) AddPost(text string) bool {
	post := strings.TrimSpace(text)
	if post == "" {
		return false
	}
	d.PostList = append(d.PostList, post)
	d.regenExamplePosts()
	return true
}

// RemovePost removes the post at index and regenerates the derived text.
func (d *Draft) RemovePost(index int) bool {
	if index < 0 || index >= len(d.PostList) {
		return false
	}
	d.PostList = append(d.PostList[:index], d.PostList[index+1:]...)
	d.regenExamplePosts()
	return true
}

// ToggleSource flips membership of tag in the selected sources.
func (d *Draft) ToggleSource(tag string) {
	d.SelectedSources = toggle(d.SelectedSources, tag)
}

// ToggleActivity flips membership of tag in the selected activities.
func (d *Draft) ToggleActivity(tag string) {
	d.SelectedActivities = toggle(d.SelectedActivities, tag)
}

// TogglePostingClient flips membership of tag in the posting clients.
func (d *Draft) TogglePostingClient(tag string) {
	d.PostingClients = toggle(d.PostingClients, tag)
}

// ToggleChatClient flips membership of tag in the chat clients.
func (d *Draft) ToggleChatClient(tag string) {
	d.ChatClients = toggle(d.ChatClients, tag)
}

func (d *Draft) regenExampleQueries() {
	parts := make([]string, 0, len(d.QAList))
	for _, qa := range d.QAList {
		parts = append(parts, fmt.Sprintf("Q: %s\nA: %s", qa.Question, qa.Answer))
	}
	d.ExampleQueries = strings.Join(parts, "\n\n")
}

func (d *Draft) regenExamplePosts() {
	d.ExamplePosts = strings.Join(d.PostList, "\n\n")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func toggle(list []string, v string) []string {
	for i, s := range list {
		if s == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return append(list, v)
}
