package trigger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

const titlePrefix = "제목:"

var kindDescriptions = map[model.TriggerKind]string{
	model.TriggerEventAdded:      "사용자가 새 일정을 추가했다",
	model.TriggerTodoAdded:       "사용자가 새 할 일을 추가했다",
	model.TriggerTodoCompleted:   "사용자가 할 일을 완료했다",
	model.TriggerJournalAdded:    "사용자가 새 일기를 썼다",
	model.TriggerScheduledDigest: "지난 몇 시간 동안의 사용자 생활을 돌아보는 정기 기록 시간이다",
}

// Turn is a post already written earlier in the same invocation.
type Turn struct {
	Persona model.Persona
	Content string
}

// BuildPostPrompt asks persona p for a first-person diary entry reacting to
// the trigger. prev is the previous turn of the same invocation, if any.
func BuildPostPrompt(p model.Persona, kind model.TriggerKind, c Context, prev *Turn) string {
	var b strings.Builder

	fmt.Fprintf(&b, "당신은 '%s'입니다.\n", p.Name)
	if p.Role != "" {
		fmt.Fprintf(&b, "역할: %s\n", p.Role)
	}
	if p.Personality != "" {
		fmt.Fprintf(&b, "성격: %s\n", p.Personality)
	}
	if p.Tone != "" {
		fmt.Fprintf(&b, "말투: %s\n", p.Tone)
	}

	b.WriteString("\n[상황]\n")
	desc, ok := kindDescriptions[kind]
	if !ok {
		desc = string(kind)
	}
	b.WriteString(desc + "\n")
	keys := make([]string, 0, len(c.Data))
	for k := range c.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := stringField(c.Data, k); v != "" {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}

	b.WriteString("\n[사용자 현황]\n")
	fmt.Fprintf(&b, "- 남은 할 일: %d개, 완료한 할 일: %d개\n", c.PendingTodos, c.CompletedTodos)
	fmt.Fprintf(&b, "- 등록된 일정: %d개\n", c.TotalEvents)
	if len(c.RecentJournals) > 0 {
		b.WriteString("- 최근 일기:\n")
		for _, j := range c.RecentJournals {
			fmt.Fprintf(&b, "  · %s\n", j)
		}
	}
	if len(c.RecentUtterances) > 0 {
		b.WriteString("- 최근 대화에서 사용자가 한 말:\n")
		for _, u := range c.RecentUtterances {
			fmt.Fprintf(&b, "  · %s\n", u)
		}
	}

	if prev != nil {
		fmt.Fprintf(&b, "\n[앞선 글 - %s]\n%s\n", prev.Persona.Name, prev.Content)
		b.WriteString("앞선 글에 이어지는 당신만의 생각을 덧붙이세요.\n")
	}

	b.WriteString("\n[작성 규칙]\n")
	b.WriteString("- 사용자에게 보내는 메시지가 아니라, 당신이 혼자 쓰는 1인칭 일기입니다.\n")
	b.WriteString("- 2~4개의 문단으로 깊이 있게, 내면의 생각을 담아 쓰세요.\n")
	b.WriteString("- 직접 관찰한 사실과 추측한 내용을 구분해서 표현하세요. 추측은 '~인 것 같다'처럼 쓰세요.\n")
	b.WriteString("- 첫 줄은 반드시 '제목: <제목>' 형식으로 쓰고, 다음 줄부터 본문을 쓰세요.\n")
	return b.String()
}

// BuildCommentPrompt asks persona p for a short reply to a journal entry.
func BuildCommentPrompt(p model.Persona, e model.JournalEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "당신은 '%s'입니다. 역할: %s. 성격: %s. 말투: %s.\n", p.Name, p.Role, p.Personality, p.Tone)
	b.WriteString("사용자가 쓴 아래 일기에 짧고 따뜻한 댓글을 2~3문장으로 달아주세요. 제목은 쓰지 마세요.\n\n")
	if e.Title != "" {
		fmt.Fprintf(&b, "제목: %s\n", e.Title)
	}
	if e.Mood != "" {
		fmt.Fprintf(&b, "기분: %s\n", e.Mood)
	}
	b.WriteString(clip(e.Content, 1200))
	return b.String()
}

// ParseTitle splits a generated post into its title and body. Text without
// a title line is returned whole as the body.
func ParseTitle(text string) (title, body string) {
	text = strings.TrimSpace(text)
	first, rest, _ := strings.Cut(text, "\n")
	line := strings.TrimSpace(strings.Trim(strings.TrimSpace(first), "*#"))
	if !strings.HasPrefix(line, titlePrefix) {
		return "", text
	}
	title = strings.TrimSpace(strings.TrimPrefix(line, titlePrefix))
	return title, strings.TrimSpace(rest)
}
