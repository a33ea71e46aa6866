package model

import "time"

// Event is a calendar entry.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	StartTime   string    `json:"startTime,omitempty"`
	EndTime     string    `json:"endTime,omitempty"`
	Description string    `json:"description,omitempty"`
	TagID       string    `json:"type,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Todo belongs to exactly one TodoList.
type Todo struct {
	ID        string    `json:"id"`
	ListID    string    `json:"listId"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	DueDate   string    `json:"dueDate,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TodoList groups todos into a kanban column.
type TodoList struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// JournalEntry is a dated journal page. Category carries the legacy
// category name some persisted entries still have; NormalizeJournalEntries
// resolves it into CategoryID.
type JournalEntry struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Date       string    `json:"date"`
	Mood       string    `json:"mood,omitempty"`
	CategoryID string    `json:"categoryId,omitempty"`
	Category   string    `json:"category,omitempty"`
	Comments   []Comment `json:"comments,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Comment is an AI-authored reply attached to a journal entry.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// JournalCategory is a named journal folder.
type JournalCategory struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// CommunityPost is an AI-authored board entry. Order strictly decreases as
// posts are created so new local posts sort first without a server round trip.
type CommunityPost struct {
	ID        string      `json:"id"`
	Author    string      `json:"author"`
	Title     string      `json:"title,omitempty"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	ReplyTo   string      `json:"replyTo,omitempty"`
	Trigger   TriggerKind `json:"trigger"`
	Order     int         `json:"order"`
}

// Persona is a named AI voice.
type Persona struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Personality string `json:"personality"`
	Tone        string `json:"tone"`
	Avatar      string `json:"avatar,omitempty"`
}

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is immutable once appended.
type ChatMessage struct {
	ID           string    `json:"id"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	AgentID      string    `json:"agentId,omitempty"`
	Action       string    `json:"action,omitempty"`
	QuickReplies []string  `json:"quickReplies,omitempty"`
}

// ChatSession is a multi-persona conversation. AgentID is the legacy primary
// pointer and always equals AgentIDs[0] once normalised.
type ChatSession struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Messages      []ChatMessage `json:"messages"`
	CreatedAt     time.Time     `json:"createdAt"`
	LastMessageAt time.Time     `json:"lastMessageAt"`
	AgentID       string        `json:"agentId,omitempty"`
	AgentIDs      []string      `json:"agentIds,omitempty"`
}

// ActivityItem is one line of the activity log.
type ActivityItem struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"type"`
	Label     string            `json:"label"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// APIConnection is one configured LLM provider endpoint.
type APIConnection struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	BaseURL  string `json:"baseUrl,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
	IsActive bool   `json:"isActive"`
}

// APIUsage counters only ever grow, except through an explicit reset.
type APIUsage struct {
	TotalRequests   int64     `json:"totalRequests"`
	TotalTokens     int64     `json:"totalTokens"`
	LastRequestDate time.Time `json:"lastRequestDate,omitzero"`
}

// Settings is the singleton user preference record.
type Settings struct {
	APIConnections     []APIConnection `json:"apiConnections"`
	ActiveConnectionID string          `json:"activeConnectionId,omitempty"`
	AutoAIReactions    bool            `json:"autoAiReactions"`
	APIUsage           APIUsage        `json:"apiUsage"`
}

// ActiveConnection returns the connection selected by ActiveConnectionID,
// or the first connection flagged active.
func (s Settings) ActiveConnection() (APIConnection, bool) {
	for _, c := range s.APIConnections {
		if s.ActiveConnectionID != "" && c.ID == s.ActiveConnectionID {
			return c, true
		}
	}
	for _, c := range s.APIConnections {
		if c.IsActive {
			return c, true
		}
	}
	return APIConnection{}, false
}

// CalendarTag colours calendar events.
type CalendarTag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// UserData is the single per-user row that carries the collections without a
// table of their own.
type UserData struct {
	Settings     Settings       `json:"settings"`
	ActivityLog  []ActivityItem `json:"activityLog"`
	CalendarTags []CalendarTag  `json:"calendarTags"`
	ChatSessions []ChatSession  `json:"chatSessions"`
}

// Profile is the per-user display record.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}
