package models

import "time"

// User represents an account within the LifeApp platform.
type User struct {
	ID        string
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Friendship statuses.
const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
	FriendshipDeclined = "declined"
	FriendshipBlocked  = "blocked"
)

// Friendship is a directed edge from the user who sent a request to its recipient.
type Friendship struct {
	ID        string
	FromUser  string
	ToUser    string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Involves reports whether userID is either party of the friendship.
func (f Friendship) Involves(userID string) bool {
	return f.FromUser == userID || f.ToUser == userID
}

// Task statuses.
const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskDone       = "done"
)

// Task priorities range from 1 (very high) to 5 (very low).
const (
	TaskPriorityHighest = 1
	TaskPriorityDefault = 3
	TaskPriorityLowest  = 5
)

// Task is a to-do item owned by a single user.
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Priority    int
	DueDate     *time.Time
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ActivityCategory groups activity suggestions.
type ActivityCategory struct {
	ID          string
	Name        string
	Description string
}

// Activity is a suggestion from the shared catalog.
type Activity struct {
	ID                 string
	CategoryID         *string
	CategoryName       string
	Name               string
	Description        string
	IsOutdoor          bool
	MinDurationMinutes int
	MaxDurationMinutes int
	Notes              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Preference stores the per-user activity preferences.
type Preference struct {
	UserID              string
	PreferredCategories []string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
