package papercopy

import (
	"time"

	"github.com/mind-engage/papercopy/internal/qusage"
)

// EntryMethod records how a batch's responses are expected to come back in.
type EntryMethod string

const (
	EntryCSV  EntryMethod = "csv"
	EntryScan EntryMethod = "scan"
)

// KeyMode selects which rendered variant of a batch an artifact caches.
type KeyMode string

const (
	KeyNone KeyMode = "none"     // questions only
	KeyWith KeyMode = "with_key" // questions plus answer key
	KeyOnly KeyMode = "key_only" // answer key only
)

// KeyModes lists every cacheable variant, in a stable order.
var KeyModes = []KeyMode{KeyNone, KeyWith, KeyOnly}

// Batch is one paper-copy creation event. Usages keeps creation order; a
// usage id belongs to at most one batch.
type Batch struct {
	ID          string
	QuizID      int64
	Usages      []int64
	EntryMethod EntryMethod
	Artifacts   map[KeyMode]string // blob keys of cached rendered output
	CreatedAt   time.Time
}

// Attempt binds a usage to a real user. At most one attempt may reference a
// given usage; the storage layer enforces this with a unique constraint.
type Attempt struct {
	ID        int64
	UsageID   int64
	UserID    int64
	QuizID    int64
	Number    int // 1-based per (user, quiz)
	Finished  bool
	Grade     float64
	CreatedAt time.Time
}

// QuizQuestion is one question of a quiz with its page grouping.
type QuizQuestion struct {
	qusage.Question
	Page int `json:"page"`
}

// Quiz is the read-only view of the host quiz the core works against.
type Quiz struct {
	ID        int64
	CourseID  int64
	Name      string
	Questions []QuizQuestion
}
