package conversation

// Level of a user-visible notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is a message for the user, such as a failed send.
type Notice struct {
	Level Level
	Text  string
	Err   error
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}
