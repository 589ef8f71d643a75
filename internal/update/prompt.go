package update

import "context"

// PromptKind identifies which decision the user is asked to make.
type PromptKind string

const (
	// PromptDownload asks whether to download an available release.
	PromptDownload PromptKind = "download"
	// PromptApply asks how to install a downloaded release:
	// Yes launches it side by side, No replaces the running executable.
	PromptApply PromptKind = "apply"
	// PromptRestore asks whether to put the .bak copy back.
	PromptRestore PromptKind = "restore"
)

// Answer is the user's response to a Prompt.
type Answer int

const (
	AnswerCancel Answer = iota
	AnswerYes
	AnswerNo
)

// String returns the string representation of an Answer.
func (a Answer) String() string {
	switch a {
	case AnswerYes:
		return "yes"
	case AnswerNo:
		return "no"
	default:
		return "cancel"
	}
}

// Prompt carries everything a confirmation UI needs to render a decision.
type Prompt struct {
	Kind           PromptKind
	Title          string
	Message        string
	CurrentVersion string
	NewVersion     string
	Notes          string
	DownloadURL    string
	Digest         string
	// Path is the downloaded file for PromptApply and the backup for
	// PromptRestore.
	Path        string
	YesLabel    string
	NoLabel     string
	CancelLabel string
	// AllowNo is false for plain yes/cancel questions.
	AllowNo bool
}

// Confirmer asks the user to decide. Implementations block until an answer
// is given or ctx is done.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (Answer, error)
}

// Level is the severity of a Notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a one-way message to the user.
type Notice struct {
	Level   Level
	Title   string
	Message string
}

// Notifier displays notices.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notice) { f(n) }
