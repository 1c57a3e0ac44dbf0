package explorer

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownAction = errors.New("unknown action")

// Action is one of the closed set of explorer actions. The set is sealed by
// the unexported method; Reduce switches over every variant.
type Action interface {
	ActionType() string
	isAction()
}

const (
	ActionSetPath              = "setPath"
	ActionSetSearchFilter      = "setSearchFilter"
	ActionSetMarkedFiles       = "setMarkedFiles"
	ActionSetMarkedDirectories = "setMarkedDirectories"
	ActionMarkSingleFile       = "markSingleFile"
	ActionSetSelectedFiles     = "setSelectedFiles"
	ActionResetSelectedFiles   = "resetSelectedFiles"
	ActionShowDialog           = "showDialog"
	ActionHideDialog           = "hideDialog"
	ActionEnterDirectory       = "enterDirectory"
	ActionGoUp                 = "goUp"
	ActionClickFile            = "clickFile"
	ActionNavigateKey          = "navigateKey"
	ActionToggleSelectedFile   = "toggleSelectedFile"
	ActionToggleSelectAll      = "toggleSelectAll"
	ActionSetMode              = "setMode"
)

type SetPath struct {
	Path PathStack `json:"path"`
}

type SetSearchFilter struct {
	Text string `json:"text"`
}

type SetMarkedFiles struct {
	Files []FileItem `json:"files"`
}

type SetMarkedDirectories struct {
	Directories []DirectoryItem `json:"directories"`
}

type MarkSingleFile struct {
	File FileItem `json:"file"`
}

type SetSelectedFiles struct {
	Files []FileItem `json:"files"`
}

type ResetSelectedFiles struct{}

// ShowDialog and HideDialog are the show*/hide* pair of every dialog.
type ShowDialog struct {
	Dialog Dialog `json:"dialog"`
}

type HideDialog struct {
	Dialog Dialog `json:"dialog"`
}

// EnterDirectory pushes a child directory onto the path.
type EnterDirectory struct {
	Directory DirectoryItem `json:"directory"`
}

// GoUp pops the path; at the root it changes nothing.
type GoUp struct{}

// ClickFile runs MarkFile against the displayed listing.
type ClickFile struct {
	Listing   []FileItem `json:"listing"`
	File      FileItem   `json:"file"`
	Modifiers Modifiers  `json:"modifiers"`
}

// NavigateKey runs NavigateMarked against the displayed listing.
type NavigateKey struct {
	Listing []FileItem `json:"listing"`
	Key     Key        `json:"key"`
	Shift   bool       `json:"shift"`
}

type ToggleSelectedFile struct {
	File FileItem `json:"file"`
}

type ToggleSelectAll struct {
	Listing []FileItem `json:"listing"`
}

type SetMode struct {
	Mode Mode `json:"mode"`
}

func (SetPath) ActionType() string              { return ActionSetPath }
func (SetSearchFilter) ActionType() string      { return ActionSetSearchFilter }
func (SetMarkedFiles) ActionType() string       { return ActionSetMarkedFiles }
func (SetMarkedDirectories) ActionType() string { return ActionSetMarkedDirectories }
func (MarkSingleFile) ActionType() string       { return ActionMarkSingleFile }
func (SetSelectedFiles) ActionType() string     { return ActionSetSelectedFiles }
func (ResetSelectedFiles) ActionType() string   { return ActionResetSelectedFiles }
func (ShowDialog) ActionType() string           { return ActionShowDialog }
func (HideDialog) ActionType() string           { return ActionHideDialog }
func (EnterDirectory) ActionType() string       { return ActionEnterDirectory }
func (GoUp) ActionType() string                 { return ActionGoUp }
func (ClickFile) ActionType() string            { return ActionClickFile }
func (NavigateKey) ActionType() string          { return ActionNavigateKey }
func (ToggleSelectedFile) ActionType() string   { return ActionToggleSelectedFile }
func (ToggleSelectAll) ActionType() string      { return ActionToggleSelectAll }
func (SetMode) ActionType() string              { return ActionSetMode }

func (SetPath) isAction()              {}
func (SetSearchFilter) isAction()      {}
func (SetMarkedFiles) isAction()       {}
func (SetMarkedDirectories) isAction() {}
func (MarkSingleFile) isAction()       {}
func (SetSelectedFiles) isAction()     {}
func (ResetSelectedFiles) isAction()   {}
func (ShowDialog) isAction()           {}
func (HideDialog) isAction()           {}
func (EnterDirectory) isAction()       {}
func (GoUp) isAction()                 {}
func (ClickFile) isAction()            {}
func (NavigateKey) isAction()          {}
func (ToggleSelectedFile) isAction()   {}
func (ToggleSelectAll) isAction()      {}
func (SetMode) isAction()              {}

// ActionEnvelope is the wire form of an action.
type ActionEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeAction parses an ActionEnvelope into its typed action.
func DecodeAction(raw []byte) (Action, error) {
	var env ActionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode action envelope: %w", err)
	}
	return env.Decode()
}

func (env ActionEnvelope) Decode() (Action, error) {
	var a Action
	switch env.Type {
	case ActionSetPath:
		a = &SetPath{}
	case ActionSetSearchFilter:
		a = &SetSearchFilter{}
	case ActionSetMarkedFiles:
		a = &SetMarkedFiles{}
	case ActionSetMarkedDirectories:
		a = &SetMarkedDirectories{}
	case ActionMarkSingleFile:
		a = &MarkSingleFile{}
	case ActionSetSelectedFiles:
		a = &SetSelectedFiles{}
	case ActionResetSelectedFiles:
		return ResetSelectedFiles{}, nil
	case ActionShowDialog:
		a = &ShowDialog{}
	case ActionHideDialog:
		a = &HideDialog{}
	case ActionEnterDirectory:
		a = &EnterDirectory{}
	case ActionGoUp:
		return GoUp{}, nil
	case ActionClickFile:
		a = &ClickFile{}
	case ActionNavigateKey:
		a = &NavigateKey{}
	case ActionToggleSelectedFile:
		a = &ToggleSelectedFile{}
	case ActionToggleSelectAll:
		a = &ToggleSelectAll{}
	case ActionSetMode:
		a = &SetMode{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Type)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, a); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	action := deref(a)
	if err := validateAction(action); err != nil {
		return nil, err
	}
	return action, nil
}

func validateAction(a Action) error {
	switch v := a.(type) {
	case SetPath:
		return v.Path.Validate()
	case ShowDialog:
		_, err := ParseDialog(string(v.Dialog))
		return err
	case HideDialog:
		_, err := ParseDialog(string(v.Dialog))
		return err
	case NavigateKey:
		_, err := ParseKey(string(v.Key))
		return err
	case SetMode:
		_, err := ParseMode(string(v.Mode))
		return err
	}
	return nil
}

// deref turns the decoding target back into a value action so Reduce only
// ever sees value variants.
func deref(a Action) Action {
	switch v := a.(type) {
	case *SetPath:
		return *v
	case *SetSearchFilter:
		return *v
	case *SetMarkedFiles:
		return *v
	case *SetMarkedDirectories:
		return *v
	case *MarkSingleFile:
		return *v
	case *SetSelectedFiles:
		return *v
	case *ShowDialog:
		return *v
	case *HideDialog:
		return *v
	case *EnterDirectory:
		return *v
	case *ClickFile:
		return *v
	case *NavigateKey:
		return *v
	case *ToggleSelectedFile:
		return *v
	case *ToggleSelectAll:
		return *v
	case *SetMode:
		return *v
	}
	return a
}
