package explorer

import "fmt"

// Mode is the interaction mode of an explorer view.
type Mode string

const (
	ModeViewAndEdit    Mode = "view_and_edit"
	ModeSelect         Mode = "select"
	ModeSelectMultiple Mode = "select_multiple"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeViewAndEdit, ModeSelect, ModeSelectMultiple:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown explorer mode %q", s)
	}
}

// Dialog names one modal of the explorer.
type Dialog string

const (
	DialogUploads         Dialog = "uploads"
	DialogFileUsage       Dialog = "file_usage"
	DialogCreateFolder    Dialog = "create_folder"
	DialogMoveFiles       Dialog = "move_files"
	DialogMoveDirectory   Dialog = "move_directory"
	DialogDeleteFiles     Dialog = "delete_files"
	DialogDeleteDirectory Dialog = "delete_directory"
)

// Dialogs lists every dialog, in display order.
var Dialogs = []Dialog{
	DialogUploads,
	DialogFileUsage,
	DialogCreateFolder,
	DialogMoveFiles,
	DialogMoveDirectory,
	DialogDeleteFiles,
	DialogDeleteDirectory,
}

func ParseDialog(s string) (Dialog, error) {
	for _, d := range Dialogs {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dialog %q", s)
}

// DialogVisibility holds one flag per dialog.
type DialogVisibility struct {
	Uploads         bool `json:"uploads"`
	FileUsage       bool `json:"file_usage"`
	CreateFolder    bool `json:"create_folder"`
	MoveFiles       bool `json:"move_files"`
	MoveDirectory   bool `json:"move_directory"`
	DeleteFiles     bool `json:"delete_files"`
	DeleteDirectory bool `json:"delete_directory"`
}

func (v DialogVisibility) Visible(d Dialog) bool {
	switch d {
	case DialogUploads:
		return v.Uploads
	case DialogFileUsage:
		return v.FileUsage
	case DialogCreateFolder:
		return v.CreateFolder
	case DialogMoveFiles:
		return v.MoveFiles
	case DialogMoveDirectory:
		return v.MoveDirectory
	case DialogDeleteFiles:
		return v.DeleteFiles
	case DialogDeleteDirectory:
		return v.DeleteDirectory
	}
	return false
}

func (v DialogVisibility) with(d Dialog, visible bool) DialogVisibility {
	switch d {
	case DialogUploads:
		v.Uploads = visible
	case DialogFileUsage:
		v.FileUsage = visible
	case DialogCreateFolder:
		v.CreateFolder = visible
	case DialogMoveFiles:
		v.MoveFiles = visible
	case DialogMoveDirectory:
		v.MoveDirectory = visible
	case DialogDeleteFiles:
		v.DeleteFiles = visible
	case DialogDeleteDirectory:
		v.DeleteDirectory = visible
	}
	return v
}

// State is the whole UI state of one explorer view. It is only changed by
// Reduce; every value handed out is a copy.
type State struct {
	Mode              Mode             `json:"mode"`
	CurrentPath       PathStack        `json:"current_path"`
	MarkedFiles       []FileItem       `json:"marked_files"`
	SelectedFiles     []FileItem       `json:"selected_files"`
	MarkedDirectories []DirectoryItem  `json:"marked_directories"`
	SearchText        string           `json:"searchtext"`
	Dialogs           DialogVisibility `json:"dialogs"`
}

// NewState returns the state of a freshly mounted explorer.
func NewState(mode Mode) State {
	if mode == "" {
		mode = ModeViewAndEdit
	}
	return State{
		Mode:              mode,
		CurrentPath:       NewPathStack(),
		MarkedFiles:       []FileItem{},
		SelectedFiles:     []FileItem{},
		MarkedDirectories: []DirectoryItem{},
	}
}

// CurrentDirectory is the last element of the path.
func (s State) CurrentDirectory() DirectoryRef {
	return s.CurrentPath.Current()
}

func (s State) clone() State {
	out := s
	out.CurrentPath = s.CurrentPath.clone()
	out.MarkedFiles = cloneFiles(s.MarkedFiles)
	out.SelectedFiles = cloneFiles(s.SelectedFiles)
	out.MarkedDirectories = cloneDirectories(s.MarkedDirectories)
	return out
}

// inCurrentDirectory drops files that do not live in the current directory.
func (s State) inCurrentDirectory(files []FileItem) []FileItem {
	dir := s.CurrentDirectory().ID
	out := make([]FileItem, 0, len(files))
	for _, f := range files {
		if f.ParentID == dir && !containsFile(out, f.ID) {
			out = append(out, f)
		}
	}
	return out
}

func (s State) directoriesInCurrentDirectory(dirs []DirectoryItem) []DirectoryItem {
	parent := s.CurrentDirectory().ID
	out := make([]DirectoryItem, 0, len(dirs))
	for _, d := range dirs {
		if d.ParentID == parent {
			out = append(out, d)
		}
	}
	return out
}

// dialogRequirementMet reports whether d may be opened in s.
func (s State) dialogRequirementMet(d Dialog) bool {
	switch d {
	case DialogFileUsage, DialogMoveFiles, DialogDeleteFiles:
		return len(s.MarkedFiles) > 0
	case DialogMoveDirectory, DialogDeleteDirectory:
		return len(s.MarkedDirectories) > 0
	default:
		return true
	}
}
