package explorer

// Reduce applies a to s and returns the next state. s is never modified.
//
// Every branch keeps the marked and selected sets inside the current
// directory, and a dialog tied to a marked set closes once that set is empty.
func Reduce(s State, a Action) State {
	next := s.clone()
	current := next.CurrentDirectory()

	switch v := a.(type) {
	case SetPath:
		if v.Path.Validate() != nil {
			return next
		}
		next = next.withPath(v.Path.clone())

	case EnterDirectory:
		if v.Directory.ID == "" || v.Directory.ParentID != current.ID {
			return next
		}
		next = next.withPath(next.CurrentPath.Push(v.Directory.Ref()))

	case GoUp:
		if current.IsRoot() {
			return next
		}
		next = next.withPath(next.CurrentPath.Parent())

	case SetSearchFilter:
		next.SearchText = v.Text

	case SetMarkedFiles:
		next.MarkedFiles = next.inCurrentDirectory(v.Files)

	case SetMarkedDirectories:
		next.MarkedDirectories = next.directoriesInCurrentDirectory(v.Directories)

	case MarkSingleFile:
		if v.File.ParentID == current.ID {
			next.MarkedFiles = []FileItem{v.File}
		}

	case ClickFile:
		if v.File.ParentID != current.ID {
			return next
		}
		listing := next.inCurrentDirectory(v.Listing)
		next.MarkedFiles = next.inCurrentDirectory(MarkFile(listing, next.MarkedFiles, v.File, v.Modifiers))

	case NavigateKey:
		listing := next.inCurrentDirectory(v.Listing)
		next.MarkedFiles = next.inCurrentDirectory(NavigateMarked(listing, next.MarkedFiles, v.Key, v.Shift))

	case SetSelectedFiles:
		next.SelectedFiles = next.inCurrentDirectory(v.Files)

	case ResetSelectedFiles:
		next.SelectedFiles = []FileItem{}

	case ToggleSelectedFile:
		if v.File.ParentID != current.ID {
			return next
		}
		switch next.Mode {
		case ModeSelect:
			if containsFile(next.SelectedFiles, v.File.ID) {
				next.SelectedFiles = []FileItem{}
			} else {
				next.SelectedFiles = []FileItem{v.File}
			}
		case ModeSelectMultiple:
			next.SelectedFiles = next.inCurrentDirectory(ToggleSelected(next.SelectedFiles, v.File))
		}

	case ToggleSelectAll:
		if next.Mode != ModeSelectMultiple {
			return next
		}
		listing := next.inCurrentDirectory(v.Listing)
		next.SelectedFiles = next.inCurrentDirectory(ToggleAllSelected(listing, next.SelectedFiles))

	case ShowDialog:
		if next.dialogRequirementMet(v.Dialog) {
			next.Dialogs = next.Dialogs.with(v.Dialog, true)
		}

	case HideDialog:
		next.Dialogs = next.Dialogs.with(v.Dialog, false)

	case SetMode:
		if _, err := ParseMode(string(v.Mode)); err != nil {
			return next
		}
		if v.Mode != next.Mode {
			next.Mode = v.Mode
			next.SelectedFiles = []FileItem{}
		}
	}

	return next.closeOrphanedDialogs()
}

// withPath moves to path. Navigating invalidates the marks; checkbox
// selections survive only if they still belong to the new directory.
func (s State) withPath(path PathStack) State {
	s.CurrentPath = path
	s.MarkedFiles = []FileItem{}
	s.MarkedDirectories = []DirectoryItem{}
	s.SelectedFiles = s.inCurrentDirectory(s.SelectedFiles)
	return s
}

func (s State) closeOrphanedDialogs() State {
	for _, d := range Dialogs {
		if s.Dialogs.Visible(d) && !s.dialogRequirementMet(d) {
			s.Dialogs = s.Dialogs.with(d, false)
		}
	}
	return s
}
