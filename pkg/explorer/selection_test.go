package explorer

import (
	"reflect"
	"testing"
)

func file(name string) FileItem {
	return FileItem{ID: "id-" + name, Filename: name, ParentID: "dir"}
}

func names(files []FileItem) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Filename)
	}
	return out
}

var (
	fileA = file("a.jpg")
	fileB = file("b.wav")
	fileC = file("c.txt")
	fileD = file("d.mp4")
	fileE = file("e.png")

	sortedListing = []FileItem{fileA, fileB, fileC, fileD, fileE}
)

func TestMarkFile(t *testing.T) {
	tests := []struct {
		name   string
		marked []FileItem
		click  FileItem
		mods   Modifiers
		want   []string
	}{
		{
			name:  "plain click on empty selection",
			click: fileB,
			want:  []string{"b.wav"},
		},
		{
			name:   "plain click replaces selection",
			marked: []FileItem{fileA, fileC},
			click:  fileD,
			want:   []string{"d.mp4"},
		},
		{
			name:   "plain click on marked item collapses",
			marked: []FileItem{fileA, fileC},
			click:  fileC,
			want:   []string{"c.txt"},
		},
		{
			name:   "meta click on marked item removes it",
			marked: []FileItem{fileA, fileC, fileD},
			click:  fileC,
			mods:   Modifiers{Meta: true},
			want:   []string{"a.jpg", "d.mp4"},
		},
		{
			name:   "meta click on unmarked item appends it",
			marked: []FileItem{fileD},
			click:  fileA,
			mods:   Modifiers{Meta: true},
			want:   []string{"d.mp4", "a.jpg"},
		},
		{
			name:   "shift click forward includes target",
			marked: []FileItem{fileA},
			click:  fileD,
			mods:   Modifiers{Shift: true},
			want:   []string{"a.jpg", "b.wav", "c.txt", "d.mp4"},
		},
		{
			name:   "shift click backward appends ascending",
			marked: []FileItem{fileD},
			click:  fileA,
			mods:   Modifiers{Shift: true},
			want:   []string{"d.mp4", "a.jpg", "b.wav", "c.txt"},
		},
		{
			name:   "shift click anchors on nearest mark",
			marked: []FileItem{fileA, fileE},
			click:  fileD,
			mods:   Modifiers{Shift: true},
			want:   []string{"a.jpg", "e.png", "d.mp4"},
		},
		{
			name:   "shift click tie goes to first marked",
			marked: []FileItem{fileE, fileA},
			click:  fileC,
			mods:   Modifiers{Shift: true},
			want:   []string{"e.png", "a.jpg", "c.txt", "d.mp4"},
		},
		{
			name:   "shift click without marks selects target only",
			marked: nil,
			click:  fileC,
			mods:   Modifiers{Shift: true},
			want:   []string{"c.txt"},
		},
		{
			name:   "shift wins over meta on unmarked item",
			marked: []FileItem{fileA},
			click:  fileC,
			mods:   Modifiers{Shift: true, Meta: true},
			want:   []string{"a.jpg", "b.wav", "c.txt"},
		},
		{
			name:   "shift click on marked item collapses",
			marked: []FileItem{fileA, fileB},
			click:  fileB,
			mods:   Modifiers{Shift: true},
			want:   []string{"b.wav"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(MarkFile(sortedListing, tt.marked, tt.click, tt.mods))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MarkFile() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMarkFile_PlainClicksKeepSingleMark(t *testing.T) {
	var marked []FileItem
	for _, f := range []FileItem{fileC, fileA, fileE, fileA, fileB} {
		marked = MarkFile(sortedListing, marked, f, Modifiers{})
		if len(marked) != 1 || marked[0].ID != f.ID {
			t.Fatalf("after clicking %s marked = %v", f.Filename, names(marked))
		}
	}
}

func TestMarkFile_ShiftRangeLength(t *testing.T) {
	for a := range sortedListing {
		for b := range sortedListing {
			if a == b {
				continue
			}
			got := MarkFile(sortedListing, []FileItem{sortedListing[a]}, sortedListing[b], Modifiers{Shift: true})
			want := b - a
			if want < 0 {
				want = -want
			}
			if len(got) != want+1 {
				t.Errorf("shift %d -> %d: got %d items, want %d", a, b, len(got), want+1)
			}
		}
	}
}

func TestMarkFile_DoesNotMutateInput(t *testing.T) {
	marked := []FileItem{fileA, fileB}
	_ = MarkFile(sortedListing, marked, fileB, Modifiers{Meta: true})
	_ = MarkFile(sortedListing, marked, fileE, Modifiers{Shift: true})
	if !reflect.DeepEqual(names(marked), []string{"a.jpg", "b.wav"}) {
		t.Fatalf("input slice modified: %v", names(marked))
	}
}

func TestNavigateMarked(t *testing.T) {
	tests := []struct {
		name   string
		marked []FileItem
		key    Key
		shift  bool
		want   []string
	}{
		{"up moves to previous", []FileItem{fileC}, KeyArrowUp, false, []string{"b.wav"}},
		{"down moves to next", []FileItem{fileC}, KeyArrowDown, false, []string{"d.mp4"}},
		{"up uses lowest index", []FileItem{fileD, fileB}, KeyArrowUp, false, []string{"a.jpg"}},
		{"down uses highest index", []FileItem{fileD, fileB}, KeyArrowDown, false, []string{"e.png"}},
		{"shift up extends", []FileItem{fileC}, KeyArrowUp, true, []string{"c.txt", "b.wav"}},
		{"shift down extends", []FileItem{fileC}, KeyArrowDown, true, []string{"c.txt", "d.mp4"}},
		{"up at top is a no-op", []FileItem{fileA}, KeyArrowUp, false, []string{"a.jpg"}},
		{"shift up at top is a no-op", []FileItem{fileA, fileB}, KeyArrowUp, true, []string{"a.jpg", "b.wav"}},
		{"down at bottom is a no-op", []FileItem{fileE}, KeyArrowDown, false, []string{"e.png"}},
		{"no selection is a no-op", nil, KeyArrowDown, false, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(NavigateMarked(sortedListing, tt.marked, tt.key, tt.shift))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NavigateMarked() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToggleAllSelected(t *testing.T) {
	visible := []FileItem{fileA, fileB}

	got := ToggleAllSelected(visible, []FileItem{fileD})
	if !reflect.DeepEqual(names(got), []string{"d.mp4", "a.jpg", "b.wav"}) {
		t.Fatalf("select all = %v", names(got))
	}

	got = ToggleAllSelected(visible, got)
	if !reflect.DeepEqual(names(got), []string{"d.mp4"}) {
		t.Fatalf("clear all = %v", names(got))
	}

	if got := ToggleAllSelected(nil, nil); len(got) != 0 {
		t.Fatalf("empty listing selected %v", names(got))
	}
}

func TestToggleSelected(t *testing.T) {
	got := ToggleSelected(nil, fileA)
	got = ToggleSelected(got, fileB)
	got = ToggleSelected(got, fileA)
	if !reflect.DeepEqual(names(got), []string{"b.wav"}) {
		t.Fatalf("ToggleSelected sequence = %v", names(got))
	}
}

func TestVisibleFiles(t *testing.T) {
	files := []FileItem{file("Zeta.txt"), file("alpha.TXT"), file("beta.jpg"), file("Beta.png")}
	got := names(VisibleFiles(files, "  "))
	want := []string{"alpha.TXT", "beta.jpg", "Beta.png", "Zeta.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("VisibleFiles sort = %v, want %v", got, want)
	}

	got = names(VisibleFiles(files, "TXT"))
	want = []string{"alpha.TXT", "Zeta.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("VisibleFiles filter = %v, want %v", got, want)
	}
}
