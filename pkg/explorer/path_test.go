package explorer

import "testing"

func TestPathStack(t *testing.T) {
	p := NewPathStack()
	if !p.Current().IsRoot() {
		t.Fatalf("new stack does not start at root")
	}
	if p.String() != "/" {
		t.Fatalf("root string = %q", p.String())
	}

	a := p.Push(DirectoryRef{ID: "a", Name: "A"})
	b := a.Push(DirectoryRef{ID: "a/b", Name: "B"})
	if len(p) != 1 || len(a) != 2 {
		t.Fatalf("Push modified receiver: p=%v a=%v", p, a)
	}
	if b.String() != "/A/B" {
		t.Fatalf("String() = %q", b.String())
	}

	if got := b.Truncate(0); len(got) != 1 || !got.Current().IsRoot() {
		t.Fatalf("Truncate(0) = %v", got)
	}
	if got := b.Truncate(99); len(got) != 3 {
		t.Fatalf("Truncate(99) = %v", got)
	}
	if got := b.Truncate(-1); len(got) != 1 {
		t.Fatalf("Truncate(-1) = %v", got)
	}

	if got := NewPathStack().Parent(); len(got) != 1 || !got.Current().IsRoot() {
		t.Fatalf("Parent at root = %v", got)
	}
}

func TestPathStackValidate(t *testing.T) {
	tests := []struct {
		name  string
		path  PathStack
		valid bool
	}{
		{"empty", PathStack{}, false},
		{"root only", NewPathStack(), true},
		{"missing root", PathStack{{ID: "a"}}, false},
		{"root twice", PathStack{Root, Root}, false},
		{"nested", NewPathStack().Push(DirectoryRef{ID: "a"}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.path.Validate()
			if (err == nil) != tt.valid {
				t.Fatalf("Validate() = %v, valid want %v", err, tt.valid)
			}
		})
	}
}
