package notebook

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Kind describes one family of leaves: where they live, how they are
// identified, what they are created from and which container lists them.
//
// Exactly one identification scheme is set: IDFormat for numbered kinds
// (lec%02d), KeyField for kinds keyed by a metadata value (session dates),
// or Fixed for a closed set of section leaves.
type Kind struct {
	Name         string   `toml:"name" validate:"required"`
	Path         string   `toml:"path" validate:"required"`
	IDFormat     string   `toml:"id_format"`
	KeyField     string   `toml:"key_field"`
	IDPrefix     string   `toml:"id_prefix"`
	Fixed        []string `toml:"fixed"`
	Template     string   `toml:"template"`
	TemplateText string   `toml:"template_text"`
	Container    string   `toml:"container"`
	Marker       string   `toml:"marker"`
	Entry        string   `toml:"entry"`
	ListFields   []string `toml:"list_fields"`
	Verify       bool     `toml:"verify"`
}

func (k Kind) Numbered() bool { return k.IDFormat != "" }

func (k Kind) Keyed() bool { return k.KeyField != "" }

// PathFor expands the kind's path pattern for id.
func (k Kind) PathFor(id string) string {
	return strings.ReplaceAll(k.Path, "{id}", id)
}

// Layout maps a notebook's structure onto the tree.
type Layout struct {
	Main      string `toml:"main" validate:"required"`
	Narrative string `toml:"narrative" validate:"required"`
	Report    string `toml:"report" validate:"required"`
	StateDir  string `toml:"state_dir" validate:"required"`
	Kinds     []Kind `toml:"kinds" validate:"required,min=1,dive"`
}

const (
	LectureMarker  = "% ADD_LECTURE_HERE"
	SessionMarker  = "% ADD_SESSION_HERE"
	HomeworkMarker = "% ADD_HOMEWORK_HERE"
)

// DefaultLayout is the structure of a notebook created by Init.
func DefaultLayout() Layout {
	return Layout{
		Main:      "notes/latex/master/master.tex",
		Narrative: "notes/latex/progress/progress.tex",
		Report:    "fact-check-report.json",
		StateDir:  ".state",
		Kinds: []Kind{
			{
				Name:      "lecture",
				Path:      "notes/latex/{id}/{id}.tex",
				IDFormat:  "lec%02d",
				Template:  "notes/latex/temp/temp.tex",
				Container: "notes/latex/master/master.tex",
				Marker:    LectureMarker,
				Entry:     "% Lecture @@ORDINAL@@\n\\section{Lecture @@ORDINAL@@: @@TOPIC@@}\n\\nestedsubfile{@@REF@@}\n\\newpage\n\n",
				Verify:    true,
			},
			{
				Name:         "session",
				Path:         "notes/latex/sessions/{id}.tex",
				KeyField:     "date",
				IDPrefix:     "session-",
				TemplateText: sessionTemplate,
				Container:    "notes/latex/sessions/sessions.tex",
				Marker:       SessionMarker,
				Entry:        "\\subfile{@@REF@@}\n\n",
				ListFields:   []string{"covered", "next_steps"},
			},
			{
				Name:         "homework",
				Path:         "hw/{id}/submission/{id}.tex",
				IDFormat:     "hw%d",
				TemplateText: homeworkTemplate,
				Container:    "notes/latex/assignments/assignments.tex",
				Marker:       HomeworkMarker,
				Entry:        "% Homework @@ORDINAL@@\n\\section{Homework @@ORDINAL@@}\n\\nestedsubfile{@@REF@@}\n\\newpage\n\n",
				Verify:       true,
			},
			{
				Name:         "section",
				Path:         "notes/latex/{id}/{id}.tex",
				Fixed:        []string{"syllabus", "glossary", "resources", "assignments"},
				TemplateText: sectionTemplate,
				Verify:       true,
			},
		},
	}
}

// Kind looks up a leaf kind by name.
func (l Layout) Kind(name string) (Kind, bool) {
	for _, k := range l.Kinds {
		if k.Name == name {
			return k, true
		}
	}
	return Kind{}, false
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks required fields and that every kind has exactly one
// identification scheme.
func (l Layout) Validate() error {
	if err := validate.Struct(l); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	for field, p := range map[string]string{"main": l.Main, "narrative": l.Narrative, "report": l.Report, "state_dir": l.StateDir} {
		if !insideRoot(p) {
			return fmt.Errorf("%w: %s %q leaves the notebook root", ErrInvalidLayout, field, p)
		}
	}
	seen := make(map[string]bool)
	for _, k := range l.Kinds {
		if seen[k.Name] {
			return fmt.Errorf("%w: kind %q declared twice", ErrInvalidLayout, k.Name)
		}
		seen[k.Name] = true

		schemes := 0
		if k.Numbered() {
			schemes++
		}
		if k.Keyed() {
			schemes++
		}
		if len(k.Fixed) > 0 {
			schemes++
		}
		if schemes != 1 {
			return fmt.Errorf("%w: kind %q needs exactly one of id_format, key_field, fixed", ErrInvalidLayout, k.Name)
		}
		for _, p := range []string{k.Path, k.Template, k.Container} {
			if !insideRoot(p) {
				return fmt.Errorf("%w: kind %q path %q leaves the notebook root", ErrInvalidLayout, k.Name, p)
			}
		}
		if !strings.Contains(k.Path, "{id}") {
			return fmt.Errorf("%w: kind %q path has no {id}", ErrInvalidLayout, k.Name)
		}
		if (k.Container == "") != (k.Marker == "") {
			return fmt.Errorf("%w: kind %q needs both container and marker", ErrInvalidLayout, k.Name)
		}
	}
	return nil
}

// insideRoot reports whether a layout path stays relative to the root.
// Empty paths are optional fields.
func insideRoot(p string) bool {
	if p == "" {
		return true
	}
	p = filepath.ToSlash(p)
	if path.IsAbs(p) || filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return false
	}
	clean := path.Clean(p)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

// LoadLayout reads a TOML layout file. Keys absent from the file keep
// their default values; a kinds table replaces the default kinds.
func LoadLayout(path string) (Layout, error) {
	layout := DefaultLayout()
	if path == "" {
		return layout, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout: %w", err)
	}
	var file Layout
	if err := toml.Unmarshal(data, &file); err != nil {
		return Layout{}, fmt.Errorf("parse layout: %w", err)
	}
	if file.Main != "" {
		layout.Main = file.Main
	}
	if file.Narrative != "" {
		layout.Narrative = file.Narrative
	}
	if file.Report != "" {
		layout.Report = file.Report
	}
	if file.StateDir != "" {
		layout.StateDir = file.StateDir
	}
	if len(file.Kinds) > 0 {
		layout.Kinds = file.Kinds
	}
	if err := layout.Validate(); err != nil {
		return Layout{}, err
	}
	return layout, nil
}

const sessionTemplate = `\documentclass[@@MAIN@@]{subfiles}

\begin{document}

\subsection{@@DATE@@ --- @@MODE@@ Session}

\begin{summarybox}
\textbf{Session Summary} \\
\textbf{Date:} @@DATE@@ \\
\textbf{Mode:} @@MODE@@ \\
\textbf{Topics:} @@TOPICS@@
\end{summarybox}

@@SUMMARY@@

\textbf{What we covered:}
\begin{itemize}[nosep]
@@COVERED@@
\end{itemize}

\textbf{Next steps:}
\begin{itemize}[nosep]
@@NEXT_STEPS@@
\end{itemize}

\end{document}
`

const homeworkTemplate = `\documentclass[@@MAIN@@]{subfiles}

\begin{document}

\section*{Homework @@ORDINAL@@}
% Due: @@DATE@@

\end{document}
`

const sectionTemplate = `\documentclass[@@MAIN@@]{subfiles}

\begin{document}

\section{@@TITLE@@}

\end{document}
`
