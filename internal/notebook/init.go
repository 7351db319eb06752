package notebook

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ariavasulin/YouLearn/internal/nesting"
)

// NarrativePlaceholder is the body of a narrative leaf nothing has written.
const NarrativePlaceholder = "No progress recorded yet."

// Init scaffolds a fresh notebook: the main document with the nesting
// adapter and lecture marker, the session and homework containers, the
// lecture template, the section leaves and a placeholder narrative. Files
// that already exist are left alone. It returns the paths it wrote.
func (n *Notebook) Init(title string) ([]string, error) {
	if title == "" {
		title = "Course Notebook"
	}
	var written []string
	put := func(p, content string) error {
		if n.Exists(p) {
			return nil
		}
		if err := n.Tree.Write(p, []byte(content)); err != nil {
			return err
		}
		written = append(written, p)
		return nil
	}

	main := strings.NewReplacer("@@TITLE@@", title).Replace(mainTemplate)
	if err := put(n.layout.Main, nesting.Install(main)); err != nil {
		return written, fmt.Errorf("init main: %w", err)
	}

	for _, kind := range n.layout.Kinds {
		if kind.Template != "" {
			if err := put(kind.Template, lectureTemplate); err != nil {
				return written, fmt.Errorf("init template: %w", err)
			}
		}
		if kind.Container != "" && kind.Container != n.layout.Main {
			body := "\n" + kind.Marker + "\n"
			leaf := substitute(containerTemplate, map[string]string{
				"MAIN": relPath(dirOf(kind.Container), n.layout.Main),
				"BODY": body,
			})
			if err := put(kind.Container, leaf); err != nil {
				return written, fmt.Errorf("init container: %w", err)
			}
		}
	}

	for _, kind := range n.layout.Kinds {
		for _, id := range kind.Fixed {
			res, err := n.CreateLeaf(LeafRequest{Kind: kind.Name, Metadata: map[string]string{"id": id}})
			if errors.Is(err, ErrDuplicateLeaf) {
				continue
			}
			if err != nil {
				return written, fmt.Errorf("init %s: %w", id, err)
			}
			written = append(written, res.Path)
		}
	}

	narrative := substitute(containerTemplate, map[string]string{
		"MAIN": relPath(dirOf(n.layout.Narrative), n.layout.Main),
		"BODY": "\n" + NarrativePlaceholder + "\n",
	})
	if err := put(n.layout.Narrative, narrative); err != nil {
		return written, fmt.Errorf("init narrative: %w", err)
	}
	return written, nil
}

func dirOf(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i]
	}
	return "."
}

const containerTemplate = `\documentclass[@@MAIN@@]{subfiles}

\begin{document}
@@BODY@@
\end{document}
`

const lectureTemplate = `\documentclass[@@MAIN@@]{subfiles}

% LECTURE @@ORDINAL@@: @@TOPIC@@
% Date: @@DATE@@

\begin{document}

\renewcommand{\lecturenum}{@@ORDINAL@@}
\renewcommand{\lecturedate}{@@DATE@@}
\renewcommand{\lecturetopic}{@@TOPIC@@}

\begin{lecturesummary}
@@SUMMARY@@
\end{lecturesummary}

\section{@@TOPIC@@}

\end{document}
`

const mainTemplate = `\documentclass[11pt]{report}
\usepackage{amsmath,amssymb,amsthm}
\usepackage{makeidx}
\usepackage{enumitem}
\usepackage[most]{tcolorbox}
\usepackage{hyperref}
\usepackage{subfiles}
\makeindex

\newtcolorbox{summarybox}{colback=blue!5,colframe=blue!40!black}
\newtcolorbox{notebox}{colback=yellow!5,colframe=yellow!50!black}
\newtcolorbox{historybox}{colback=green!5,colframe=green!40!black}
\newtheorem{theorem}{Theorem}[section]
\newtheorem{proposition}[theorem]{Proposition}
\newtheorem{lemma}[theorem]{Lemma}
\newtheorem{corollary}[theorem]{Corollary}
\theoremstyle{remark}
\newtheorem*{remark}{Remark}
\newenvironment{aside}{\begin{quote}\small}{\end{quote}}
\newenvironment{lecturesummary}{\begin{quote}\itshape}{\end{quote}}
\newcommand{\lecturenum}{}
\newcommand{\lecturedate}{}
\newcommand{\lecturetopic}{}
\newcommand{\marginnote}[1]{\marginpar{\footnotesize #1}}

\title{@@TITLE@@}
\date{}

\begin{document}
\maketitle
\tableofcontents

\chapter{Syllabus}
\subfile{../syllabus/syllabus}

\chapter{Lectures}
% ADD_LECTURE_HERE

\chapter{Homework}
\subfile{../assignments/assignments}

\chapter{Sessions}
\subfile{../sessions/sessions}

\chapter{Progress}
\subfile{../progress/progress}

\chapter{Glossary}
\subfile{../glossary/glossary}

\chapter{Resources}
\subfile{../resources/resources}

\printindex
\end{document}
`
