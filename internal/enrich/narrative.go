package enrich

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ariavasulin/YouLearn/internal/capability"
	"github.com/ariavasulin/YouLearn/internal/chunker"
	"github.com/ariavasulin/YouLearn/internal/doctree"
	"github.com/ariavasulin/YouLearn/internal/notebook"
)

const narrativeInstructions = `You maintain a living document about a student's intellectual journey
through %s. You write as a reflective tutor keeping a journal, not as a
progress tracker.

You receive the current narrative document, every study session log, and the
notes edited since the narrative was last written. Rewrite the whole narrative
so it keeps the arc of the previous version and folds in what is new.

Use these subsections, adapting them as the story grows:
\subsection{Where We Are}
\subsection{The Journey So Far}
\subsection{Edges of Understanding}
\subsection{Looking Forward}

Be specific: name the theorems, definitions, proofs and examples the student
worked on. Say plainly where intuition is strong and where the formal
machinery is still shaky.

Output a complete LaTeX subfile and nothing else:
\documentclass[%s]{subfiles}
\begin{document}
\section{Student Progress}
...
\end{document}`

const noNarrative = "(no narrative yet)"

// narrate rewrites the narrative leaf from the prior narrative, all session
// logs and the leaves changed since the cursor. It is the only writer of the
// narrative leaf and never reads it as delta.
func (o *Orchestrator) narrate(ctx context.Context, since time.Time) (Outcome, error) {
	leaves, err := o.nb.ListLeaves()
	if err != nil {
		return Outcome{}, fmt.Errorf("list leaves: %w", err)
	}
	delta := changedSince(leaves, since, func(l notebook.LeafInfo) bool { return l.Kind != notebook.NarrativeKind })
	out := Outcome{Delta: leafPaths(delta)}
	if len(delta) == 0 {
		out.Skipped = true
		out.Message = "nothing to synthesize"
		return out, nil
	}
	if o.gen == nil {
		return out, fmt.Errorf("narrative: generation %w", ErrCapabilityUnavailable)
	}

	narrativePath := o.nb.Layout().Narrative
	sections, err := o.narrativeInputs(narrativePath, leaves, delta)
	if err != nil {
		return out, err
	}
	packed := chunker.Pack(sections, o.opts.PayloadTokens)
	out.Truncated = packed.Truncated
	out.Dropped = packed.Dropped

	mainRef := o.nb.MainRef(narrativePath)
	raw, err := o.gen.Generate(ctx, capability.Prompt{
		System:    fmt.Sprintf(narrativeInstructions, o.opts.CourseName, mainRef),
		User:      "Rewrite the narrative document using the material below.\n\n" + packed.String(),
		MaxTokens: o.opts.MaxOutputTokens,
	})
	if err != nil {
		return out, fmt.Errorf("generate narrative: %w", err)
	}

	body := capability.StripFences(raw)
	if strings.TrimSpace(body) == "" {
		return out, errors.New("generate narrative: empty response")
	}
	doc := doctree.EnsureLeaf(body, mainRef)
	if _, err := doctree.ParseLeaf(doc); err != nil {
		return out, fmt.Errorf("narrative output: %w", err)
	}
	if !strings.HasSuffix(doc, "\n") {
		doc += "\n"
	}

	if err := o.nb.Scoped(narrativePath).Write(narrativePath, []byte(doc)); err != nil {
		return out, fmt.Errorf("write narrative: %w", err)
	}
	out.Written = narrativePath
	out.Message = fmt.Sprintf("narrative updated from %d changed leaf(s)", len(delta))
	return out, nil
}

// narrativeInputs orders the payload: prior narrative, every session log in
// date order, then changed leaves newest first so the oldest edits are the
// first to be cut.
func (o *Orchestrator) narrativeInputs(narrativePath string, leaves, delta []notebook.LeafInfo) ([]chunker.Section, error) {
	prior, err := o.nb.Read(narrativePath)
	switch {
	case errors.Is(err, notebook.ErrNotFound):
		prior = []byte(noNarrative)
	case err != nil:
		return nil, fmt.Errorf("read narrative: %w", err)
	}
	sections := []chunker.Section{{Label: "CURRENT NARRATIVE: " + narrativePath, Text: string(prior)}}

	for _, l := range leaves {
		if l.Kind != o.opts.SessionKind {
			continue
		}
		data, err := o.nb.Read(l.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", l.Path, err)
		}
		sections = append(sections, chunker.Section{Label: "SESSION: " + l.Path, Text: string(data)})
	}

	edited := make([]notebook.LeafInfo, 0, len(delta))
	for _, l := range delta {
		if l.Kind != o.opts.SessionKind {
			edited = append(edited, l)
		}
	}
	sort.SliceStable(edited, func(i, j int) bool { return edited[i].ModTime.After(edited[j].ModTime) })
	for _, l := range edited {
		data, err := o.nb.Read(l.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", l.Path, err)
		}
		sections = append(sections, chunker.Section{Label: "EDITED: " + l.Path, Text: string(data)})
	}
	return sections, nil
}
