package notebook

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ariavasulin/YouLearn/internal/doctree"
)

// ErrInvalidRequest means a leaf request is missing its identifying field.
var ErrInvalidRequest = errors.New("invalid leaf request")

// Notebook combines a Tree with its Layout.
type Notebook struct {
	*Tree
	layout Layout

	// Now supplies the default date for keyed leaves.
	Now func() time.Time

	mu sync.Mutex // serializes CreateLeaf
}

func New(tree *Tree, layout Layout) *Notebook {
	return &Notebook{Tree: tree, layout: layout, Now: time.Now}
}

func (n *Notebook) Layout() Layout { return n.layout }

// LeafRequest asks for a new leaf. Ordinal 0 on a numbered kind picks the
// next free number. Metadata values are plain text: markup specials are
// escaped and line breaks folded, except in list fields where each line
// becomes one item.
type LeafRequest struct {
	Kind     string            `json:"kind" validate:"required"`
	Ordinal  int               `json:"ordinal" validate:"gte=0"`
	Metadata map[string]string `json:"metadata"`
}

type WarningCode string

const (
	WarnMarkerMissing    WarningCode = "marker_missing"
	WarnMarkerAmbiguous  WarningCode = "marker_ambiguous"
	WarnContainerMissing WarningCode = "container_missing"
)

// Warning describes a leaf that was created but not registered in its
// container.
type Warning struct {
	Code      WarningCode `json:"code"`
	Container string      `json:"container"`
	Message   string      `json:"message"`
}

type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeWarning
)

func (o Outcome) String() string {
	if o == OutcomeWarning {
		return "warning"
	}
	return "ok"
}

// LeafResult is the successful result of CreateLeaf.
type LeafResult struct {
	Kind    string   `json:"kind"`
	ID      string   `json:"id"`
	Ordinal int      `json:"ordinal,omitempty"`
	Path    string   `json:"path"`
	Warning *Warning `json:"warning,omitempty"`
}

func (r LeafResult) Outcome() Outcome {
	if r.Warning != nil {
		return OutcomeWarning
	}
	return OutcomeOK
}

// CreateLeaf instantiates a leaf from its kind's template and registers it
// in the kind's container just before the insertion marker. A duplicate
// leaf fails before anything is written. A container that cannot take the
// reference leaves the new leaf in place and reports a Warning.
func (n *Notebook) CreateLeaf(req LeafRequest) (LeafResult, error) {
	kind, ok := n.layout.Kind(req.Kind)
	if !ok {
		return LeafResult{}, fmt.Errorf("%q: %w", req.Kind, ErrUnknownKind)
	}
	if req.Ordinal < 0 {
		return LeafResult{}, fmt.Errorf("%w: negative ordinal", ErrInvalidRequest)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	meta := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		meta[strings.ToLower(k)] = v
	}

	id, ordinal, err := n.assignID(kind, req.Ordinal, meta)
	if err != nil {
		return LeafResult{}, err
	}
	leafPath := kind.PathFor(id)
	ref := includeRef(kind.Container, leafPath)

	if n.Exists(leafPath) {
		return LeafResult{}, fmt.Errorf("%s %s: %w", kind.Name, id, ErrDuplicateLeaf)
	}
	if kind.Container != "" {
		if data, err := n.Read(kind.Container); err == nil {
			if doctree.ParseContainer(string(data), kind.Marker).Includes(ref) {
				return LeafResult{}, fmt.Errorf("%s %s already registered in %s: %w", kind.Name, id, kind.Container, ErrDuplicateLeaf)
			}
		}
	}

	tmpl := kind.TemplateText
	if kind.Template != "" {
		data, err := n.Read(kind.Template)
		if err != nil {
			return LeafResult{}, fmt.Errorf("template: %w", err)
		}
		tmpl = string(data)
	}

	vals := n.values(kind, id, ordinal, leafPath, ref, meta)
	entry := substitute(kind.Entry, vals)
	if kind.Container != "" && doctree.ParseContainer(entry, kind.Marker).MarkerCount(kind.Marker) > 0 {
		return LeafResult{}, fmt.Errorf("%w: entry for %s %s contains the insertion marker", ErrInvalidRequest, kind.Name, id)
	}
	if err := n.Write(leafPath, []byte(substitute(tmpl, vals))); err != nil {
		return LeafResult{}, err
	}

	res := LeafResult{Kind: kind.Name, ID: id, Ordinal: ordinal, Path: leafPath}
	if kind.Container == "" {
		return res, nil
	}
	warn, err := n.register(kind, entry)
	if err != nil {
		return res, err
	}
	res.Warning = warn
	return res, nil
}

func (n *Notebook) assignID(kind Kind, ordinal int, meta map[string]string) (string, int, error) {
	switch {
	case kind.Numbered():
		if ordinal == 0 {
			leaves, err := n.leavesOf(kind)
			if err != nil {
				return "", 0, err
			}
			for _, l := range leaves {
				if l.Ordinal > ordinal {
					ordinal = l.Ordinal
				}
			}
			ordinal++
		}
		return fmt.Sprintf(kind.IDFormat, ordinal), ordinal, nil

	case kind.Keyed():
		key := strings.TrimSpace(meta[kind.KeyField])
		if key == "" && kind.KeyField == "date" {
			key = n.Now().Format("2006-01-02")
			meta["date"] = key
		}
		slug := Slugify(key)
		if slug == "" {
			return "", 0, fmt.Errorf("%w: %s requires %q", ErrInvalidRequest, kind.Name, kind.KeyField)
		}
		return kind.IDPrefix + slug, 0, nil

	default:
		id := meta["id"]
		if id == "" {
			id = Slugify(meta["title"])
		}
		for _, f := range kind.Fixed {
			if f == id {
				return id, 0, nil
			}
		}
		return "", 0, fmt.Errorf("%w: %s must be one of %s", ErrInvalidRequest, kind.Name, strings.Join(kind.Fixed, ", "))
	}
}

func (n *Notebook) register(kind Kind, entry string) (*Warning, error) {
	data, err := n.Read(kind.Container)
	if errors.Is(err, ErrNotFound) {
		return &Warning{
			Code:      WarnContainerMissing,
			Container: kind.Container,
			Message:   fmt.Sprintf("container %s not found; add the include manually", kind.Container),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	c := doctree.ParseContainer(string(data), kind.Marker)
	if err := c.Insert(kind.Marker, entry); err != nil {
		code := WarnMarkerMissing
		if errors.Is(err, doctree.ErrMarkerAmbiguous) {
			code = WarnMarkerAmbiguous
		}
		return &Warning{
			Code:      code,
			Container: kind.Container,
			Message:   fmt.Sprintf("%s in %s; add the include manually", err, kind.Container),
		}, nil
	}
	if err := n.Write(kind.Container, []byte(c.String())); err != nil {
		return nil, err
	}
	return nil, nil
}

func (n *Notebook) values(kind Kind, id string, ordinal int, leafPath, ref string, meta map[string]string) map[string]string {
	vals := map[string]string{
		"ID":      id,
		"ORDINAL": strconv.Itoa(ordinal),
		"MAIN":    n.MainRef(leafPath),
		"REF":     ref,
		"TITLE":   titleCase(id),
	}
	lists := make(map[string]bool, len(kind.ListFields))
	for _, f := range kind.ListFields {
		lists[f] = true
		vals[strings.ToUpper(f)] = itemLines("")
	}
	for k, v := range meta {
		if lists[k] {
			v = itemLines(v)
		} else {
			v = escapeText(strings.Join(strings.Fields(v), " "))
		}
		vals[strings.ToUpper(k)] = v
	}
	return vals
}

var specialReplacer = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`{`, `\{`,
	`}`, `\}`,
	`%`, `\%`,
	`#`, `\#`,
	`&`, `\&`,
	`$`, `\$`,
	`_`, `\_`,
	`^`, `\textasciicircum{}`,
	`~`, `\textasciitilde{}`,
)

// escapeText makes user text safe inside a markup argument.
func escapeText(s string) string {
	return specialReplacer.Replace(s)
}

var tokenRe = regexp.MustCompile(`@@[A-Z0-9_]+@@`)

// substitute replaces every @@NAME@@ token in one pass. Tokens without a
// value become empty; text outside tokens is never touched.
func substitute(tmpl string, vals map[string]string) string {
	seen := make(map[string]bool)
	var pairs []string
	for _, tok := range tokenRe.FindAllString(tmpl, -1) {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		pairs = append(pairs, tok, vals[strings.Trim(tok, "@")])
	}
	if len(pairs) == 0 {
		return tmpl
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func itemLines(v string) string {
	var lines []string
	for _, line := range strings.Split(v, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if line != "" {
			lines = append(lines, "    \\item "+escapeText(line))
		}
	}
	if len(lines) == 0 {
		return "    \\item (none)"
	}
	return strings.Join(lines, "\n")
}

func titleCase(id string) string {
	if id == "" {
		return ""
	}
	return strings.ToUpper(id[:1]) + id[1:]
}

// MainRef is the main document path as seen from leafPath's directory,
// the form a subfiles document class option expects.
func (n *Notebook) MainRef(leafPath string) string {
	return relPath(path.Dir(leafPath), n.layout.Main)
}

// includeRef is the include argument a container uses for leafPath: the
// path relative to the container's directory, without extension.
func includeRef(container, leafPath string) string {
	if container == "" {
		return ""
	}
	return relPath(path.Dir(container), strings.TrimSuffix(leafPath, ".tex"))
}

func relPath(fromDir, to string) string {
	from := splitPath(fromDir)
	dst := splitPath(to)
	i := 0
	for i < len(from) && i < len(dst) && from[i] == dst[i] {
		i++
	}
	var parts []string
	for range from[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, dst[i:]...)
	return strings.Join(parts, "/")
}

func splitPath(p string) []string {
	p = path.Clean(p)
	if p == "." || p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// LeafInfo describes one existing leaf.
type LeafInfo struct {
	Kind    string    `json:"kind"`
	ID      string    `json:"id"`
	Ordinal int       `json:"ordinal,omitempty"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Verify  bool      `json:"-"`
}

// NarrativeKind labels the narrative leaf in ListLeaves.
const NarrativeKind = "narrative"

// ListLeaves enumerates every leaf in layout order, then by ordinal and id.
// The narrative leaf is included under NarrativeKind when it exists.
func (n *Notebook) ListLeaves() ([]LeafInfo, error) {
	var out []LeafInfo
	for _, kind := range n.layout.Kinds {
		leaves, err := n.leavesOf(kind)
		if err != nil {
			return nil, err
		}
		out = append(out, leaves...)
	}
	if st, err := n.Stat(n.layout.Narrative); err == nil && !st.Dir {
		out = append(out, LeafInfo{
			Kind:    NarrativeKind,
			ID:      strings.TrimSuffix(path.Base(n.layout.Narrative), ".tex"),
			Path:    n.layout.Narrative,
			Size:    st.Size,
			ModTime: st.ModTime,
		})
	}
	return out, nil
}

func (n *Notebook) leavesOf(kind Kind) ([]LeafInfo, error) {
	var candidates []string
	if len(kind.Fixed) > 0 {
		for _, id := range kind.Fixed {
			candidates = append(candidates, kind.PathFor(id))
		}
	} else {
		matches, err := n.Glob(strings.ReplaceAll(kind.Path, "{id}", "*"))
		if err != nil {
			return nil, err
		}
		candidates = matches
	}

	var out []LeafInfo
	for _, p := range candidates {
		id, ok := extractID(kind.Path, p)
		if !ok {
			continue
		}
		info := LeafInfo{Kind: kind.Name, ID: id, Path: p, Verify: kind.Verify}
		switch {
		case kind.Numbered():
			var o int
			if _, err := fmt.Sscanf(id, kind.IDFormat, &o); err != nil || fmt.Sprintf(kind.IDFormat, o) != id {
				continue
			}
			info.Ordinal = o
		case kind.Keyed():
			if !strings.HasPrefix(id, kind.IDPrefix) || id == kind.IDPrefix {
				continue
			}
		}
		st, err := n.Stat(p)
		if err != nil || st.Dir {
			continue
		}
		info.Size = st.Size
		info.ModTime = st.ModTime
		out = append(out, info)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Ordinal != out[j].Ordinal {
			return out[i].Ordinal < out[j].Ordinal
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// extractID matches rel against a pattern containing {id} placeholders and
// returns the id when every placeholder agrees.
func extractID(pattern, rel string) (string, bool) {
	ps := strings.Split(pattern, "/")
	rs := strings.Split(rel, "/")
	if len(ps) != len(rs) {
		return "", false
	}
	id := ""
	for i, seg := range ps {
		pre, post, has := strings.Cut(seg, "{id}")
		if !has {
			if seg != rs[i] {
				return "", false
			}
			continue
		}
		s := rs[i]
		if len(s) <= len(pre)+len(post) || !strings.HasPrefix(s, pre) || !strings.HasSuffix(s, post) {
			return "", false
		}
		v := s[len(pre) : len(s)-len(post)]
		if id != "" && id != v {
			return "", false
		}
		id = v
	}
	return id, id != ""
}

// Target is a resolved compile target.
type Target struct {
	Name      string
	Path      string
	Aggregate bool
}

// AggregateTarget names the whole notebook.
const AggregateTarget = "aggregate"

// ResolveTarget maps "aggregate" to the main document and a leaf id to its
// file.
func (n *Notebook) ResolveTarget(name string) (Target, error) {
	if name == AggregateTarget || name == "master" {
		return Target{Name: AggregateTarget, Path: n.layout.Main, Aggregate: true}, nil
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return Target{}, fmt.Errorf("%q: %w", name, ErrInvalidTarget)
	}
	leaves, err := n.ListLeaves()
	if err != nil {
		return Target{}, err
	}
	for _, l := range leaves {
		if l.ID == name {
			return Target{Name: name, Path: l.Path}, nil
		}
	}
	return Target{}, fmt.Errorf("%q: %w", name, ErrInvalidTarget)
}
