package edit

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/podhmo/go-analyzing/strips"
)

// EditView is the transaction boundary offered to edit consumers.
type EditView interface {
	Apply(t Transformation) error
	Abort(reason error)
	Commit() error
	IsAborted() bool
	IsCommitted() bool
}

var _ EditView = (*ExecutionView)(nil)

// CommitListener is notified with the names of the documents a commit changed.
type CommitListener func(changed []string)

type document struct {
	buf     *strips.Buffer
	version uint64
}

// Workspace holds the committed source documents.
type Workspace struct {
	mu        sync.Mutex
	docs      map[string]*document
	listeners map[int]CommitListener
	nextID    int
	logger    *slog.Logger
}

// NewWorkspace creates a workspace over the given documents.
func NewWorkspace(docs map[string]string, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	w := &Workspace{
		docs:      make(map[string]*document, len(docs)),
		listeners: make(map[int]CommitListener),
		logger:    logger,
	}
	for name, text := range docs {
		w.docs[name] = &document{buf: strips.New(text), version: 1}
	}
	return w
}

// Names returns the document names, sorted.
func (w *Workspace) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.docs))
	for name := range w.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Text returns the committed text of a document.
func (w *Workspace) Text(name string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc, ok := w.docs[name]
	if !ok {
		return "", false
	}
	return doc.buf.String(), true
}

// Version returns the committed version of a document, 0 if unknown.
func (w *Workspace) Version(name string) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if doc, ok := w.docs[name]; ok {
		return doc.version
	}
	return 0
}

// Snapshot returns the committed text of every document.
func (w *Workspace) Snapshot() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]string, len(w.docs))
	for name, doc := range w.docs {
		out[name] = doc.buf.String()
	}
	return out
}

// OnCommit registers a listener; the returned function unregisters it.
func (w *Workspace) OnCommit(l CommitListener) (cancel func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = l
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.listeners, id)
	}
}

// NewView opens a speculative view over the committed documents.
func (w *Workspace) NewView() *ExecutionView {
	v := newView(w, nil)
	w.logger.Debug("open view", "view", v.id)
	return v
}

func (w *Workspace) checkout(name string) (*strips.Buffer, uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc, ok := w.docs[name]
	if !ok {
		return nil, 0, fmt.Errorf("document %q is not in the workspace", name)
	}
	return doc.buf.Clone(), doc.version, nil
}

func (w *Workspace) commit(v *ExecutionView) error {
	w.mu.Lock()
	var changed []string
	for name, buf := range v.docs {
		if !buf.Changed() {
			continue
		}
		doc := w.docs[name]
		if doc.version != v.base[name] {
			w.mu.Unlock()
			return Conflict(nil, fmt.Sprintf("document %q changed since the view was opened (version %d, view saw %d)", name, doc.version, v.base[name]), nil)
		}
		changed = append(changed, name)
	}
	sort.Strings(changed)
	for _, name := range changed {
		doc := w.docs[name]
		doc.buf = strips.New(v.docs[name].String())
		doc.version++
	}
	listeners := make([]CommitListener, 0, len(w.listeners))
	ids := make([]int, 0, len(w.listeners))
	for id := range w.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		listeners = append(listeners, w.listeners[id])
	}
	w.mu.Unlock()

	if len(changed) > 0 {
		for _, l := range listeners {
			l(changed)
		}
	}
	return nil
}

// Cloner is implemented by per-view state that a nested view must copy
// before mutating.
type Cloner interface {
	Clone() any
}

// ExecutionView stages transformations over private copies of documents.
// An aborted view never mutates the committed source.
type ExecutionView struct {
	id     string
	ws     *Workspace
	parent *ExecutionView

	base map[string]uint64
	docs map[string]*strips.Buffer
	data map[any]any
	log  []Transformation

	aborted     bool
	abortReason error
	committed   bool
}

func newView(ws *Workspace, parent *ExecutionView) *ExecutionView {
	return &ExecutionView{
		id:     uuid.NewString(),
		ws:     ws,
		parent: parent,
		base:   make(map[string]uint64),
		docs:   make(map[string]*strips.Buffer),
		data:   make(map[any]any),
	}
}

// ID returns the unique id of the view.
func (v *ExecutionView) ID() string { return v.id }

// Workspace returns the workspace the view edits.
func (v *ExecutionView) Workspace() *Workspace { return v.ws }

// Nest opens a child view; its commit merges into v, its abort leaves v untouched.
func (v *ExecutionView) Nest() *ExecutionView {
	child := newView(v.ws, v)
	v.ws.logger.Debug("open nested view", "view", child.id, "parent", v.id)
	return child
}

// Document returns the view-private buffer of a document.
func (v *ExecutionView) Document(name string) (*strips.Buffer, error) {
	if err := v.usable(); err != nil {
		return nil, err
	}
	if buf, ok := v.docs[name]; ok {
		return buf, nil
	}
	var buf *strips.Buffer
	var version uint64
	if v.parent != nil {
		pbuf, err := v.parent.Document(name)
		if err != nil {
			return nil, err
		}
		buf, version = pbuf.Clone(), v.parent.base[name]
	} else {
		var err error
		buf, version, err = v.ws.checkout(name)
		if err != nil {
			return nil, err
		}
	}
	v.docs[name] = buf
	v.base[name] = version
	return buf, nil
}

// Text renders the current text of a document as seen by this view.
func (v *ExecutionView) Text(name string) (string, error) {
	buf, err := v.Document(name)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Texts renders every workspace document as seen by this view.
func (v *ExecutionView) Texts() (map[string]string, error) {
	out := make(map[string]string)
	for _, name := range v.ws.Names() {
		text, err := v.Text(name)
		if err != nil {
			return nil, err
		}
		out[name] = text
	}
	return out, nil
}

// Data returns per-view state stored under key. State inherited from a
// parent view is cloned on first access when it implements Cloner.
func (v *ExecutionView) Data(key any) (any, bool) {
	if val, ok := v.data[key]; ok {
		return val, true
	}
	if v.parent == nil {
		return nil, false
	}
	val, ok := v.parent.Data(key)
	if !ok {
		return nil, false
	}
	if c, ok := val.(Cloner); ok {
		val = c.Clone()
	}
	v.data[key] = val
	return val, true
}

// SetData stores per-view state under key.
func (v *ExecutionView) SetData(key, val any) {
	v.data[key] = val
}

// Applied returns the staged transformations in order.
func (v *ExecutionView) Applied() []Transformation {
	return append([]Transformation(nil), v.log...)
}

// Apply stages t. A failing transformation aborts the whole view.
func (v *ExecutionView) Apply(t Transformation) error {
	if err := v.usable(); err != nil {
		return err
	}
	if err := t.Apply(v); err != nil {
		v.Abort(err)
		return err
	}
	if v.aborted {
		return fmt.Errorf("%w: %v", ErrAborted, v.abortReason)
	}
	v.log = append(v.log, t)
	v.ws.logger.Debug("apply transformation", "view", v.id, "transformation", t.String())
	return nil
}

// Abort discards every staged mutation. It is idempotent.
func (v *ExecutionView) Abort(reason error) {
	if v.aborted || v.committed {
		return
	}
	v.aborted = true
	v.abortReason = reason
	v.docs = make(map[string]*strips.Buffer)
	v.data = make(map[any]any)
	v.log = nil
	v.ws.logger.Info("abort view", "view", v.id, "reason", fmt.Sprint(reason))
}

// AbortReason returns the reason passed to Abort.
func (v *ExecutionView) AbortReason() error { return v.abortReason }

// IsAborted reports whether the view was aborted.
func (v *ExecutionView) IsAborted() bool { return v.aborted }

// IsCommitted reports whether the view was committed.
func (v *ExecutionView) IsCommitted() bool { return v.committed }

// Commit re-checks every staged transformation and publishes the result,
// into the parent view for nested views or into the workspace otherwise.
func (v *ExecutionView) Commit() error {
	if err := v.usable(); err != nil {
		return err
	}
	for _, t := range v.log {
		if err := t.Check(v); err != nil {
			v.Abort(err)
			return err
		}
	}

	if v.parent != nil {
		if err := v.parent.usable(); err != nil {
			return err
		}
		for name, buf := range v.docs {
			if _, ok := v.parent.base[name]; !ok {
				v.parent.base[name] = v.base[name]
			}
			v.parent.docs[name] = buf
		}
		for key, val := range v.data {
			v.parent.data[key] = val
		}
		v.parent.log = append(v.parent.log, v.log...)
		v.committed = true
		v.ws.logger.Debug("commit nested view", "view", v.id, "parent", v.parent.id)
		return nil
	}

	if err := v.ws.commit(v); err != nil {
		v.Abort(err)
		return err
	}
	v.committed = true
	v.ws.logger.Info("commit view", "view", v.id, "transformations", len(v.log))
	return nil
}

func (v *ExecutionView) usable() error {
	if v.aborted {
		return fmt.Errorf("%w: %v", ErrAborted, v.abortReason)
	}
	if v.committed {
		return ErrCommitted
	}
	return nil
}
