// Package extractor attaches trigger controls to tables in a document and,
// when a trigger is activated, copies the table's rendered contents to the
// clipboard as interchange JSON.
//
// An Extractor is bound to one dom.Document. Discovery inserts one control
// per captioned table on every call; tables without a caption are skipped.
// Each activation reads the live document, so results are never reused
// between activations.
package extractor

import (
	"context"
	"sync"

	"tabcopy/pkg/clipboard"
	"tabcopy/pkg/dom"
	"tabcopy/pkg/logger"
	"tabcopy/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultTriggerLabel = "Generate Code"
	ControlIDPrefix     = "tabcopy-"
)

type Extractor struct {
	doc   dom.Document
	clip  clipboard.Writer
	log   zerolog.Logger
	label string
	newID func() string

	mu        sync.Mutex
	skipped   []int
	listeners []Listener
}

type Option func(*Extractor)

// Listener receives an activation and its clipboard outcome.
type Listener func(a *Activation, err error)

func WithClipboard(w clipboard.Writer) Option {
	return func(e *Extractor) {
		if w != nil {
			e.clip = w
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Extractor) {
		e.log = l
	}
}

func WithTriggerLabel(label string) Option {
	return func(e *Extractor) {
		if label != "" {
			e.label = label
		}
	}
}

// WithIDGenerator overrides the control ID source (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(e *Extractor) {
		if fn != nil {
			e.newID = fn
		}
	}
}

func New(doc dom.Document, opts ...Option) *Extractor {
	e := &Extractor{
		doc:   doc,
		clip:  clipboard.System{},
		log:   logger.Component("extractor"),
		label: DefaultTriggerLabel,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Document returns the document the extractor is bound to.
func (e *Extractor) Document() dom.Document {
	return e.doc
}

// OnActivation registers fn to be called with every activation and its
// clipboard outcome once the write has settled.
func (e *Extractor) OnActivation(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Discover inserts a trigger control as the first child of each table's
// caption and returns the triggers in document order. Calling it again
// inserts another control per table.
func (e *Extractor) Discover() ([]*Trigger, error) {
	tables, err := e.doc.ListTables()
	if err != nil {
		return nil, err
	}

	var skipped []int
	triggers := make([]*Trigger, 0, len(tables))
	for i, table := range tables {
		caption, ok := e.doc.CaptionOf(table)
		if !ok {
			e.log.Warn().Int("table", i).Msg("table has no caption, skipping")
			skipped = append(skipped, i)
			continue
		}

		ctl := dom.Control{
			ID:    ControlIDPrefix + e.newID(),
			Label: e.label,
			Class: dom.TriggerClass,
		}
		if err := e.doc.PrependControl(caption, ctl); err != nil {
			e.log.Warn().Err(err).Int("table", i).Msg("failed to insert trigger control, skipping")
			skipped = append(skipped, i)
			continue
		}

		e.log.Debug().Int("table", i).Str("control", ctl.ID).Msg("trigger control inserted")
		triggers = append(triggers, &Trigger{
			Index:   i,
			Caption: e.doc.CaptionText(caption),
			Control: ctl,
			Table:   table,
			ext:     e,
		})
	}

	e.mu.Lock()
	e.skipped = skipped
	e.mu.Unlock()

	return triggers, nil
}

// Skipped returns the indices of tables the last Discover call could not
// attach a control to.
func (e *Extractor) Skipped() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.skipped...)
}

// Extract reads the table's rows and cells as they are in the document now.
func (e *Extractor) Extract(t dom.Table) models.ExtractionResult {
	result := models.NewExtractionResult()
	for _, row := range e.doc.RowsOf(t) {
		cells := e.doc.CellsOf(row)
		texts := make([]string, 0, len(cells))
		for _, c := range cells {
			texts = append(texts, e.doc.TextOf(c))
		}
		result.Rows = append(result.Rows, models.Row{Cells: texts})
	}
	return result
}

// Inspect lists every table matching the selector without modifying the
// document.
func (e *Extractor) Inspect() ([]models.TableInfo, error) {
	tables, err := e.doc.ListTables()
	if err != nil {
		return nil, err
	}

	infos := make([]models.TableInfo, 0, len(tables))
	for i, table := range tables {
		info := models.TableInfo{Index: i}
		if caption, ok := e.doc.CaptionOf(table); ok {
			info.HasCaption = true
			info.Caption = e.doc.CaptionText(caption)
		}
		result := e.Extract(table)
		info.Rows = result.RowCount()
		for _, n := range result.CellCounts() {
			info.Columns = max(info.Columns, n)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (e *Extractor) activate(t *Trigger) *Activation {
	a := &Activation{
		TriggerID: t.Control.ID,
		Index:     t.Index,
		Result:    e.Extract(t.Table),
		done:      make(chan struct{}),
	}

	payload, err := a.Result.MarshalCompact()
	if err != nil {
		e.log.Error().Err(err).Str("control", a.TriggerID).Msg("failed to serialize table")
		e.settle(a, err)
		return a
	}
	a.Payload = string(payload)

	e.log.Debug().
		Str("control", a.TriggerID).
		Int("rows", a.Result.RowCount()).
		Int("bytes", len(payload)).
		Msg("table extracted")

	outcome := clipboard.Async(e.clip, a.Payload)
	go func() {
		err := <-outcome
		if err != nil {
			e.log.Warn().Err(err).Str("control", a.TriggerID).Msg("clipboard write failed")
		}
		e.settle(a, err)
	}()
	return a
}

// settle runs listeners before closing done so Wait observes their effects.
func (e *Extractor) settle(a *Activation, err error) {
	a.err = err

	e.mu.Lock()
	listeners := append([]Listener(nil), e.listeners...)
	e.mu.Unlock()
	for _, fn := range listeners {
		fn(a, err)
	}

	close(a.done)
}

// Trigger is a control bound to one table.
type Trigger struct {
	Index   int
	Caption string
	Control dom.Control
	Table   dom.Table

	ext *Extractor
}

// Activate extracts the table, requests the clipboard write and returns
// without waiting for it.
func (t *Trigger) Activate() *Activation {
	return t.ext.activate(t)
}

// Activation is the outcome of one trigger activation.
type Activation struct {
	TriggerID string
	Index     int
	Result    models.ExtractionResult
	Payload   string

	done chan struct{}
	err  error
}

// Done is closed once the clipboard write has settled.
func (a *Activation) Done() <-chan struct{} {
	return a.done
}

// Err returns the clipboard outcome. It is nil until Done is closed.
func (a *Activation) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

// Wait blocks until the clipboard write settles or ctx ends.
func (a *Activation) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
