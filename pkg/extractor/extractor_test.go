package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"tabcopy/pkg/clipboard"
	"tabcopy/pkg/dom/htmldom"
	"tabcopy/pkg/dom/memdom"
	"tabcopy/pkg/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a clipboard that keeps every write.
type recorder struct {
	mu     sync.Mutex
	writes []string
	err    error
}

func (r *recorder) WriteText(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, text)
	return r.err
}

func (r *recorder) Writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%d", n)
	}
}

func newTestExtractor(doc *memdom.Document, clip clipboard.Writer) *Extractor {
	return New(doc,
		WithClipboard(clip),
		WithLogger(zerolog.Nop()),
		WithIDGenerator(sequentialIDs()),
	)
}

func waitActivation(t *testing.T, a *Activation) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := a.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "activation did not settle")
	return err
}

func TestExtract_MirrorsRowsAndCells(t *testing.T) {
	rows := [][]string{
		{"Bits", "Name", "Type", "Function"},
		{"[31:16]", "VECTKEY"},
		{},
		{"[0]", "VECTRESET", "WO", "Reserved for Debug use."},
		{"single"},
	}
	table := memdom.NewTable("AIRCR", rows...)
	ext := newTestExtractor(memdom.New(table), &recorder{})

	result := ext.Extract(table)

	require.Equal(t, len(rows), result.RowCount())
	for i, row := range rows {
		assert.Len(t, result.Rows[i].Cells, len(row), "row %d", i)
		for j, cell := range row {
			assert.Equal(t, cell, result.Rows[i].Cells[j])
		}
	}
}

func TestExtract_EmptyTable(t *testing.T) {
	table := memdom.NewTable("empty")
	ext := newTestExtractor(memdom.New(table), &recorder{})

	result := ext.Extract(table)
	payload, err := result.MarshalCompact()
	require.NoError(t, err)
	assert.Equal(t, `{"rows":[]}`, string(payload))
}

func TestExtract_ReflectsLiveDocument(t *testing.T) {
	table := memdom.NewTable("live", []string{"A"})
	ext := newTestExtractor(memdom.New(table), &recorder{})

	first := ext.Extract(table)
	table.Rows[0].Cells[0].Text = "B"
	table.Rows = append(table.Rows, &memdom.Row{Cells: []*memdom.Cell{{Text: "C"}}})
	second := ext.Extract(table)

	assert.Equal(t, [][]string{{"A"}}, first.Matrix())
	assert.Equal(t, [][]string{{"B"}, {"C"}}, second.Matrix())
}

func TestDiscover_OneControlPerCall(t *testing.T) {
	doc := memdom.New(
		memdom.NewTable("first", []string{"a"}),
		memdom.NewTable("second", []string{"b"}),
	)
	ext := newTestExtractor(doc, &recorder{})

	triggers, err := ext.Discover()
	require.NoError(t, err)
	require.Len(t, triggers, 2)
	for _, tbl := range doc.Tables {
		assert.Len(t, tbl.Caption.Controls, 1)
	}
	assert.Equal(t, "tabcopy-1", triggers[0].Control.ID)
	assert.Equal(t, DefaultTriggerLabel, triggers[0].Control.Label)
	assert.Equal(t, "first", triggers[0].Caption)

	_, err = ext.Discover()
	require.NoError(t, err)
	for _, tbl := range doc.Tables {
		require.Len(t, tbl.Caption.Controls, 2)
	}
	// newest control is the caption's first child
	assert.Equal(t, "tabcopy-3", doc.Tables[0].Caption.Controls[0].ID)
	assert.Equal(t, "tabcopy-1", doc.Tables[0].Caption.Controls[1].ID)
}

func TestDiscover_SkipsCaptionlessTables(t *testing.T) {
	doc := memdom.New(
		memdom.NewTable("first", []string{"a"}),
		memdom.NewUncaptionedTable([]string{"orphan"}),
		memdom.NewTable("third", []string{"c"}),
	)
	ext := newTestExtractor(doc, &recorder{})

	triggers, err := ext.Discover()
	require.NoError(t, err)
	require.Len(t, triggers, 2)
	assert.Equal(t, 0, triggers[0].Index)
	assert.Equal(t, 2, triggers[1].Index)
	assert.Equal(t, []int{1}, ext.Skipped())
}

func TestDiscover_InsertFailureIsLocal(t *testing.T) {
	broken := memdom.NewTable("broken", []string{"x"})
	broken.Caption.InsertErr = errors.New("read-only caption")
	doc := memdom.New(broken, memdom.NewTable("ok", []string{"y"}))
	ext := newTestExtractor(doc, &recorder{})

	triggers, err := ext.Discover()
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, 1, triggers[0].Index)
	assert.Equal(t, []int{0}, ext.Skipped())
}

func TestDiscover_ListError(t *testing.T) {
	doc := memdom.New()
	doc.ListErr = errors.New("document detached")
	ext := newTestExtractor(doc, &recorder{})

	_, err := ext.Discover()
	assert.EqualError(t, err, "document detached")
}

func TestActivate_CopiesInterchangeJSON(t *testing.T) {
	doc := memdom.New(memdom.NewTable("t", []string{"A", "B"}, []string{"C", "D"}))
	clip := &recorder{}
	ext := newTestExtractor(doc, clip)

	triggers, err := ext.Discover()
	require.NoError(t, err)
	require.Len(t, triggers, 1)

	a := triggers[0].Activate()
	const want = `{"rows":[{"cells":["A","B"]},{"cells":["C","D"]}]}`
	assert.Equal(t, want, a.Payload)
	assert.Equal(t, triggers[0].Control.ID, a.TriggerID)

	require.NoError(t, waitActivation(t, a))
	assert.Equal(t, []string{want}, clip.Writes())
	assert.NoError(t, a.Err())
}

func TestActivate_ClipboardFailureIsObservableAndLocal(t *testing.T) {
	doc := memdom.New(
		memdom.NewTable("one", []string{"1"}),
		memdom.NewTable("two", []string{"2"}),
	)
	clip := &recorder{err: clipboard.ErrUnavailable}
	ext := newTestExtractor(doc, clip)

	var mu sync.Mutex
	var outcomes []error
	ext.OnActivation(func(a *Activation, err error) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, err)
	})

	triggers, err := ext.Discover()
	require.NoError(t, err)
	require.Len(t, triggers, 2)

	first := triggers[0].Activate()
	assert.ErrorIs(t, waitActivation(t, first), clipboard.ErrUnavailable)

	// a failed write does not prevent later activations
	clip.mu.Lock()
	clip.err = nil
	clip.mu.Unlock()

	second := triggers[1].Activate()
	assert.NoError(t, waitActivation(t, second))
	again := triggers[0].Activate()
	assert.NoError(t, waitActivation(t, again))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, outcomes, 3)
	assert.ErrorIs(t, outcomes[0], clipboard.ErrUnavailable)
	assert.NoError(t, outcomes[1])
	assert.NoError(t, outcomes[2])
	assert.Len(t, clip.Writes(), 3)
}

func TestActivate_ReturnsBeforeWriteCompletes(t *testing.T) {
	doc := memdom.New(memdom.NewTable("t", []string{"A"}))
	release := make(chan struct{})
	ext := newTestExtractor(doc, clipboard.WriterFunc(func(string) error {
		<-release
		return nil
	}))

	triggers, err := ext.Discover()
	require.NoError(t, err)

	a := triggers[0].Activate()
	select {
	case <-a.Done():
		t.Fatal("activation settled before the clipboard write finished")
	default:
	}
	assert.NoError(t, a.Err())

	close(release)
	assert.NoError(t, waitActivation(t, a))
}

func TestInspect(t *testing.T) {
	doc := memdom.New(
		memdom.NewTable("wide", []string{"a"}, []string{"b", "c", "d"}),
		memdom.NewUncaptionedTable(),
	)
	ext := newTestExtractor(doc, &recorder{})

	infos, err := ext.Inspect()
	require.NoError(t, err)
	assert.Equal(t, []models.TableInfo{
		{Index: 0, Caption: "wide", HasCaption: true, Rows: 2, Columns: 3},
		{Index: 1},
	}, infos)
	assert.Empty(t, doc.Tables[0].Caption.Controls)
}

func TestEndToEnd_HTMLDocument(t *testing.T) {
	page := `<html><body>
	<table class="c-table"><caption>Table 1</caption>
	<tr><td>A</td><td><em>B</em></td></tr>
	<tr><td>C</td><td>D</td></tr>
	</table>
	<table class="c-table"><tr><td>no caption</td></tr></table>
	</body></html>`

	doc, err := htmldom.ParseString(page)
	require.NoError(t, err)
	clip := &recorder{}
	ext := New(doc, WithClipboard(clip), WithLogger(zerolog.Nop()), WithIDGenerator(sequentialIDs()))

	triggers, err := ext.Discover()
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, "Table 1", triggers[0].Caption)

	a := triggers[0].Activate()
	require.NoError(t, waitActivation(t, a))
	assert.Equal(t, []string{`{"rows":[{"cells":["A","B"]},{"cells":["C","D"]}]}`}, clip.Writes())

	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))
	assert.Equal(t, 1, strings.Count(buf.String(), `id="tabcopy-1"`))
}

func TestOnActivation_AllListenersRunBeforeDone(t *testing.T) {
	doc := memdom.New(memdom.NewTable("t", []string{"A"}))
	ext := newTestExtractor(doc, &recorder{})

	var mu sync.Mutex
	var calls []string
	record := func(name string) Listener {
		return func(a *Activation, err error) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, name+":"+a.TriggerID)
		}
	}
	ext.OnActivation(record("first"))
	ext.OnActivation(record("second"))

	triggers, err := ext.Discover()
	require.NoError(t, err)
	require.Len(t, triggers, 1)

	a := triggers[0].Activate()
	require.NoError(t, waitActivation(t, a))

	// listeners registered after the activation settled are not replayed
	ext.OnActivation(record("late"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first:" + a.TriggerID, "second:" + a.TriggerID}, calls)
}
